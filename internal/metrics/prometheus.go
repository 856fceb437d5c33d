package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exconnect_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exconnect_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Exchange metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_exchange_api_calls_total",
			Help: "Total number of exchange API calls",
		},
		[]string{"exchange", "endpoint", "status"}, // status: success|error
	)

	ExchangeAPIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_exchange_api_errors_total",
			Help: "Total number of exchange API errors by category",
		},
		[]string{"exchange", "kind"},
	)

	ExchangeAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exconnect_exchange_api_latency_seconds",
			Help:    "Exchange API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"exchange", "endpoint"},
	)

	NormalizedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_normalized_records_total",
			Help: "Total number of normalized records produced",
		},
		[]string{"exchange", "kind"}, // kind: market|ticker|orderbook|trade|order|balance|ohlcv
	)

	MarketsLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exconnect_markets_loaded",
			Help: "Number of markets currently cached per exchange",
		},
		[]string{"exchange"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exconnect_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)

	AlertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exconnect_alerts_sent_total",
			Help: "Total number of outage alerts sent",
		},
		[]string{"exchange", "status"},
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			WorkerExecutions,
			WorkerDuration,
			WorkerLastRun,
			ExchangeAPICalls,
			ExchangeAPIErrors,
			ExchangeAPILatency,
			NormalizedRecords,
			MarketsLoaded,
			DBQueries,
			DBQueryDuration,
			KafkaMessages,
			AlertsSent,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, status(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordExchangeAPICall records an exchange API call. kind is the error
// category and is ignored on success.
func RecordExchangeAPICall(exchange, endpoint string, latency time.Duration, kind string, err error) {
	ExchangeAPICalls.WithLabelValues(exchange, endpoint, status(err)).Inc()
	ExchangeAPILatency.WithLabelValues(exchange, endpoint).Observe(latency.Seconds())

	if err != nil {
		if kind == "" {
			kind = "unknown"
		}
		ExchangeAPIErrors.WithLabelValues(exchange, kind).Inc()
	}
}

// RecordNormalized counts normalized records of a kind
func RecordNormalized(exchange, kind string, n int) {
	if n <= 0 {
		return
	}
	NormalizedRecords.WithLabelValues(exchange, kind).Add(float64(n))
}

// RecordMarketsLoaded sets the cached market count
func RecordMarketsLoaded(exchange string, n int) {
	MarketsLoaded.WithLabelValues(exchange).Set(float64(n))
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessages counts produced messages
func RecordKafkaMessages(topic string, n int, err error) {
	KafkaMessages.WithLabelValues(topic, status(err)).Add(float64(n))
}

// RecordAlert counts sent alerts
func RecordAlert(exchange string, err error) {
	AlertsSent.WithLabelValues(exchange, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
