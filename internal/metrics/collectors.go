package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"exconnect/pkg/logger"
)

// StorageCollector reports what the storage backends hold. Any backend
// may be nil and is then skipped.
type StorageCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	storedCredentials *prometheus.Desc
	recentRows        *prometheus.Desc
	cachedMarketSets  *prometheus.Desc
}

// NewStorageCollector creates a collector over the configured backends.
func NewStorageCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *StorageCollector {
	return &StorageCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		storedCredentials: prometheus.NewDesc(
			"exconnect_stored_credentials",
			"Number of exchanges with credentials in the vault",
			nil, nil,
		),
		recentRows: prometheus.NewDesc(
			"exconnect_clickhouse_rows_last_hour",
			"Rows collected in the last hour per table",
			[]string{"table"}, nil,
		),
		cachedMarketSets: prometheus.NewDesc(
			"exconnect_cached_market_sets",
			"Number of exchanges with markets in redis",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StorageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storedCredentials
	ch <- c.recentRows
	ch <- c.cachedMarketSets
}

// Collect implements prometheus.Collector
func (c *StorageCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectCredentials(ctx, ch)
	}
	if c.clickhouse != nil {
		for _, table := range []string{"tickers", "trades", "orderbook_snapshots"} {
			c.collectRecentRows(ctx, ch, table)
		}
	}
	if c.redis != nil {
		c.collectMarketSets(ctx, ch)
	}
}

func (c *StorageCollector) collectCredentials(ctx context.Context, ch chan<- prometheus.Metric) {
	var count int
	if err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM exchange_credentials"); err != nil {
		c.log.Warnw("Failed to collect credential count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.storedCredentials, prometheus.GaugeValue, float64(count))
}

func (c *StorageCollector) collectRecentRows(ctx context.Context, ch chan<- prometheus.Metric, table string) {
	var count uint64
	query := "SELECT count() FROM " + table + " WHERE collected_at > now() - INTERVAL 1 HOUR"
	if err := c.clickhouse.QueryRow(ctx, query).Scan(&count); err != nil {
		c.log.Warnw("Failed to collect row count", "table", table, "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.recentRows, prometheus.GaugeValue, float64(count), table)
}

func (c *StorageCollector) collectMarketSets(ctx context.Context, ch chan<- prometheus.Metric) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, "exconnect:markets:*", 100).Result()
		if err != nil {
			c.log.Warnw("Failed to scan market keys", "error", err)
			return
		}
		total += len(keys)
		if next == 0 {
			break
		}
		cursor = next
	}
	ch <- prometheus.MustNewConstMetric(c.cachedMarketSets, prometheus.GaugeValue, float64(total))
}

// RegisterStorageCollector registers collector with the default registry.
func RegisterStorageCollector(collector *StorageCollector) {
	prometheus.MustRegister(collector)
}
