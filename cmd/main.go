package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"exconnect/internal/adapters/clickhouse"
	"exconnect/internal/adapters/config"
	"exconnect/internal/adapters/errors/noop"
	"exconnect/internal/adapters/errors/sentry"
	"exconnect/internal/adapters/exchangefactory"
	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/kafka"
	"exconnect/internal/adapters/postgres"
	"exconnect/internal/adapters/redis"
	"exconnect/internal/adapters/telegram"
	"exconnect/internal/api"
	"exconnect/internal/api/health"
	"exconnect/internal/metrics"
	chrepo "exconnect/internal/repository/clickhouse"
	pgrepo "exconnect/internal/repository/postgres"
	"exconnect/internal/workers"
	"exconnect/internal/workers/marketdata"
	"exconnect/pkg/crypto"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

// storage holds the optional backends. Disabled ones stay nil.
type storage struct {
	postgres   *postgres.Client
	clickhouse *clickhouse.Client
	redis      *redis.Client
}

func (s *storage) close(log *logger.Logger) {
	var errs errors.MultiError
	if s.postgres != nil {
		errs.Add(s.postgres.Close())
	}
	if s.clickhouse != nil {
		errs.Add(s.clickhouse.Close())
	}
	if s.redis != nil {
		errs.Add(s.redis.Close())
	}
	if err := errs.ToError(); err != nil {
		log.Warnw("Storage close failed", "error", err)
	}
}

// collector exposes the raw handles the storage metrics collector reads.
func (s *storage) collector(log *logger.Logger) *metrics.StorageCollector {
	var (
		db   *sqlx.DB
		conn driver.Conn
		rc   *goredis.Client
	)
	if s.postgres != nil {
		db = s.postgres.DB()
	}
	if s.clickhouse != nil {
		conn = s.clickhouse.Conn()
	}
	if s.redis != nil {
		rc = s.redis.Client()
	}
	return metrics.NewStorageCollector(log, db, conn, rc)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	log.Infow("Starting", "service", cfg.App.Name, "env", cfg.App.Env, "exchanges", cfg.Exchanges.Enabled)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := initStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.close(log)

	factory, err := initFactory(cfg, store)
	if err != nil {
		log.Fatalf("Failed to build exchange factory: %v", err)
	}

	sink, closeSinks := initSinks(ctx, cfg, store, log)
	outages := marketdata.NewOutageTracker(cfg.Collector.FailureThreshold, initAlerter(cfg, log))

	scheduler := workers.NewScheduler()
	for _, w := range initWorkers(cfg, factory, sink, outages) {
		if err := scheduler.RegisterWorker(w); err != nil {
			log.Fatalf("Failed to register worker: %v", err)
		}
	}

	metrics.RegisterStorageCollector(store.collector(log))

	hh := health.New(log, cfg.App.Name, cfg.App.Version).
		WithWorkers(scheduler).
		WithOutages(outages)
	if store.postgres != nil {
		hh.AddCheck("postgres", store.postgres)
	}
	if store.clickhouse != nil {
		hh.AddCheck("clickhouse", store.clickhouse)
	}
	if store.redis != nil {
		hh.AddCheck("redis", store.redis)
	}
	server := api.NewServer(api.ServerConfig{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}, hh, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}
	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, cfg.HTTP.ShutdownTimeout, func(sctx context.Context) {
		if err := server.Shutdown(sctx); err != nil {
			log.Warnw("HTTP shutdown failed", "error", err)
		}
		if err := scheduler.Stop(sctx); err != nil {
			log.Warnw("Worker shutdown failed", "error", err)
		}
		closeSinks(sctx)
		if err := errorTracker.Flush(sctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initStorage connects every configured backend and applies its schema.
func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	s := &storage{}

	if cfg.Postgres.Enabled() {
		pg, err := postgres.NewClient(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s.postgres = pg
		if err := pg.Migrate(ctx); err != nil {
			s.close(log)
			return nil, err
		}
		log.Infow("Credential vault connected", "host", cfg.Postgres.Host)
	}

	if cfg.ClickHouse.Enabled() {
		ch, err := clickhouse.NewClient(ctx, cfg.ClickHouse)
		if err != nil {
			s.close(log)
			return nil, err
		}
		s.clickhouse = ch
		if err := ch.Migrate(ctx); err != nil {
			s.close(log)
			return nil, err
		}
		log.Infow("ClickHouse connected", "host", cfg.ClickHouse.Host)
	}

	if cfg.Redis.Enabled() {
		rc, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			s.close(log)
			return nil, err
		}
		s.redis = rc
		log.Infow("Redis connected", "addr", cfg.Redis.Addr())
	}

	return s, nil
}

func initFactory(cfg *config.Config, s *storage) (*exchangefactory.Factory, error) {
	var marketStore exchanges.MarketStore
	if s.redis != nil {
		marketStore = redis.NewMarketCache(s.redis, cfg.Redis.MarketTTL)
	}

	var vault exchanges.CredentialSource
	if s.postgres != nil {
		enc, err := crypto.NewEncryptor(cfg.Crypto.EncryptionKey)
		if err != nil {
			return nil, err
		}
		vault = pgrepo.NewCredentialRepository(s.postgres.DB(), enc)
	}

	return exchangefactory.FromConfig(cfg, marketStore, vault)
}

// initSinks returns the sink every collector writes to and a function
// that drains it on shutdown.
func initSinks(ctx context.Context, cfg *config.Config, s *storage, log *logger.Logger) (marketdata.Sink, func(context.Context)) {
	var sinks marketdata.MultiSink
	var closers []func(context.Context) error

	if s.clickhouse != nil {
		repo := chrepo.NewMarketDataRepository(s.clickhouse.Conn(), cfg.ClickHouse)
		repo.Start(ctx)
		sinks = append(sinks, repo)
		closers = append(closers, repo.Stop)
	}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			TopicPrefix: cfg.Kafka.TopicPrefix,
		})
		sinks = append(sinks, producer)
		closers = append(closers, func(context.Context) error { return producer.Close() })
	}
	if len(sinks) == 0 {
		log.Warn("No sink configured; collected data is only counted")
	}

	return sinks, func(ctx context.Context) {
		for _, c := range closers {
			if err := c(ctx); err != nil {
				log.Warnw("Sink shutdown failed", "error", err)
			}
		}
	}
}

func initAlerter(cfg *config.Config, log *logger.Logger) marketdata.Alerter {
	if !cfg.Telegram.Enabled() {
		return nil
	}
	bot, err := telegram.NewBot(telegram.Config{Token: cfg.Telegram.BotToken}, log.Component("telegram"))
	if err != nil {
		log.Warnw("Telegram alerts disabled", "error", err)
		return nil
	}
	return telegram.NewNotifier(bot, cfg.Telegram.ChatIDs)
}

func initWorkers(cfg *config.Config, factory *exchangefactory.Factory, sink marketdata.Sink, outages *marketdata.OutageTracker) []workers.Worker {
	opts := marketdata.Options{
		Exchanges:      factory.ListExchanges(),
		Symbols:        cfg.Collector.Symbols,
		MaxConcurrency: cfg.Collector.MaxConcurrency,
		Outages:        outages,
	}
	c := cfg.Collector
	return []workers.Worker{
		marketdata.NewMarketsRefresher(factory, opts, c.MarketsInterval),
		marketdata.NewTickerCollector(factory, sink, opts, c.TickerInterval),
		marketdata.NewOrderBookCollector(factory, sink, opts, c.OrderBookDepth, c.OrderBookInterval),
		marketdata.NewTradesCollector(factory, sink, opts, 0, c.TradesInterval),
		marketdata.NewOHLCVCollector(factory, sink, opts, c.OHLCVTimeframes, c.OHLCVLimit, c.OHLCVInterval),
	}
}

// waitForShutdown blocks until a signal or cancellation, then runs stop
// within timeout.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, timeout time.Duration, stop func(context.Context), log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("Shutting down", "signal", sig.String())
	case <-ctx.Done():
		log.Info("Shutting down after fatal component error")
	}
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), timeout)
	defer scancel()
	stop(sctx)

	log.Info("Shutdown complete")
}
