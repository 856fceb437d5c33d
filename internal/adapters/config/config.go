package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
)

type Config struct {
	App           AppConfig
	Exchanges     ExchangesConfig
	Retry         RetryConfig
	Collector     CollectorConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Crypto        CryptoConfig
	ErrorTracking ErrorTrackingConfig
	HTTP          HTTPConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"exconnect"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

// ExchangesConfig selects the adapters the daemon runs. Credentials are
// read per exchange from EXCHANGE_<ID>_API_KEY, _SECRET, _UID and _PASSWORD.
type ExchangesConfig struct {
	Enabled   []string      `envconfig:"EXCHANGES" default:"bcio,bitclude,bitforexfu,bitzfu,coinbene,coinsuper,felixo,gateiofu,primexbt,tradeogre,58coin"`
	Timeout   time.Duration `envconfig:"EXCHANGE_HTTP_TIMEOUT" default:"10s"`
	RateLimit time.Duration `envconfig:"EXCHANGE_RATE_LIMIT"`
}

// ExchangeCredentials are the per-exchange secrets loaded from the environment.
type ExchangeCredentials struct {
	APIKey   string `envconfig:"API_KEY"`
	Secret   string `envconfig:"SECRET"`
	UID      string `envconfig:"UID"`
	Password string `envconfig:"PASSWORD"`
}

// Empty reports whether neither key nor secret is set.
func (c ExchangeCredentials) Empty() bool {
	return c.APIKey == "" && c.Secret == ""
}

// CredentialsFor reads EXCHANGE_<ID>_* for exchange.
func CredentialsFor(exchange string) (ExchangeCredentials, error) {
	var creds ExchangeCredentials
	prefix := "EXCHANGE_" + strings.ToUpper(exchange)
	if err := envconfig.Process(prefix, &creds); err != nil {
		return creds, errors.Wrapf(err, "credentials for %s", exchange)
	}
	return creds, nil
}

type RetryConfig struct {
	Enabled      bool          `envconfig:"RETRY_ENABLED" default:"true"`
	MaxRetries   int           `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	InitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"200ms"`
	MaxDelay     time.Duration `envconfig:"RETRY_MAX_DELAY" default:"2s"`
}

// CollectorConfig drives the market data workers. Symbols is a list of
// unified symbols; an empty list collects every loaded market for the
// ticker collector and nothing for the per-symbol collectors.
type CollectorConfig struct {
	Symbols           []string      `envconfig:"COLLECTOR_SYMBOLS" default:"BTC/USDT,ETH/USDT"`
	MarketsInterval   time.Duration `envconfig:"COLLECTOR_MARKETS_INTERVAL" default:"1h"`
	TickerInterval    time.Duration `envconfig:"COLLECTOR_TICKER_INTERVAL" default:"30s"`
	OrderBookInterval time.Duration `envconfig:"COLLECTOR_ORDERBOOK_INTERVAL" default:"15s"`
	OrderBookDepth    int           `envconfig:"COLLECTOR_ORDERBOOK_DEPTH" default:"20"`
	TradesInterval    time.Duration `envconfig:"COLLECTOR_TRADES_INTERVAL" default:"1m"`
	OHLCVInterval     time.Duration `envconfig:"COLLECTOR_OHLCV_INTERVAL" default:"1m"`
	OHLCVTimeframes   []string      `envconfig:"COLLECTOR_OHLCV_TIMEFRAMES" default:"1m,1h"`
	OHLCVLimit        int           `envconfig:"COLLECTOR_OHLCV_LIMIT" default:"100"`
	MaxConcurrency    int           `envconfig:"COLLECTOR_MAX_CONCURRENCY" default:"4"`
	FailureThreshold  int           `envconfig:"COLLECTOR_FAILURE_THRESHOLD" default:"5"`
}

// PostgresConfig configures the credential vault. An empty host disables it.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"exconnect"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"exconnect"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ClickHouseConfig configures the market data sink. An empty host disables it.
type ClickHouseConfig struct {
	Host          string        `envconfig:"CLICKHOUSE_HOST"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD"`
	Database      string        `envconfig:"CLICKHOUSE_DB" default:"exconnect"`
	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

// RedisConfig configures the market cache. An empty host disables it.
type RedisConfig struct {
	Host      string        `envconfig:"REDIS_HOST"`
	Port      int           `envconfig:"REDIS_PORT" default:"6379"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	MarketTTL time.Duration `envconfig:"REDIS_MARKET_TTL" default:"6h"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig configures the event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS"`
	TopicPrefix string   `envconfig:"KAFKA_TOPIC_PREFIX"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// TelegramConfig configures outage alerts. No token disables them.
type TelegramConfig struct {
	BotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatIDs  []int64 `envconfig:"TELEGRAM_ALERT_CHAT_IDS"`
}

func (c TelegramConfig) Enabled() bool { return c.BotToken != "" && len(c.ChatIDs) > 0 }

type CryptoConfig struct {
	EncryptionKey string `envconfig:"CRYPTO_ENCRYPTION_KEY"` // 32 bytes or 64 hex chars
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if len(c.Exchanges.Enabled) == 0 {
		return errors.NewValidationError("EXCHANGES", "at least one exchange must be enabled", c.Exchanges.Enabled)
	}
	if c.Postgres.Enabled() && c.Crypto.EncryptionKey == "" {
		return errors.NewValidationError("CRYPTO_ENCRYPTION_KEY", "required when the credential vault is enabled", "")
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		return errors.NewValidationError("SENTRY_DSN", "required when error tracking is enabled", "")
	}
	if c.Collector.MaxConcurrency < 1 {
		return errors.NewValidationError("COLLECTOR_MAX_CONCURRENCY", "must be positive", c.Collector.MaxConcurrency)
	}
	for _, tf := range c.Collector.OHLCVTimeframes {
		if _, ok := exchanges.TimeframeDuration(tf); !ok {
			return errors.NewValidationError("COLLECTOR_OHLCV_TIMEFRAMES", "unknown timeframe", tf)
		}
	}
	return nil
}
