package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"exconnect/internal/adapters/config"
	"exconnect/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tickers (
		exchange     LowCardinality(String),
		symbol       LowCardinality(String),
		timestamp    DateTime64(3),
		last         Nullable(Float64),
		bid          Nullable(Float64),
		ask          Nullable(Float64),
		high         Nullable(Float64),
		low          Nullable(Float64),
		base_volume  Nullable(Float64),
		quote_volume Nullable(Float64),
		percentage   Nullable(Float64),
		collected_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (exchange, symbol, timestamp)`,
	`CREATE TABLE IF NOT EXISTS trades (
		exchange     LowCardinality(String),
		symbol       LowCardinality(String),
		id           String,
		timestamp    DateTime64(3),
		side         LowCardinality(String),
		price        Float64,
		amount       Float64,
		cost         Nullable(Float64),
		collected_at DateTime64(3)
	) ENGINE = ReplacingMergeTree()
	ORDER BY (exchange, symbol, id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS orderbook_snapshots (
		exchange     LowCardinality(String),
		symbol       LowCardinality(String),
		timestamp    DateTime64(3),
		nonce        Int64,
		bid_prices   Array(Float64),
		bid_amounts  Array(Float64),
		ask_prices   Array(Float64),
		ask_amounts  Array(Float64),
		collected_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (exchange, symbol, collected_at)`,
	`CREATE TABLE IF NOT EXISTS ohlcv (
		exchange     LowCardinality(String),
		symbol       LowCardinality(String),
		timeframe    LowCardinality(String),
		open_time    DateTime64(3),
		open         Float64,
		high         Float64,
		low          Float64,
		close        Float64,
		volume       Nullable(Float64),
		collected_at DateTime64(3)
	) ENGINE = ReplacingMergeTree(collected_at)
	ORDER BY (exchange, symbol, timeframe, open_time)`,
}

// Client wraps ClickHouse connection
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client
func NewClient(ctx context.Context, cfg config.ClickHouseConfig) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to clickhouse")
	}

	// Verify connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(errors.ErrUnavailable, "ping clickhouse at %s: %v", cfg.Host, err)
	}

	return &Client{conn: conn}, nil
}

// Migrate creates the market data tables.
func (c *Client) Migrate(ctx context.Context) error {
	for _, ddl := range schema {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return errors.Wrap(err, "migrate clickhouse")
		}
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	return c.conn
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Health checks ClickHouse connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Exec executes a query without returning rows
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.conn.Exec(ctx, query, args...)
}
