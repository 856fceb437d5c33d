package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/config"
	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	chbatch "exconnect/pkg/clickhouse"
	"exconnect/pkg/errors"
)

// TickerRow is one row of the tickers table.
type TickerRow struct {
	Exchange    string    `ch:"exchange"`
	Symbol      string    `ch:"symbol"`
	Timestamp   time.Time `ch:"timestamp"`
	Last        *float64  `ch:"last"`
	Bid         *float64  `ch:"bid"`
	Ask         *float64  `ch:"ask"`
	High        *float64  `ch:"high"`
	Low         *float64  `ch:"low"`
	BaseVolume  *float64  `ch:"base_volume"`
	QuoteVolume *float64  `ch:"quote_volume"`
	Percentage  *float64  `ch:"percentage"`
	CollectedAt time.Time `ch:"collected_at"`
}

// TradeRow is one row of the trades table.
type TradeRow struct {
	Exchange    string    `ch:"exchange"`
	Symbol      string    `ch:"symbol"`
	ID          string    `ch:"id"`
	Timestamp   time.Time `ch:"timestamp"`
	Side        string    `ch:"side"`
	Price       float64   `ch:"price"`
	Amount      float64   `ch:"amount"`
	Cost        *float64  `ch:"cost"`
	CollectedAt time.Time `ch:"collected_at"`
}

// OrderBookRow is one snapshot of the orderbook_snapshots table.
type OrderBookRow struct {
	Exchange    string    `ch:"exchange"`
	Symbol      string    `ch:"symbol"`
	Timestamp   time.Time `ch:"timestamp"`
	Nonce       int64     `ch:"nonce"`
	BidPrices   []float64 `ch:"bid_prices"`
	BidAmounts  []float64 `ch:"bid_amounts"`
	AskPrices   []float64 `ch:"ask_prices"`
	AskAmounts  []float64 `ch:"ask_amounts"`
	CollectedAt time.Time `ch:"collected_at"`
}

// OHLCVRow is one candle of the ohlcv table. A re-collected candle
// replaces the earlier row with the same open time.
type OHLCVRow struct {
	Exchange    string    `ch:"exchange"`
	Symbol      string    `ch:"symbol"`
	Timeframe   string    `ch:"timeframe"`
	OpenTime    time.Time `ch:"open_time"`
	Open        float64   `ch:"open"`
	High        float64   `ch:"high"`
	Low         float64   `ch:"low"`
	Close       float64   `ch:"close"`
	Volume      *float64  `ch:"volume"`
	CollectedAt time.Time `ch:"collected_at"`
}

// MarketDataRepository buffers normalized records and writes them to
// ClickHouse in batches.
type MarketDataRepository struct {
	conn    driver.Conn
	now     func() time.Time
	tickers *chbatch.BatchWriter[TickerRow]
	trades  *chbatch.BatchWriter[TradeRow]
	books   *chbatch.BatchWriter[OrderBookRow]
	candles *chbatch.BatchWriter[OHLCVRow]
}

// NewMarketDataRepository creates a repository; call Start to enable
// the periodic flush.
func NewMarketDataRepository(conn driver.Conn, cfg config.ClickHouseConfig) *MarketDataRepository {
	r := &MarketDataRepository{conn: conn, now: time.Now}
	r.tickers = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[TickerRow]{
		FlushFunc:    insertRows[TickerRow](conn, "tickers"),
		TableName:    "tickers",
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
	})
	r.trades = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[TradeRow]{
		FlushFunc:    insertRows[TradeRow](conn, "trades"),
		TableName:    "trades",
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
	})
	r.books = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[OrderBookRow]{
		FlushFunc:    insertRows[OrderBookRow](conn, "orderbook_snapshots"),
		TableName:    "orderbook_snapshots",
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
	})
	r.candles = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[OHLCVRow]{
		FlushFunc:    insertRows[OHLCVRow](conn, "ohlcv"),
		TableName:    "ohlcv",
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
	})
	return r
}

// Start runs the background flush loops until ctx is done.
func (r *MarketDataRepository) Start(ctx context.Context) {
	r.tickers.Start(ctx)
	r.trades.Start(ctx)
	r.books.Start(ctx)
	r.candles.Start(ctx)
}

// Stop flushes whatever is buffered.
func (r *MarketDataRepository) Stop(ctx context.Context) error {
	return errors.Join(
		r.tickers.Stop(ctx),
		r.trades.Stop(ctx),
		r.books.Stop(ctx),
		r.candles.Stop(ctx),
	)
}

// Flush writes every buffer now.
func (r *MarketDataRepository) Flush(ctx context.Context) error {
	return errors.Join(
		r.tickers.Flush(ctx),
		r.trades.Flush(ctx),
		r.books.Flush(ctx),
		r.candles.Flush(ctx),
	)
}

// WriteTickers buffers tickers of exchange.
func (r *MarketDataRepository) WriteTickers(ctx context.Context, exchange string, tickers []*exchanges.Ticker) error {
	now := r.now()
	rows := make([]TickerRow, 0, len(tickers))
	for _, t := range tickers {
		if t != nil {
			rows = append(rows, tickerRow(exchange, t, now))
		}
	}
	return r.tickers.Add(ctx, rows...)
}

// WriteTrades buffers trades of exchange. Trades without price or amount
// are skipped.
func (r *MarketDataRepository) WriteTrades(ctx context.Context, exchange string, trades []*exchanges.Trade) error {
	now := r.now()
	rows := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		if row, ok := tradeRow(exchange, t, now); ok {
			rows = append(rows, row)
		}
	}
	return r.trades.Add(ctx, rows...)
}

// WriteOrderBook buffers a book snapshot of exchange.
func (r *MarketDataRepository) WriteOrderBook(ctx context.Context, exchange string, book *exchanges.OrderBook) error {
	if book == nil {
		return nil
	}
	return r.books.Add(ctx, orderBookRow(exchange, book, r.now()))
}

// WriteOHLCV buffers candles of one market and timeframe. Candles missing
// a price are skipped.
func (r *MarketDataRepository) WriteOHLCV(ctx context.Context, exchange, symbol, timeframe string, candles []*exchanges.OHLCV) error {
	now := r.now()
	rows := make([]OHLCVRow, 0, len(candles))
	for _, c := range candles {
		if row, ok := ohlcvRow(exchange, symbol, timeframe, c, now); ok {
			rows = append(rows, row)
		}
	}
	return r.candles.Add(ctx, rows...)
}

// LatestCandles returns the newest stored candles of a market, newest first.
func (r *MarketDataRepository) LatestCandles(ctx context.Context, exchange, symbol, timeframe string, limit int) ([]OHLCVRow, error) {
	start := time.Now()
	var rows []OHLCVRow
	err := r.conn.Select(ctx, &rows, `
		SELECT exchange, symbol, timeframe, open_time, open, high, low, close, volume, collected_at
		FROM ohlcv FINAL
		WHERE exchange = ? AND symbol = ? AND timeframe = ?
		ORDER BY open_time DESC
		LIMIT ?`, exchange, symbol, timeframe, limit)
	metrics.RecordDBQuery("clickhouse", "latest_candles", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "select latest candles")
	}
	return rows, nil
}

// RecentTrades returns the latest stored trades of a market, newest first.
func (r *MarketDataRepository) RecentTrades(ctx context.Context, exchange, symbol string, limit int) ([]TradeRow, error) {
	start := time.Now()
	var rows []TradeRow
	err := r.conn.Select(ctx, &rows, `
		SELECT exchange, symbol, id, timestamp, side, price, amount, cost, collected_at
		FROM trades FINAL
		WHERE exchange = ? AND symbol = ?
		ORDER BY timestamp DESC
		LIMIT ?`, exchange, symbol, limit)
	metrics.RecordDBQuery("clickhouse", "recent_trades", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, "select recent trades")
	}
	return rows, nil
}

func insertRows[T any](conn driver.Conn, table string) chbatch.FlushFunc[T] {
	return func(ctx context.Context, rows []T) (err error) {
		start := time.Now()
		defer func() {
			metrics.RecordDBQuery("clickhouse", "insert_"+table, time.Since(start), err)
		}()

		batch, err := conn.PrepareBatch(ctx, "INSERT INTO "+table)
		if err != nil {
			return errors.Wrap(err, "failed to prepare batch")
		}
		for i := range rows {
			if err := batch.AppendStruct(&rows[i]); err != nil {
				_ = batch.Abort()
				return errors.Wrapf(err, "append %s row", table)
			}
		}
		return batch.Send()
	}
}

func tickerRow(exchange string, t *exchanges.Ticker, now time.Time) TickerRow {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return TickerRow{
		Exchange:    exchange,
		Symbol:      t.Symbol,
		Timestamp:   ts,
		Last:        nullable(t.Last),
		Bid:         nullable(t.Bid),
		Ask:         nullable(t.Ask),
		High:        nullable(t.High),
		Low:         nullable(t.Low),
		BaseVolume:  nullable(t.BaseVolume),
		QuoteVolume: nullable(t.QuoteVolume),
		Percentage:  nullable(t.Percentage),
		CollectedAt: now,
	}
}

func tradeRow(exchange string, t *exchanges.Trade, now time.Time) (TradeRow, bool) {
	if t == nil || !t.Price.Valid || !t.Amount.Valid {
		return TradeRow{}, false
	}
	return TradeRow{
		Exchange:    exchange,
		Symbol:      t.Symbol,
		ID:          t.ID,
		Timestamp:   t.Timestamp,
		Side:        string(t.Side),
		Price:       t.Price.Decimal.InexactFloat64(),
		Amount:      t.Amount.Decimal.InexactFloat64(),
		Cost:        nullable(t.Cost),
		CollectedAt: now,
	}, true
}

func orderBookRow(exchange string, b *exchanges.OrderBook, now time.Time) OrderBookRow {
	ts := b.Timestamp
	if ts.IsZero() {
		ts = now
	}
	row := OrderBookRow{
		Exchange:    exchange,
		Symbol:      b.Symbol,
		Timestamp:   ts,
		Nonce:       b.Nonce,
		CollectedAt: now,
	}
	row.BidPrices, row.BidAmounts = splitLevels(b.Bids)
	row.AskPrices, row.AskAmounts = splitLevels(b.Asks)
	return row
}

func ohlcvRow(exchange, symbol, timeframe string, c *exchanges.OHLCV, now time.Time) (OHLCVRow, bool) {
	if c == nil || c.Timestamp.IsZero() || !c.Open.Valid || !c.High.Valid || !c.Low.Valid || !c.Close.Valid {
		return OHLCVRow{}, false
	}
	return OHLCVRow{
		Exchange:    exchange,
		Symbol:      symbol,
		Timeframe:   timeframe,
		OpenTime:    c.Timestamp,
		Open:        c.Open.Decimal.InexactFloat64(),
		High:        c.High.Decimal.InexactFloat64(),
		Low:         c.Low.Decimal.InexactFloat64(),
		Close:       c.Close.Decimal.InexactFloat64(),
		Volume:      nullable(c.Volume),
		CollectedAt: now,
	}, true
}

func splitLevels(levels []exchanges.PriceLevel) (prices, amounts []float64) {
	prices = make([]float64, len(levels))
	amounts = make([]float64, len(levels))
	for i, l := range levels {
		prices[i] = l.Price.InexactFloat64()
		amounts[i] = l.Amount.InexactFloat64()
	}
	return prices, amounts
}

func nullable(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
