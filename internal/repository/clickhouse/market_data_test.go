package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/config"
	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/testsupport"
)

var collected = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func some(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestTickerRow(t *testing.T) {
	row := tickerRow("felixo", &exchanges.Ticker{
		Symbol: "BTC/TRY",
		Last:   some("2150000.5"),
		Bid:    some("2150000"),
	}, collected)

	assert.Equal(t, "felixo", row.Exchange)
	assert.Equal(t, collected, row.Timestamp, "missing timestamp falls back to collection time")
	require.NotNil(t, row.Last)
	assert.Equal(t, 2150000.5, *row.Last)
	assert.Nil(t, row.Ask)
	assert.Nil(t, row.Percentage)
}

func TestTradeRow(t *testing.T) {
	tests := []struct {
		name  string
		trade *exchanges.Trade
		ok    bool
	}{
		{"complete", &exchanges.Trade{ID: "1", Symbol: "LTC/BTC", Side: exchanges.SideSell, Price: some("0.002"), Amount: some("3")}, true},
		{"no price", &exchanges.Trade{ID: "2", Amount: some("3")}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := tradeRow("tradeogre", tt.trade, collected)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, "sell", row.Side)
				assert.Equal(t, 0.002, row.Price)
				assert.Nil(t, row.Cost)
			}
		})
	}
}

func TestOrderBookRow(t *testing.T) {
	ts := collected.Add(-time.Second)
	row := orderBookRow("gateiofu", &exchanges.OrderBook{
		Symbol:    "BTC/USD",
		Timestamp: ts,
		Nonce:     42,
		Bids: []exchanges.PriceLevel{
			{Price: decimal.RequireFromString("100"), Amount: decimal.RequireFromString("1")},
			{Price: decimal.RequireFromString("99.5"), Amount: decimal.RequireFromString("2")},
		},
	}, collected)

	assert.Equal(t, ts, row.Timestamp)
	assert.Equal(t, int64(42), row.Nonce)
	assert.Equal(t, []float64{100, 99.5}, row.BidPrices)
	assert.Equal(t, []float64{1, 2}, row.BidAmounts)
	assert.Empty(t, row.AskPrices)
}

func TestOHLCVRow(t *testing.T) {
	open := collected.Add(-time.Hour)
	tests := []struct {
		name   string
		candle *exchanges.OHLCV
		ok     bool
	}{
		{"complete", &exchanges.OHLCV{Timestamp: open, Open: some("1"), High: some("3"), Low: some("0.5"), Close: some("2"), Volume: some("10")}, true},
		{"no volume", &exchanges.OHLCV{Timestamp: open, Open: some("1"), High: some("3"), Low: some("0.5"), Close: some("2")}, true},
		{"no close", &exchanges.OHLCV{Timestamp: open, Open: some("1"), High: some("3"), Low: some("0.5")}, false},
		{"no time", &exchanges.OHLCV{Open: some("1"), High: some("3"), Low: some("0.5"), Close: some("2")}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := ohlcvRow("coinbene", "BTC/USDT", "1h", tt.candle, collected)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, "1h", row.Timeframe)
			assert.Equal(t, open, row.OpenTime)
			assert.Equal(t, 3.0, row.High)
			assert.Equal(t, collected, row.CollectedAt)
			if tt.candle.Volume.Valid {
				require.NotNil(t, row.Volume)
				assert.Equal(t, 10.0, *row.Volume)
			} else {
				assert.Nil(t, row.Volume)
			}
		})
	}
}

func TestMarketDataRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	helper := testsupport.NewTestClickHouse(t)
	helper.RegisterTableCleanup(t, "trades", "exchange = 'test_exchange'")
	helper.RegisterTableCleanup(t, "tickers", "exchange = 'test_exchange'")
	helper.RegisterTableCleanup(t, "orderbook_snapshots", "exchange = 'test_exchange'")
	helper.RegisterTableCleanup(t, "ohlcv", "exchange = 'test_exchange'")

	ctx := context.Background()
	repo := NewMarketDataRepository(helper.Client().Conn(), config.ClickHouseConfig{BatchSize: 100})

	require.NoError(t, repo.WriteTickers(ctx, "test_exchange", []*exchanges.Ticker{
		{Symbol: "BTC/USDT", Timestamp: collected, Last: some("65000")},
	}))
	require.NoError(t, repo.WriteTrades(ctx, "test_exchange", []*exchanges.Trade{
		{ID: "a", Symbol: "BTC/USDT", Timestamp: collected, Side: exchanges.SideBuy, Price: some("65000"), Amount: some("0.1")},
		{ID: "b", Symbol: "BTC/USDT", Timestamp: collected.Add(time.Second), Side: exchanges.SideSell, Price: some("65001"), Amount: some("0.2")},
	}))
	require.NoError(t, repo.WriteOrderBook(ctx, "test_exchange", &exchanges.OrderBook{Symbol: "BTC/USDT"}))
	candle := &exchanges.OHLCV{Timestamp: collected, Open: some("1"), High: some("2"), Low: some("1"), Close: some("2")}
	require.NoError(t, repo.WriteOHLCV(ctx, "test_exchange", "BTC/USDT", "1m", []*exchanges.OHLCV{candle}))
	require.NoError(t, repo.WriteOHLCV(ctx, "test_exchange", "BTC/USDT", "1m", []*exchanges.OHLCV{candle}))
	require.NoError(t, repo.Flush(ctx))

	assert.Equal(t, uint64(1), helper.CountRows(t, "tickers", "exchange = 'test_exchange'"))
	assert.Equal(t, uint64(1), helper.CountRows(t, "orderbook_snapshots", "exchange = 'test_exchange'"))

	trades, err := repo.RecentTrades(ctx, "test_exchange", "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "b", trades[0].ID)

	candles, err := repo.LatestCandles(ctx, "test_exchange", "BTC/USDT", "1m", 10)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 2.0, candles[0].Close)
}
