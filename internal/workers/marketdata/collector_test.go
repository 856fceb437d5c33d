package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
)

func TestTickerCollector(t *testing.T) {
	single := &fakeExchange{id: "felixo", symbols: []string{"BTC/USDT", "ETH/USDT", "LTC/BTC"}}
	bulk := &bulkExchange{fakeExchange: &fakeExchange{id: "tradeogre", symbols: []string{"BTC/USDT"}}}
	factory := &fakeFactory{clients: map[string]exchanges.Exchange{"felixo": single, "tradeogre": bulk}}
	sink := newRecordingSink()

	c := NewTickerCollector(factory, sink, Options{
		Exchanges:      []string{"felixo", "tradeogre"},
		Symbols:        []string{"BTC/USDT", "ETH/USDT", "XRP/USDT"},
		MaxConcurrency: 2,
	}, time.Minute)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, sink.tickers["felixo"], "unlisted symbols are skipped")
	assert.Equal(t, 1, sink.tickers["tradeogre"])
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "XRP/USDT"}, bulk.requested)
}

func TestFanOutPartialAndTotalFailure(t *testing.T) {
	ok := &fakeExchange{id: "bcio", symbols: []string{"BTC/USDT"}}
	broken := &fakeExchange{id: "coinbene", fail: errors.ErrExchangeUnavailable}

	tests := []struct {
		name      string
		exchanges []string
		wantErr   bool
	}{
		{"one of two fails", []string{"bcio", "coinbene"}, false},
		{"all fail", []string{"coinbene"}, true},
		{"unknown exchange", []string{"nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &fakeFactory{clients: map[string]exchanges.Exchange{"bcio": ok, "coinbene": broken}}
			c := NewOrderBookCollector(factory, newRecordingSink(), Options{
				Exchanges: tt.exchanges,
				Symbols:   []string{"BTC/USDT"},
			}, 10, time.Minute)

			err := c.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderBookCollector(t *testing.T) {
	ex := &fakeExchange{id: "primexbt", symbols: []string{"BTC/USDT", "ETH/USDT"}}
	sink := newRecordingSink()
	c := NewOrderBookCollector(&fakeFactory{clients: map[string]exchanges.Exchange{"primexbt": ex}}, sink, Options{
		Symbols: []string{"BTC/USDT", "ETH/USDT"},
	}, 5, time.Minute)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, sink.books)
}

func TestTradesCollectorDeduplicates(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	ex := &fakeExchange{id: "bitclude", symbols: []string{"BTC/USDT"}}
	ex.trades = []*exchanges.Trade{
		{ID: "1", Symbol: "BTC/USDT", Timestamp: t0},
		{ID: "2", Symbol: "BTC/USDT", Timestamp: t0.Add(time.Second)},
	}
	sink := newRecordingSink()
	c := NewTradesCollector(&fakeFactory{clients: map[string]exchanges.Exchange{"bitclude": ex}}, sink, Options{
		Symbols: []string{"BTC/USDT"},
	}, 50, time.Minute)

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, sink.trades, 2)

	ex.trades = append(ex.trades,
		&exchanges.Trade{ID: "3", Symbol: "BTC/USDT", Timestamp: t0.Add(time.Second)},
		&exchanges.Trade{ID: "4", Symbol: "BTC/USDT", Timestamp: t0.Add(2 * time.Second)},
	)
	require.NoError(t, c.Run(context.Background()))

	ids := make([]string, 0, len(sink.trades))
	for _, tr := range sink.trades {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
	assert.Equal(t, []time.Time{{}, t0.Add(time.Second)}, ex.since)
}

func TestOHLCVCollectorResendsOpenCandle(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	candle := func(at time.Time, close int64) *exchanges.OHLCV {
		return &exchanges.OHLCV{Timestamp: at, Close: exchanges.Some(decimal.NewFromInt(close))}
	}
	ex := &fakeExchange{id: "coinsuper", symbols: []string{"BTC/USD"}}
	ex.candles = []*exchanges.OHLCV{candle(t0, 1), candle(t0.Add(time.Minute), 2)}
	sink := newRecordingSink()
	c := NewOHLCVCollector(&fakeFactory{clients: map[string]exchanges.Exchange{"coinsuper": ex}}, sink, Options{
		Symbols: []string{"BTC/USD", "ETH/USD"},
	}, []string{"1m", "1h"}, 10, time.Minute)
	assert.Equal(t, "ohlcv_collector", c.Name())

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, sink.candles["coinsuper BTC/USD 1m"], 2)
	require.Len(t, sink.candles["coinsuper BTC/USD 1h"], 2)

	ex.candles = []*exchanges.OHLCV{
		candle(t0, 1),
		candle(t0.Add(time.Minute), 3),
		candle(t0.Add(2*time.Minute), 4),
	}
	require.NoError(t, c.Run(context.Background()))

	got := sink.candles["coinsuper BTC/USD 1m"]
	require.Len(t, got, 4)
	assert.Equal(t, t0.Add(time.Minute), got[2].Timestamp, "the last candle is polled again")
	assert.Equal(t, "3", got[2].Close.Decimal.String())
	assert.Equal(t, t0.Add(2*time.Minute), got[3].Timestamp)
	assert.Contains(t, ex.ohlcv, "BTC/USD 1m "+t0.Add(time.Minute).Format(time.RFC3339))
	assert.Len(t, ex.ohlcv, 4, "unlisted symbols are skipped")
}

func TestMarketsRefresher(t *testing.T) {
	ex := &fakeExchange{id: "gateiofu", symbols: []string{"BTC/USDT:USDT"}}
	r := NewMarketsRefresher(&fakeFactory{clients: map[string]exchanges.Exchange{"gateiofu": ex}}, Options{}, time.Hour)
	assert.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "markets_refresher", r.Name())
}

func TestMultiSink(t *testing.T) {
	a, b := newRecordingSink(), newRecordingSink()
	sink := MultiSink{a, b}

	require.NoError(t, sink.WriteTickers(context.Background(), "bcio", []*exchanges.Ticker{{Symbol: "BTC/USDT"}}))
	require.NoError(t, sink.WriteOrderBook(context.Background(), "bcio", &exchanges.OrderBook{}))
	assert.Equal(t, 1, a.tickers["bcio"])
	assert.Equal(t, 1, b.tickers["bcio"])
	assert.Equal(t, 1, b.books)

	require.NoError(t, sink.WriteOHLCV(context.Background(), "bcio", "BTC/USDT", "5m", []*exchanges.OHLCV{{}}))
	assert.Len(t, a.candles["bcio BTC/USDT 5m"], 1)
	assert.Len(t, b.candles["bcio BTC/USDT 5m"], 1)
}
