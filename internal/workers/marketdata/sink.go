package marketdata

import (
	"context"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
)

// Sink receives normalized records. The kafka producer and the clickhouse
// repository both implement it.
type Sink interface {
	WriteTickers(ctx context.Context, exchange string, tickers []*exchanges.Ticker) error
	WriteTrades(ctx context.Context, exchange string, trades []*exchanges.Trade) error
	WriteOrderBook(ctx context.Context, exchange string, book *exchanges.OrderBook) error
	WriteOHLCV(ctx context.Context, exchange, symbol, timeframe string, candles []*exchanges.OHLCV) error
}

// MultiSink fans every write out to all sinks and joins their failures.
type MultiSink []Sink

func (m MultiSink) WriteTickers(ctx context.Context, exchange string, tickers []*exchanges.Ticker) error {
	var errs errors.MultiError
	for _, s := range m {
		errs.Add(s.WriteTickers(ctx, exchange, tickers))
	}
	return errs.ToError()
}

func (m MultiSink) WriteTrades(ctx context.Context, exchange string, trades []*exchanges.Trade) error {
	var errs errors.MultiError
	for _, s := range m {
		errs.Add(s.WriteTrades(ctx, exchange, trades))
	}
	return errs.ToError()
}

func (m MultiSink) WriteOrderBook(ctx context.Context, exchange string, book *exchanges.OrderBook) error {
	var errs errors.MultiError
	for _, s := range m {
		errs.Add(s.WriteOrderBook(ctx, exchange, book))
	}
	return errs.ToError()
}

func (m MultiSink) WriteOHLCV(ctx context.Context, exchange, symbol, timeframe string, candles []*exchanges.OHLCV) error {
	var errs errors.MultiError
	for _, s := range m {
		errs.Add(s.WriteOHLCV(ctx, exchange, symbol, timeframe, candles))
	}
	return errs.ToError()
}
