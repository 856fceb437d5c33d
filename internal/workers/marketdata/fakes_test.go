package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/telegram"
	"exconnect/pkg/errors"
)

type fakeExchange struct {
	id      string
	symbols []string
	fail    error

	mu      sync.Mutex
	trades  []*exchanges.Trade
	since   []time.Time
	candles []*exchanges.OHLCV
	ohlcv   []string
}

func (f *fakeExchange) ID() string { return f.id }

func (f *fakeExchange) LoadMarkets(ctx context.Context, reload bool) (map[string]*exchanges.Market, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	out := make(map[string]*exchanges.Market, len(f.symbols))
	for _, s := range f.symbols {
		out[s] = &exchanges.Market{Symbol: s, Active: true, Type: exchanges.MarketTypeSpot}
	}
	return out, nil
}

func (f *fakeExchange) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	m, err := f.LoadMarkets(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]*exchanges.Market, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeExchange) Market(symbol string) (*exchanges.Market, error) {
	for _, s := range f.symbols {
		if s == symbol {
			return &exchanges.Market{Symbol: s}, nil
		}
	}
	return nil, errors.ErrInvalidSymbol
}

func (f *fakeExchange) Markets() []*exchanges.Market {
	m, _ := f.FetchMarkets(context.Background())
	return m
}

func (f *fakeExchange) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &exchanges.Ticker{Symbol: symbol, Last: exchanges.Some(decimal.NewFromInt(100))}, nil
}

func (f *fakeExchange) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	return &exchanges.OrderBook{
		Symbol: symbol,
		Bids:   []exchanges.PriceLevel{{Price: decimal.NewFromInt(99), Amount: decimal.NewFromInt(1)}},
		Asks:   []exchanges.PriceLevel{{Price: decimal.NewFromInt(101), Amount: decimal.NewFromInt(2)}},
	}, nil
}

func (f *fakeExchange) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	var out []*exchanges.Trade
	for _, t := range f.trades {
		if t.Symbol == symbol && !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ohlcv = append(f.ohlcv, symbol+" "+timeframe+" "+since.Format(time.RFC3339))
	var out []*exchanges.OHLCV
	for _, k := range f.candles {
		if !k.Timestamp.Before(since) {
			out = append(out, k)
		}
	}
	return out, nil
}

// bulkExchange only exposes the bulk ticker endpoint.
type bulkExchange struct {
	*fakeExchange
	requested []string
}

func (b *bulkExchange) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	b.requested = symbols
	out := make(map[string]*exchanges.Ticker)
	for _, s := range b.symbols {
		out[s] = &exchanges.Ticker{Symbol: s}
	}
	return out, nil
}

type fakeFactory struct {
	clients map[string]exchanges.Exchange
}

func (f *fakeFactory) GetClient(_ context.Context, id string) (exchanges.Exchange, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, errors.ErrUnknownExchange
	}
	return c, nil
}

func (f *fakeFactory) ListExchanges() []string {
	out := make([]string, 0, len(f.clients))
	for id := range f.clients {
		out = append(out, id)
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	tickers map[string]int
	trades  []*exchanges.Trade
	books   int
	candles map[string][]*exchanges.OHLCV
}

func newRecordingSink() *recordingSink {
	return &recordingSink{tickers: map[string]int{}, candles: map[string][]*exchanges.OHLCV{}}
}

func (s *recordingSink) WriteTickers(_ context.Context, exchange string, tickers []*exchanges.Ticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[exchange] += len(tickers)
	return nil
}

func (s *recordingSink) WriteTrades(_ context.Context, _ string, trades []*exchanges.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trades...)
	return nil
}

func (s *recordingSink) WriteOrderBook(context.Context, string, *exchanges.OrderBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books++
	return nil
}

func (s *recordingSink) WriteOHLCV(_ context.Context, exchange, symbol, timeframe string, candles []*exchanges.OHLCV) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := exchange + " " + symbol + " " + timeframe
	s.candles[key] = append(s.candles[key], candles...)
	return nil
}

type recordingAlerter struct {
	mu        sync.Mutex
	down      []telegram.Outage
	recovered []string
}

func (a *recordingAlerter) ExchangeDown(_ context.Context, o telegram.Outage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down = append(a.down, o)
	return nil
}

func (a *recordingAlerter) ExchangeRecovered(_ context.Context, exchange string, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recovered = append(a.recovered, exchange)
	return nil
}
