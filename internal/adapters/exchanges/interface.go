package exchanges

import (
	"context"
	"time"
)

// Exchange is the contract every adapter satisfies. Further capabilities
// are discovered by type assertion against the fetcher interfaces below.
type Exchange interface {
	ID() string
	LoadMarkets(ctx context.Context, reload bool) (map[string]*Market, error)
	FetchMarkets(ctx context.Context) ([]*Market, error)
	Market(symbol string) (*Market, error)
	Markets() []*Market
}

// TickerFetcher fetches one ticker.
type TickerFetcher interface {
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
}

// TickersFetcher fetches every ticker and keeps those in symbols (all when empty).
type TickersFetcher interface {
	FetchTickers(ctx context.Context, symbols []string) (map[string]*Ticker, error)
}

// OrderBookFetcher fetches a book; limit 0 uses the exchange default.
type OrderBookFetcher interface {
	FetchOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)
}

// TradesFetcher fetches public trades.
type TradesFetcher interface {
	FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*Trade, error)
}

// OHLCVFetcher fetches candles.
type OHLCVFetcher interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*OHLCV, error)
}

// BalanceFetcher fetches account balances.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context) (*Balances, error)
}

// OrderCreator places orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// OrderCanceler cancels orders. Some exchanges need the symbol.
type OrderCanceler interface {
	CancelOrder(ctx context.Context, id, symbol string) (*Order, error)
}

// OrderFetcher fetches one order.
type OrderFetcher interface {
	FetchOrder(ctx context.Context, id, symbol string) (*Order, error)
}

// OpenOrdersFetcher fetches open orders.
type OpenOrdersFetcher interface {
	FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*Order, error)
}

// ClosedOrdersFetcher fetches finished orders.
type ClosedOrdersFetcher interface {
	FetchClosedOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*Order, error)
}

// MyTradesFetcher fetches the account's own fills.
type MyTradesFetcher interface {
	FetchMyTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*Trade, error)
}

// ClockCalibrator measures the local-minus-server clock difference. The
// caller applies it with SetTimeDifference.
type ClockCalibrator interface {
	CalibrateClock(ctx context.Context) (time.Duration, error)
	SetTimeDifference(d time.Duration)
}

// MarketStore persists loaded markets between processes. LoadMarkets returns
// nil without error on a miss.
type MarketStore interface {
	LoadMarkets(ctx context.Context, exchange string) ([]*Market, error)
	SaveMarkets(ctx context.Context, exchange string, markets []*Market) error
}
