package exchanges

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Capability names an optional adapter feature.
type Capability string

const (
	CapTicker       Capability = "fetchTicker"
	CapTickers      Capability = "fetchTickers"
	CapOrderBook    Capability = "fetchOrderBook"
	CapTrades       Capability = "fetchTrades"
	CapOHLCV        Capability = "fetchOHLCV"
	CapBalance      Capability = "fetchBalance"
	CapCreateOrder  Capability = "createOrder"
	CapCancelOrder  Capability = "cancelOrder"
	CapFetchOrder   Capability = "fetchOrder"
	CapOpenOrders   Capability = "fetchOpenOrders"
	CapClosedOrders Capability = "fetchClosedOrders"
	CapMyTrades     Capability = "fetchMyTrades"
	CapCalibrate    Capability = "calibrateClock"

	CapDeposits       Capability = "fetchDeposits"
	CapWithdrawals    Capability = "fetchWithdrawals"
	CapDepositAddress Capability = "fetchDepositAddress"
	CapFundingFees    Capability = "fetchFundingFees"
	CapWithdraw       Capability = "withdraw"
	CapStatus         Capability = "fetchStatus"
)

// Capabilities lists what ex implements, in a stable order.
func Capabilities(ex Exchange) []Capability {
	var caps []Capability
	add := func(ok bool, c Capability) {
		if ok {
			caps = append(caps, c)
		}
	}
	_, ok := ex.(TickerFetcher)
	add(ok, CapTicker)
	_, ok = ex.(TickersFetcher)
	add(ok, CapTickers)
	_, ok = ex.(OrderBookFetcher)
	add(ok, CapOrderBook)
	_, ok = ex.(TradesFetcher)
	add(ok, CapTrades)
	_, ok = ex.(OHLCVFetcher)
	add(ok, CapOHLCV)
	_, ok = ex.(BalanceFetcher)
	add(ok, CapBalance)
	_, ok = ex.(OrderCreator)
	add(ok, CapCreateOrder)
	_, ok = ex.(OrderCanceler)
	add(ok, CapCancelOrder)
	_, ok = ex.(OrderFetcher)
	add(ok, CapFetchOrder)
	_, ok = ex.(OpenOrdersFetcher)
	add(ok, CapOpenOrders)
	_, ok = ex.(ClosedOrdersFetcher)
	add(ok, CapClosedOrders)
	_, ok = ex.(MyTradesFetcher)
	add(ok, CapMyTrades)
	_, ok = ex.(ClockCalibrator)
	add(ok, CapCalibrate)
	_, ok = ex.(DepositsFetcher)
	add(ok, CapDeposits)
	_, ok = ex.(WithdrawalsFetcher)
	add(ok, CapWithdrawals)
	_, ok = ex.(DepositAddressFetcher)
	add(ok, CapDepositAddress)
	_, ok = ex.(FundingFeesFetcher)
	add(ok, CapFundingFees)
	_, ok = ex.(Withdrawer)
	add(ok, CapWithdraw)
	_, ok = ex.(StatusFetcher)
	add(ok, CapStatus)
	return caps
}

// Has reports whether ex implements c.
func Has(ex Exchange, c Capability) bool {
	for _, have := range Capabilities(ex) {
		if have == c {
			return true
		}
	}
	return false
}

func notSupported(ex Exchange, c Capability) error {
	return Errorf(KindNotSupported, ex.ID(), "%s is not supported", c)
}

// FetchTicker uses the single-ticker endpoint, or filters the full ticker
// set when the exchange only publishes that.
func FetchTicker(ctx context.Context, ex Exchange, symbol string) (*Ticker, error) {
	if f, ok := ex.(TickerFetcher); ok {
		return f.FetchTicker(ctx, symbol)
	}
	if f, ok := ex.(TickersFetcher); ok {
		tickers, err := f.FetchTickers(ctx, []string{symbol})
		if err != nil {
			return nil, err
		}
		if t, ok := tickers[symbol]; ok {
			return t, nil
		}
		return nil, Errorf(KindBadSymbol, ex.ID(), "no ticker for %s", symbol)
	}
	return nil, notSupported(ex, CapTicker)
}

// FetchTickers uses the bulk endpoint, or queries each symbol in turn.
func FetchTickers(ctx context.Context, ex Exchange, symbols []string) (map[string]*Ticker, error) {
	if f, ok := ex.(TickersFetcher); ok {
		return f.FetchTickers(ctx, symbols)
	}
	f, ok := ex.(TickerFetcher)
	if !ok {
		return nil, notSupported(ex, CapTickers)
	}
	if len(symbols) == 0 {
		if _, err := ex.LoadMarkets(ctx, false); err != nil {
			return nil, err
		}
		for _, m := range ex.Markets() {
			symbols = append(symbols, m.Symbol)
		}
	}
	out := make(map[string]*Ticker, len(symbols))
	for _, s := range symbols {
		t, err := f.FetchTicker(ctx, s)
		if err != nil {
			return nil, err
		}
		out[s] = t
	}
	return out, nil
}

// FetchOrderBook fetches a book when supported.
func FetchOrderBook(ctx context.Context, ex Exchange, symbol string, limit int) (*OrderBook, error) {
	if f, ok := ex.(OrderBookFetcher); ok {
		return f.FetchOrderBook(ctx, symbol, limit)
	}
	return nil, notSupported(ex, CapOrderBook)
}

// FetchTrades fetches public trades when supported.
func FetchTrades(ctx context.Context, ex Exchange, symbol string, since time.Time, limit int) ([]*Trade, error) {
	if f, ok := ex.(TradesFetcher); ok {
		return f.FetchTrades(ctx, symbol, since, limit)
	}
	return nil, notSupported(ex, CapTrades)
}

// FetchOHLCV fetches candles when supported.
func FetchOHLCV(ctx context.Context, ex Exchange, symbol, timeframe string, since time.Time, limit int) ([]*OHLCV, error) {
	if f, ok := ex.(OHLCVFetcher); ok {
		return f.FetchOHLCV(ctx, symbol, timeframe, since, limit)
	}
	return nil, notSupported(ex, CapOHLCV)
}

// FetchBalance fetches balances when supported.
func FetchBalance(ctx context.Context, ex Exchange) (*Balances, error) {
	if f, ok := ex.(BalanceFetcher); ok {
		return f.FetchBalance(ctx)
	}
	return nil, notSupported(ex, CapBalance)
}

// CalibrateClock measures the clock skew of ex and stores it on that instance.
func CalibrateClock(ctx context.Context, ex Exchange) (time.Duration, error) {
	c, ok := ex.(ClockCalibrator)
	if !ok {
		return 0, notSupported(ex, CapCalibrate)
	}
	d, err := c.CalibrateClock(ctx)
	if err != nil {
		return 0, err
	}
	c.SetTimeDifference(d)
	return d, nil
}

// LadderStep is one rung of a ladder order.
type LadderStep struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// ExecuteLadderOrder breaks a large order into multiple limit orders.
func ExecuteLadderOrder(ctx context.Context, ex Exchange, template OrderRequest, steps []LadderStep) ([]*Order, error) {
	creator, ok := ex.(OrderCreator)
	if !ok {
		return nil, notSupported(ex, CapCreateOrder)
	}
	if template.Symbol == "" || len(steps) == 0 {
		return nil, Errorf(KindArgumentsRequired, ex.ID(), "ladder requires a symbol and at least one step")
	}

	orders := make([]*Order, 0, len(steps))
	for _, step := range steps {
		if !step.Amount.IsPositive() || !step.Price.IsPositive() {
			return orders, Errorf(KindInvalidOrder, ex.ID(), "ladder step needs positive price and amount")
		}
		req := template
		req.Type = OrderTypeLimit
		req.Price = Some(step.Price)
		req.Amount = step.Amount
		req.ClientOrderID = ""

		order, err := creator.CreateOrder(ctx, req)
		if err != nil {
			return orders, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// CancelAllOpen cancels every open order of symbol and returns the cancel results.
func CancelAllOpen(ctx context.Context, ex Exchange, symbol string) ([]*Order, error) {
	lister, ok := ex.(OpenOrdersFetcher)
	if !ok {
		return nil, notSupported(ex, CapOpenOrders)
	}
	canceler, ok := ex.(OrderCanceler)
	if !ok {
		return nil, notSupported(ex, CapCancelOrder)
	}
	open, err := lister.FetchOpenOrders(ctx, symbol, time.Time{}, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Order, 0, len(open))
	for _, o := range open {
		res, err := canceler.CancelOrder(ctx, o.ID, o.Symbol)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// SortedSymbols returns the keys of a ticker map in ascending order.
func SortedSymbols(tickers map[string]*Ticker) []string {
	out := make([]string, 0, len(tickers))
	for s := range tickers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
