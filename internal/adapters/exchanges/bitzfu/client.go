// Package bitzfu implements the Bit-Z contract adapter on top of the
// shared bitz core.
package bitzfu

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/bitz"
)

const (
	exchangeID = "bitzfu"
	rateLimit  = 1000 * time.Millisecond

	maxCandles      = 300
	defaultPageSize = 50
)

// Contract operations without a unified counterpart.
const (
	OpActivePositions exchanges.Operation = "activePositions"
	OpMyPositions     exchanges.Operation = "myPositions"
	OpTradeResult     exchanges.Operation = "tradeResult"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:    exchanges.Get("getContractCoin").In(bitz.Market),
	exchanges.OpFetchOHLCV:      exchanges.Get("getContractKline").In(bitz.Market),
	exchanges.OpFetchOrderBook:  exchanges.Get("getContractOrderBook").In(bitz.Market),
	exchanges.OpFetchTrades:     exchanges.Get("getContractTradesHistory").In(bitz.Market),
	exchanges.OpFetchTickers:    exchanges.Get("getContractTickers").In(bitz.Market),
	exchanges.OpCreateOrder:     exchanges.PrivatePost("addContractTrade").In(bitz.Contract),
	exchanges.OpCancelOrder:     exchanges.PrivatePost("cancelContractTrade").In(bitz.Contract),
	OpActivePositions:           exchanges.PrivatePost("getContractActivePositions").ReadOnly().In(bitz.Contract),
	exchanges.OpFetchBalance:    exchanges.PrivatePost("getContractAccountInfo").ReadOnly().In(bitz.Contract),
	OpMyPositions:               exchanges.PrivatePost("getContractMyPositions").ReadOnly().In(bitz.Contract),
	exchanges.OpFetchOrder:      exchanges.PrivatePost("getContractOrderResult").ReadOnly().In(bitz.Contract),
	exchanges.OpFetchOpenOrders: exchanges.PrivatePost("getContractOrder").ReadOnly().In(bitz.Contract),
	OpTradeResult:               exchanges.PrivatePost("getContractTradeResult").ReadOnly().In(bitz.Contract),
	exchanges.OpFetchOrders:     exchanges.PrivatePost("getContractMyHistoryTrade").ReadOnly().In(bitz.Contract),
	exchanges.OpFetchMyTrades:   exchanges.PrivatePost("getContractMyTrades").ReadOnly().In(bitz.Contract),
}

var timeframes = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
}

var statuses = map[string]exchanges.OrderStatus{
	"-1": exchanges.OrderStatusCanceled,
	"0":  exchanges.OrderStatusOpen,
	"1":  exchanges.OrderStatusClosed,
}

// Client is the Bit-Z contract adapter.
type Client struct {
	*bitz.Core
	api *exchanges.API
}

// New constructs a Bit-Z contract adapter. Options: hostname,
// defaultLeverage (1) and defaultIsCross (1 cross, -1 isolated).
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Core = bitz.NewCore(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Bit-Z Futures",
		BaseURL:   bitz.HostTemplate,
		RateLimit: rateLimit,
	}, cfg, c.FetchMarkets)
	c.api = exchanges.BindEndpoints(c.Base, endpoints)
	return c, nil
}

// API exposes the bound endpoints for calls without a typed wrapper.
func (c *Client) API() *exchanges.API { return c.api }

type contractRow struct {
	ContractID   exchanges.Text   `json:"contractId"`
	Pair         exchanges.Text   `json:"pair"`
	Symbol       exchanges.Text   `json:"symbol"`
	QuoteAnchor  exchanges.Text   `json:"quoteAnchor"`
	SettleAnchor exchanges.Text   `json:"settleAnchor"`
	MakerFee     exchanges.Number `json:"makerFee"`
	TakerFee     exchanges.Number `json:"takerFee"`
	PriceDec     exchanges.Number `json:"priceDec"`
	AnchorDec    exchanges.Number `json:"anchorDec"`
	Status       exchanges.Text   `json:"status"`
	IsReverse    exchanges.Text   `json:"isreverse"`
	MinAmount    exchanges.Number `json:"minAmount"`
	MaxAmount    exchanges.Number `json:"maxAmount"`
}

// FetchMarkets lists contracts. Reverse contracts are swaps; forward
// contracts are futures.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	env, err := c.Call(ctx, c.api, exchanges.OpFetchMarkets, nil)
	if err != nil {
		return nil, err
	}
	rows := bitz.List(env.Data)
	markets := make([]*exchanges.Market, 0, len(rows))
	for _, raw := range rows {
		var row contractRow
		if err := json.Unmarshal(raw, &row); err != nil || row.ContractID == "" {
			continue
		}
		baseID := row.Symbol.String()
		quoteID := row.QuoteAnchor.String()
		base := exchanges.CurrencyCode(strings.ToUpper(baseID), nil)
		quote := exchanges.CurrencyCode(strings.ToUpper(quoteID), nil)
		typ := exchanges.MarketTypeFuture
		if row.IsReverse == "1" {
			typ = exchanges.MarketTypeSwap
		}
		m := &exchanges.Market{
			ID:       row.ContractID.String(),
			Symbol:   exchanges.Symbol(base, quote),
			Base:     base,
			Quote:    quote,
			BaseID:   baseID,
			QuoteID:  quoteID,
			Active:   row.Status == "1",
			Type:     typ,
			SettleID: row.SettleAnchor.String(),
			Precision: exchanges.Precision{
				Mode:   exchanges.PrecisionDecimalPlaces,
				Amount: row.AnchorDec.NullDecimal,
				Price:  row.PriceDec.NullDecimal,
			},
			Limits: exchanges.Limits{
				Amount: exchanges.MinMax{Min: row.MinAmount.NullDecimal, Max: row.MaxAmount.NullDecimal},
			},
			Maker: row.MakerFee.NullDecimal,
			Taker: row.TakerFee.NullDecimal,
			Info:  raw,
		}
		if m.SettleID != "" {
			m.Settle = exchanges.CurrencyCode(strings.ToUpper(m.SettleID), nil)
		}
		if row.PriceDec.Valid {
			m.Limits.Price.Min = exchanges.Some(exchanges.PowTen(row.PriceDec.Int()))
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func (c *Client) contract(ctx context.Context, symbol string) (*exchanges.Market, int64, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, 0, err
	}
	id, err := c.ContractID(market)
	if err != nil {
		return nil, 0, err
	}
	return market, id, nil
}

// symbolFor resolves a contract id, falling back to the "BTC_USD" pair.
func (c *Client) symbolFor(contractID, pair string) (*exchanges.Market, string) {
	if m, ok := c.MarketByID(contractID); ok {
		return m, m.Symbol
	}
	if base, quote, ok := strings.Cut(pair, "_"); ok {
		return nil, exchanges.Symbol(exchanges.CurrencyCode(base, nil), exchanges.CurrencyCode(quote, nil))
	}
	return nil, ""
}

type tickerRow struct {
	ContractID  exchanges.Text   `json:"contractId"`
	Pair        exchanges.Text   `json:"pair"`
	Min         exchanges.Number `json:"min"`
	Max         exchanges.Number `json:"max"`
	Latest      exchanges.Number `json:"latest"`
	Change24h   exchanges.Number `json:"change24h"`
	BaseAmount  exchanges.Text   `json:"baseAmount"`
	QuoteVolumn exchanges.Text   `json:"quoteVolumn"`
}

// parseTicker derives open from the 24h change, which the exchange sends
// as a fraction. Volumes arrive as "286.231 BTC".
func (c *Client) parseTicker(raw json.RawMessage, ts time.Time) *exchanges.Ticker {
	var row tickerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	market, symbol := c.symbolFor(row.ContractID.String(), row.Pair.String())
	t := &exchanges.Ticker{
		Symbol:      symbol,
		Timestamp:   ts,
		High:        row.Max.NullDecimal,
		Low:         row.Min.NullDecimal,
		Last:        row.Latest.NullDecimal,
		BaseVolume:  exchanges.ParseLeadingDecimal(row.BaseAmount.String()),
		QuoteVolume: exchanges.ParseLeadingDecimal(row.QuoteVolumn.String()),
		Info:        raw,
	}
	pct := row.Change24h.NullDecimal
	if pct.Valid && t.Last.Valid && market != nil {
		denominator := decimal.NewFromInt(1).Add(pct.Decimal)
		if !denominator.IsZero() {
			open := exchanges.ParseDecimal(exchanges.PriceToPrecision(market, t.Last.Decimal.Div(denominator)))
			t.Open = open
			t.Change = exchanges.ParseDecimal(exchanges.PriceToPrecision(market, t.Last.Decimal.Sub(open.Decimal)))
		}
	}
	if pct.Valid {
		t.Percentage = exchanges.Some(pct.Decimal.Mul(decimal.NewFromInt(100)))
	}
	return exchanges.DeriveTicker(t)
}

// FetchTickers fetches all contract tickers. A single symbol narrows the
// request to its contract.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	params := exchanges.Params{}
	if len(symbols) == 1 {
		_, id, err := c.contract(ctx, symbols[0])
		if err != nil {
			return nil, err
		}
		params["contractId"] = id
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchTickers, params)
	if err != nil {
		return nil, err
	}
	ts := env.Timestamp()
	rows := bitz.List(env.Data)
	list := make([]*exchanges.Ticker, 0, len(rows))
	for _, raw := range rows {
		if t := c.parseTicker(raw, ts); t != nil {
			list = append(list, t)
		}
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

// FetchTicker fetches the ticker of one contract.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	tickers, err := c.FetchTickers(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	t, ok := tickers[symbol]
	if !ok {
		return nil, exchanges.Errorf(exchanges.KindExchange, exchangeID, "ticker %s could not be fetched", symbol)
	}
	return t, nil
}

// FetchOrderBook fetches the contract depth; limit maps to the depth type
// (5, 10, 15, 20, 30 or 100).
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, id, err := c.contract(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"contractId": id}
	if limit > 0 {
		params["depth"] = limit
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchOrderBook, params)
	if err != nil {
		return nil, err
	}
	var data struct {
		Bids json.RawMessage `json:"bids"`
		Asks json.RawMessage `json:"asks"`
	}
	if err := c.api.Decode(env.Data, &data); err != nil {
		return nil, err
	}
	bids := exchanges.ParseLevelObjects(data.Bids, "price", "amount")
	asks := exchanges.ParseLevelObjects(data.Asks, "price", "amount")
	return exchanges.NewOrderBook(market.Symbol, bids, asks, env.Timestamp()), nil
}

type tradeRow struct {
	TradeID    exchanges.Text   `json:"tradeId"`
	ContractID exchanges.Text   `json:"contractId"`
	Pair       exchanges.Text   `json:"pair"`
	Time       exchanges.Number `json:"time"`
	Price      exchanges.Number `json:"price"`
	Num        exchanges.Number `json:"num"`
	Type       exchanges.Text   `json:"type"`
	TradeFee   exchanges.Number `json:"tradeFee"`
}

// parseTrade reads public trades and private fills. Amounts are contracts,
// so swap costs are counted in contracts too.
func (c *Client) parseTrade(raw json.RawMessage, market *exchanges.Market) *exchanges.Trade {
	var row tradeRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	symbol := exchanges.SymbolOf(market)
	if market == nil && row.ContractID != "" {
		market, symbol = c.symbolFor(row.ContractID.String(), row.Pair.String())
	}
	t := &exchanges.Trade{
		ID:        row.TradeID.String(),
		Timestamp: exchanges.Seconds(row.Time.NullDecimal),
		Symbol:    symbol,
		Type:      exchanges.OrderTypeLimit,
		Side:      exchanges.SideFromString(row.Type.String()),
		Price:     row.Price.NullDecimal,
		Amount:    row.Num.NullDecimal,
		Info:      raw,
	}
	if market != nil && market.Type == exchanges.MarketTypeSwap {
		t.Cost = t.Amount
	}
	if market != nil && row.TradeFee.Valid {
		currency := market.Quote
		if market.Type == exchanges.MarketTypeSwap {
			currency = market.Base
		}
		t.Fee = &exchanges.Fee{Cost: row.TradeFee.NullDecimal, Currency: currency}
	}
	return exchanges.DeriveTrade(t, market)
}

func (c *Client) parseTrades(rows []json.RawMessage, market *exchanges.Market, since time.Time, limit int) []*exchanges.Trade {
	trades := make([]*exchanges.Trade, 0, len(rows))
	for _, raw := range rows {
		t := c.parseTrade(raw, market)
		if t == nil || (!since.IsZero() && t.Timestamp.Before(since)) {
			continue
		}
		trades = append(trades, t)
	}
	trades = exchanges.SortTrades(trades)
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return trades
}

// FetchTrades fetches recent trades. The page size is clamped to 10..300.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	market, id, err := c.contract(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"contractId": id}
	if limit > 0 {
		params["pageSize"] = min(max(limit, 10), 300)
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchTrades, params)
	if err != nil {
		return nil, err
	}
	return c.parseTrades(bitz.List(env.Data, "lists"), market, since, limit), nil
}

// FetchOHLCV fetches up to 300 klines.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	_, id, err := c.contract(ctx, symbol)
	if err != nil {
		return nil, err
	}
	typ, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"contractId": id, "type": typ}
	if limit > 0 {
		params["size"] = min(limit, maxCandles)
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchOHLCV, params)
	if err != nil {
		return nil, err
	}
	rows := bitz.List(env.Data, "lists")
	candles := make([]*exchanges.OHLCV, 0, len(rows))
	for _, raw := range rows {
		var row []exchanges.Number
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		candle := exchanges.CandleRow(row)
		if candle == nil || (!since.IsZero() && candle.Timestamp.Before(since)) {
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// FetchBalance reports the per-coin balance as total; free and used are
// not published.
func (c *Client) FetchBalance(ctx context.Context) (*exchanges.Balances, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchBalance, nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Balances []struct {
			Coin    exchanges.Text   `json:"coin"`
			Balance exchanges.Number `json:"balance"`
		} `json:"balances"`
	}
	if err := c.api.Decode(env.Data, &data); err != nil {
		return nil, err
	}
	out := exchanges.NewBalances(env.Timestamp())
	out.Info = env.Data
	for _, b := range data.Balances {
		code := exchanges.CurrencyCode(strings.ToUpper(b.Coin.String()), nil)
		out.Set(code, decimal.NullDecimal{}, decimal.NullDecimal{}, b.Balance.NullDecimal)
	}
	return out, nil
}

type orderRow struct {
	OrderID     exchanges.Text   `json:"orderId"`
	ContractID  exchanges.Text   `json:"contractId"`
	Pair        exchanges.Text   `json:"pair"`
	Amount      exchanges.Number `json:"amount"`
	Price       exchanges.Number `json:"price"`
	Type        exchanges.Text   `json:"type"`
	Direction   exchanges.Text   `json:"direction"`
	OrderStatus exchanges.Text   `json:"orderStatus"`
	Available   exchanges.Number `json:"available"`
	Time        exchanges.Number `json:"time"`
}

// parseOrder maps direction 1 to buy and reads available as the
// remaining amount.
func (c *Client) parseOrder(raw json.RawMessage, market *exchanges.Market) *exchanges.Order {
	var row orderRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	symbol := exchanges.SymbolOf(market)
	if market == nil {
		market, symbol = c.symbolFor(row.ContractID.String(), row.Pair.String())
	}
	o := &exchanges.Order{
		ID:        row.OrderID.String(),
		Timestamp: exchanges.Seconds(row.Time.NullDecimal),
		Symbol:    symbol,
		Type:      exchanges.OrderTypeFromString(row.Type.String()),
		Price:     row.Price.NullDecimal,
		Amount:    row.Amount.NullDecimal,
		Remaining: row.Available.NullDecimal,
		Info:      raw,
	}
	if row.OrderStatus != "" {
		o.Status = exchanges.MapStatus(statuses, row.OrderStatus.String())
	}
	switch row.Direction {
	case "1":
		o.Side = exchanges.SideBuy
	case "-1":
		o.Side = exchanges.SideSell
	}
	if o.Amount.Valid && o.Remaining.Valid {
		o.Remaining = exchanges.FloorZero(o.Remaining)
		o.Filled = exchanges.FloorZero(exchanges.Sub(o.Amount, o.Remaining))
	}
	// Swap cost is counted in contracts, so no average price follows from it.
	if market != nil && market.Type == exchanges.MarketTypeSwap {
		if o.Price.Valid && o.Filled.Valid {
			o.Cost = o.Filled
		}
		return o
	}
	return exchanges.DeriveOrder(o)
}

func (c *Client) parseOrders(rows []json.RawMessage, since time.Time, limit int) []*exchanges.Order {
	orders := make([]*exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		o := c.parseOrder(raw, nil)
		if o == nil || (!since.IsZero() && o.Timestamp.Before(since)) {
			continue
		}
		orders = append(orders, o)
	}
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

// CreateOrder places a contract order with the default leverage and
// margin mode unless req.Params override them.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	market, id, err := c.contract(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	direction := -1
	if req.Side == exchanges.SideBuy {
		direction = 1
	}
	params := exchanges.Params{
		"contractId": id,
		"amount":     exchanges.AmountToPrecision(market, req.Amount),
		"leverage":   c.Option("defaultLeverage", 1),
		"direction":  direction,
		"type":       strings.ToLower(string(req.Type)),
		"isCross":    c.Option("defaultIsCross", 1),
	}
	if req.Price.Valid {
		params["price"] = req.Price.Decimal
	}
	env, err := c.Call(ctx, c.api, exchanges.OpCreateOrder, params.Extend(req.Params))
	if err != nil {
		return nil, err
	}
	var data struct {
		OrderID exchanges.Text `json:"orderId"`
	}
	if err := c.api.Decode(env.Data, &data); err != nil {
		return nil, err
	}
	return &exchanges.Order{
		ID:        data.OrderID.String(),
		Timestamp: env.Timestamp(),
		Symbol:    market.Symbol,
		Type:      req.Type,
		Side:      req.Side,
		Price:     req.Price,
		Amount:    exchanges.Some(req.Amount),
		Status:    exchanges.OrderStatusOpen,
		Info:      env.Data,
	}, nil
}

func (c *Client) orderID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, exchanges.Errorf(exchanges.KindBadRequest, exchangeID, "order id %q is not numeric", id)
	}
	return n, nil
}

// CancelOrder cancels an order by its entrust sheet id.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	n, err := c.orderID(id)
	if err != nil {
		return nil, err
	}
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	env, err := c.Call(ctx, c.api, exchanges.OpCancelOrder, exchanges.Params{"entrustSheetId": n})
	if err != nil {
		return nil, err
	}
	return &exchanges.Order{
		ID:     id,
		Symbol: symbol,
		Status: exchanges.OrderStatusCanceled,
		Info:   env.Data,
	}, nil
}

// FetchOrder fetches one order by id.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchOrder, exchanges.Params{"entrustSheetIds": id})
	if err != nil {
		return nil, err
	}
	rows := bitz.List(env.Data, "data")
	if len(rows) == 0 {
		return nil, exchanges.Errorf(exchanges.KindOrderNotFound, exchangeID, "order %s could not be fetched", id)
	}
	o := c.parseOrder(rows[0], nil)
	if o == nil {
		return nil, exchanges.Errorf(exchanges.KindExchange, exchangeID, "order %s is malformed", id).WithBody(string(rows[0]))
	}
	return o, nil
}

func (c *Client) fetchOrders(ctx context.Context, op exchanges.Operation, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if symbol == "" {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "%s requires a symbol", op)
	}
	_, id, err := c.contract(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"contractId": id}
	if op == exchanges.OpFetchOrders {
		params["page"] = 1
		params["pageSize"] = defaultPageSize
		if limit > 0 {
			params["pageSize"] = limit
		}
	}
	env, err := c.Call(ctx, c.api, op, params)
	if err != nil {
		return nil, err
	}
	return c.parseOrders(bitz.List(env.Data, "data"), since, limit), nil
}

// FetchOrders fetches the order history of one contract.
func (c *Client) FetchOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	return c.fetchOrders(ctx, exchanges.OpFetchOrders, symbol, since, limit)
}

// FetchOpenOrders fetches the unfinished orders of one contract.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	return c.fetchOrders(ctx, exchanges.OpFetchOpenOrders, symbol, since, limit)
}

// FetchClosedOrders keeps the history entries that are no longer open.
func (c *Client) FetchClosedOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	all, err := c.fetchOrders(ctx, exchanges.OpFetchOrders, symbol, since, limit)
	if err != nil {
		return nil, err
	}
	closed := make([]*exchanges.Order, 0, len(all))
	for _, o := range all {
		if o.Status != exchanges.OrderStatusOpen {
			closed = append(closed, o)
		}
	}
	return closed, nil
}

// FetchMyTrades fetches the account's fills on one contract.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	if symbol == "" {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "fetchMyTrades requires a symbol")
	}
	market, id, err := c.contract(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"contractId": id, "page": 1}
	if limit > 0 {
		params["pageSize"] = limit
	}
	env, err := c.Call(ctx, c.api, exchanges.OpFetchMyTrades, params)
	if err != nil {
		return nil, err
	}
	return c.parseTrades(bitz.List(env.Data, "data"), market, since, limit), nil
}
