// Package coinbene implements the CoinBene spot adapter.
package coinbene

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
)

const (
	exchangeID = "coinbene"
	baseURL    = "https://openapi-exchange.coinbene.com"
	prefix     = "api/exchange/v2/"
	rateLimit  = 1500 * time.Millisecond

	defaultDepth = 10
	codeOK       = "200"
)

// Operations without a unified counterpart.
const (
	OpTradePair   exchanges.Operation = "tradePair"
	OpRates       exchanges.Operation = "rates"
	OpAccount     exchanges.Operation = "account"
	OpOrderFills  exchanges.Operation = "orderFills"
	OpBatchCancel exchanges.Operation = "batchCancel"
	OpBatchPlace  exchanges.Operation = "batchPlace"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:      exchanges.Get(prefix + "market/tradePair/list"),
	OpTradePair:                   exchanges.Get(prefix + "market/tradePair/one"),
	exchanges.OpFetchTickers:      exchanges.Get(prefix + "market/ticker/list"),
	exchanges.OpFetchTicker:       exchanges.Get(prefix + "market/ticker/one"),
	exchanges.OpFetchOrderBook:    exchanges.Get(prefix + "market/orderBook"),
	exchanges.OpFetchTrades:       exchanges.Get(prefix + "market/trades"),
	exchanges.OpFetchOHLCV:        exchanges.Get(prefix + "market/instruments/candles"),
	OpRates:                       exchanges.Get(prefix + "market/rate/list"),
	exchanges.OpFetchBalance:      exchanges.PrivateGet(prefix + "account/list"),
	OpAccount:                     exchanges.PrivateGet(prefix + "account/one"),
	exchanges.OpFetchOrder:        exchanges.PrivateGet(prefix + "order/info"),
	exchanges.OpFetchOpenOrders:   exchanges.PrivateGet(prefix + "order/openOrders"),
	exchanges.OpFetchClosedOrders: exchanges.PrivateGet(prefix + "order/closedOrders"),
	OpOrderFills:                  exchanges.PrivateGet(prefix + "order/trade/fills"),
	exchanges.OpCreateOrder:       exchanges.PrivatePost(prefix + "order/place"),
	exchanges.OpCancelOrder:       exchanges.PrivatePost(prefix + "order/cancel"),
	OpBatchCancel:                 exchanges.PrivatePost(prefix + "order/batchCancel"),
	OpBatchPlace:                  exchanges.PrivatePost(prefix + "order/batchPlaceOrder"),
}

var timeframes = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
	"1M":  "M",
}

var (
	orderTypes = map[exchanges.OrderType]string{
		exchanges.OrderTypeLimit:  "1",
		exchanges.OrderTypeMarket: "2",
	}
	directions = map[exchanges.Side]string{
		exchanges.SideBuy:  "1",
		exchanges.SideSell: "2",
	}
	statuses = map[string]exchanges.OrderStatus{
		"Open":                exchanges.OrderStatusOpen,
		"Filled":              exchanges.OrderStatusClosed,
		"Cancelled":           exchanges.OrderStatusCanceled,
		"Partially cancelled": exchanges.OrderStatusCanceled,
	}
	tradingFee = exchanges.Float(0.001)
)

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"429":   exchanges.KindDDoSProtection,
		"430":   exchanges.KindExchange,
		"10001": exchanges.KindBadRequest,
		"10002": exchanges.KindBadRequest,
		"10003": exchanges.KindBadRequest,
		"10005": exchanges.KindInvalidNonce,
		"10006": exchanges.KindAuthentication,
		"10007": exchanges.KindBadRequest,
		"10008": exchanges.KindInvalidNonce,
		"10009": exchanges.KindExchangeNotAvailable,
		"10010": exchanges.KindAuthentication,
		"11000": exchanges.KindBadRequest,
		"11001": exchanges.KindBadRequest,
		"11002": exchanges.KindInvalidOrder,
		"11003": exchanges.KindExchange,
		"11004": exchanges.KindInvalidOrder,
		"11005": exchanges.KindInvalidOrder,
		"11007": exchanges.KindExchange,
		"51800": exchanges.KindExchange,
		"51801": exchanges.KindOrderNotFound,
		"51802": exchanges.KindBadSymbol,
		"51803": exchanges.KindInvalidOrder,
		"51804": exchanges.KindInvalidOrder,
		"51805": exchanges.KindInvalidOrder,
		"51806": exchanges.KindInvalidOrder,
		"51807": exchanges.KindInvalidOrder,
		"51808": exchanges.KindInvalidOrder,
		"51809": exchanges.KindInsufficientFunds,
		"51810": exchanges.KindExchange,
		"51811": exchanges.KindPermissionDenied,
		"51812": exchanges.KindInvalidOrder,
		"51813": exchanges.KindInvalidOrder,
		"51814": exchanges.KindInvalidOrder,
		"51815": exchanges.KindInvalidOrder,
		"51816": exchanges.KindBadRequest,
		"51817": exchanges.KindBadSymbol,
		"51818": exchanges.KindInvalidOrder,
		"51819": exchanges.KindInvalidOrder,
		"51820": exchanges.KindInvalidOrder,
		"51821": exchanges.KindInvalidOrder,
		"51822": exchanges.KindInvalidOrder,
		"51823": exchanges.KindInvalidOrder,
		"51824": exchanges.KindInvalidOrder,
		"51825": exchanges.KindInvalidOrder,
		"51826": exchanges.KindInvalidOrder,
		"51827": exchanges.KindInvalidOrder,
		"51828": exchanges.KindInvalidOrder,
		"51829": exchanges.KindInvalidOrder,
		"51830": exchanges.KindInvalidOrder,
		"51831": exchanges.KindInvalidOrder,
		"51832": exchanges.KindInvalidOrder,
		"51833": exchanges.KindInvalidOrder,
		"51834": exchanges.KindInvalidOrder,
		"51835": exchanges.KindExchange,
		"51836": exchanges.KindOrderNotFound,
		"51837": exchanges.KindInvalidOrder,
		"51838": exchanges.KindInvalidOrder,
		"51839": exchanges.KindExchange,
		"51840": exchanges.KindExchange,
		"51841": exchanges.KindInvalidOrder,
		"51842": exchanges.KindInvalidOrder,
		"51843": exchanges.KindInvalidOrder,
		"51844": exchanges.KindBadRequest,
		"51845": exchanges.KindBadRequest,
		"51846": exchanges.KindBadRequest,
		"51847": exchanges.KindBadRequest,
		"51848": exchanges.KindInvalidOrder,
		"51849": exchanges.KindInvalidOrder,
		"51850": exchanges.KindExchange,
		"51851": exchanges.KindBadRequest,
	},
}

// Client is the CoinBene spot adapter. Requests address markets by their
// slashed id ("BTC/USDT"); market ids are the unslashed form.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a CoinBene adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "CoinBene",
		BaseURL:   baseURL,
		RateLimit: rateLimit,
	}, cfg, exchanges.Hooks{
		Signer:  exchanges.SignerFunc(c.sign),
		Errors:  exchanges.ErrorHandlerFunc(c.handleError),
		Markets: c.FetchMarkets,
	})
	c.api = exchanges.BindEndpoints(c.Base, endpoints)
	return c, nil
}

// API exposes the bound endpoints.
func (c *Client) API() *exchanges.API { return c.api }

func slashedID(m *exchanges.Market) string {
	return strings.ToUpper(m.BaseID + "/" + m.QuoteID)
}

// unslash turns "btc/usdt" into the market id "BTCUSDT".
func unslash(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "/", ""))
}

type envelope struct {
	Code exchanges.Text  `json:"code"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, op exchanges.Operation, params exchanges.Params, target any) error {
	var env envelope
	if err := c.api.CallJSON(ctx, op, params, &env); err != nil {
		return err
	}
	if target == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return c.api.Decode(env.Data, target)
}

type pairRow struct {
	Symbol          exchanges.Text   `json:"symbol"`
	PricePrecision  exchanges.Number `json:"pricePrecision"`
	AmountPrecision exchanges.Number `json:"amountPrecision"`
	MinAmount       exchanges.Number `json:"minAmount"`
}

// FetchMarkets lists trade pairs.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var rows []json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchMarkets, nil, &rows); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(rows))
	for _, raw := range rows {
		var row pairRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		baseID, quoteID, ok := strings.Cut(strings.ToUpper(row.Symbol.String()), "/")
		if !ok {
			continue
		}
		base := exchanges.CurrencyCode(baseID, nil)
		quote := exchanges.CurrencyCode(quoteID, nil)
		markets = append(markets, &exchanges.Market{
			ID:      baseID + quoteID,
			Symbol:  exchanges.Symbol(base, quote),
			Base:    base,
			Quote:   quote,
			BaseID:  strings.ToLower(baseID),
			QuoteID: strings.ToLower(quoteID),
			Active:  true,
			Type:    exchanges.MarketTypeSpot,
			Precision: exchanges.Precision{
				Mode:   exchanges.PrecisionDecimalPlaces,
				Amount: row.AmountPrecision.NullDecimal,
				Price:  row.PricePrecision.NullDecimal,
			},
			Limits: exchanges.Limits{
				Amount: exchanges.MinMax{Min: row.MinAmount.NullDecimal},
			},
			Maker: tradingFee,
			Taker: tradingFee,
			Info:  raw,
		})
	}
	return markets, nil
}

type tickerRow struct {
	Symbol      exchanges.Text   `json:"symbol"`
	LatestPrice exchanges.Number `json:"latestPrice"`
	BestBid     exchanges.Number `json:"bestBid"`
	BestAsk     exchanges.Number `json:"bestAsk"`
	High24h     exchanges.Number `json:"high24h"`
	Low24h      exchanges.Number `json:"low24h"`
	Volume24h   exchanges.Number `json:"volume24h"`
	Chg24h      exchanges.Text   `json:"chg24h"`
}

// parseTicker derives open from "-2.48%" style changes:
// open = last / (1 + fraction), change = last - open.
func (c *Client) parseTicker(raw json.RawMessage, market *exchanges.Market) *exchanges.Ticker {
	var row tickerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if market == nil {
		market, _ = c.MarketByID(unslash(row.Symbol.String()))
	}
	t := &exchanges.Ticker{
		Symbol:      exchanges.SymbolOf(market),
		High:        row.High24h.NullDecimal,
		Low:         row.Low24h.NullDecimal,
		Bid:         row.BestBid.NullDecimal,
		Ask:         row.BestAsk.NullDecimal,
		Last:        row.LatestPrice.NullDecimal,
		QuoteVolume: row.Volume24h.NullDecimal,
		Info:        raw,
	}
	if chg := row.Chg24h.String(); strings.Contains(chg, "%") {
		fraction := exchanges.ParsePercent(chg)
		if fraction.Valid {
			t.Percentage = exchanges.Some(fraction.Decimal.Shift(2))
			t.Open = exchanges.Div(t.Last, exchanges.Some(decimal.NewFromInt(1).Add(fraction.Decimal)))
		}
	}
	return exchanges.DeriveTicker(t)
}

// FetchTicker fetches one ticker.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchTicker, exchanges.Params{"symbol": slashedID(market)}, &raw); err != nil {
		return nil, err
	}
	t := c.parseTicker(raw, market)
	if t == nil {
		return nil, exchanges.Errorf(exchanges.KindExchange, exchangeID, "malformed ticker for %s", symbol).WithBody(string(raw))
	}
	return t, nil
}

// FetchTickers fetches every ticker.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchTickers, nil, &rows); err != nil {
		return nil, err
	}
	list := make([]*exchanges.Ticker, 0, len(rows))
	for _, raw := range rows {
		if t := c.parseTicker(raw, nil); t != nil {
			list = append(list, t)
		}
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

// FetchOrderBook fetches the book; supported depths are 5, 10, 50 and 100.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultDepth
	}
	var data struct {
		Bids      exchanges.Levels `json:"bids"`
		Asks      exchanges.Levels `json:"asks"`
		Timestamp exchanges.Text   `json:"timestamp"`
	}
	if err := c.call(ctx, exchanges.OpFetchOrderBook, exchanges.Params{"symbol": slashedID(market), "depth": limit}, &data); err != nil {
		return nil, err
	}
	return exchanges.NewOrderBook(market.Symbol, data.Bids, data.Asks, exchanges.ParseISO8601(data.Timestamp.String())), nil
}

type tradeRow struct {
	Price     exchanges.Number `json:"price"`
	Amount    exchanges.Number `json:"amount"`
	Quantity  exchanges.Number `json:"quantity"`
	Direction exchanges.Text   `json:"direction"`
	TradeTime exchanges.Text   `json:"tradeTime"`
	Fee       exchanges.Number `json:"fee"`
	OrderID   exchanges.Text   `json:"orderId"`
}

// parseTrade reads public trades, sent as [symbol, price, amount, side,
// time] arrays, and order fills, sent as objects.
func (c *Client) parseTrade(raw json.RawMessage, market *exchanges.Market) *exchanges.Trade {
	var row tradeRow
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var cells []exchanges.Text
		if err := json.Unmarshal(raw, &cells); err != nil || len(cells) < 5 {
			return nil
		}
		if market == nil {
			market, _ = c.MarketByID(unslash(cells[0].String()))
		}
		row.Price.NullDecimal = exchanges.ParseDecimal(cells[1].String())
		row.Amount.NullDecimal = exchanges.ParseDecimal(cells[2].String())
		row.Direction = cells[3]
		row.TradeTime = cells[4]
	} else if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	t := &exchanges.Trade{
		Order:     row.OrderID.String(),
		Timestamp: exchanges.ParseISO8601(row.TradeTime.String()),
		Symbol:    exchanges.SymbolOf(market),
		Side:      exchanges.SideFromString(row.Direction.String()),
		Price:     row.Price.NullDecimal,
		Amount:    exchanges.First(row.Amount.NullDecimal, row.Quantity.NullDecimal),
		Info:      raw,
	}
	if row.Fee.Valid {
		t.Fee = &exchanges.Fee{Cost: row.Fee.NullDecimal}
		if market != nil {
			t.Fee.Currency = market.Quote
		}
	}
	return exchanges.DeriveTrade(t, nil)
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

// FetchTrades fetches recent public trades.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchTrades, exchanges.Params{"symbol": slashedID(market)}, &rows); err != nil {
		return nil, err
	}
	return c.parseTrades(rows, market, since, limit), nil
}

// FetchOrderTrades fetches the fills of one order. The exchange has no
// account-wide trade history.
func (c *Client) FetchOrderTrades(ctx context.Context, id, symbol string) ([]*exchanges.Trade, error) {
	var market *exchanges.Market
	if symbol != "" {
		m, err := c.ResolveMarket(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
	}
	var rows []json.RawMessage
	if err := c.call(ctx, OpOrderFills, exchanges.Params{"orderId": id}, &rows); err != nil {
		return nil, err
	}
	trades := c.parseTrades(rows, market, time.Time{}, 0)
	for _, t := range trades {
		if t.Order == "" {
			t.Order = id
		}
	}
	return trades, nil
}

// FetchOHLCV fetches candles whose time is an ISO 8601 string.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	period, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": slashedID(market), "period": period}
	if !since.IsZero() {
		params["start"] = since.Unix()
	}
	var rows [][]exchanges.Text
	if err := c.call(ctx, exchanges.OpFetchOHLCV, params, &rows); err != nil {
		return nil, err
	}
	candles := make([]*exchanges.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		candle := &exchanges.OHLCV{
			Timestamp: exchanges.ParseISO8601(row[0].String()),
			Open:      exchanges.ParseDecimal(row[1].String()),
			High:      exchanges.ParseDecimal(row[2].String()),
			Low:       exchanges.ParseDecimal(row[3].String()),
			Close:     exchanges.ParseDecimal(row[4].String()),
			Volume:    exchanges.ParseDecimal(row[5].String()),
		}
		if !since.IsZero() && candle.Timestamp.Before(since) {
			continue
		}
		candles = append(candles, candle)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

// FetchBalance fetches the spot account.
func (c *Client) FetchBalance(ctx context.Context) (*exchanges.Balances, error) {
	var rows []struct {
		Asset         exchanges.Text   `json:"asset"`
		Available     exchanges.Number `json:"available"`
		FrozenBalance exchanges.Number `json:"frozenBalance"`
		TotalBalance  exchanges.Number `json:"totalBalance"`
	}
	body, err := c.api.Call(ctx, exchanges.OpFetchBalance, nil)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := c.api.Decode(body, &env); err != nil {
		return nil, err
	}
	if err := c.api.Decode(env.Data, &rows); err != nil {
		return nil, err
	}
	out := exchanges.NewBalances(time.Time{})
	out.Info = body
	for _, r := range rows {
		out.Set(exchanges.CurrencyCode(r.Asset.String(), nil), r.Available.NullDecimal, r.FrozenBalance.NullDecimal, r.TotalBalance.NullDecimal)
	}
	return out, nil
}

type orderRow struct {
	OrderID        exchanges.Text   `json:"orderId"`
	Symbol         exchanges.Text   `json:"symbol"`
	BaseAsset      exchanges.Text   `json:"baseAsset"`
	QuoteAsset     exchanges.Text   `json:"quoteAsset"`
	OrderType      exchanges.Text   `json:"orderType"`
	OrderDirection exchanges.Text   `json:"orderDirection"`
	OrderStatus    exchanges.Text   `json:"orderStatus"`
	OrderPrice     exchanges.Number `json:"orderPrice"`
	Quantity       exchanges.Number `json:"quantity"`
	FilledQuantity exchanges.Number `json:"filledQuantity"`
	FilledAmount   exchanges.Number `json:"filledAmount"`
	AvgPrice       exchanges.Number `json:"avgPrice"`
	OrderTime      exchanges.Text   `json:"orderTime"`
	Fee            exchanges.Number `json:"fee"`
	TotalFee       exchanges.Number `json:"totalFee"`
}

// parseOrder normalizes an order. Market orders report zero price and
// zero quantity; quantity then falls back to the filled amount.
func (c *Client) parseOrder(raw json.RawMessage, market *exchanges.Market) *exchanges.Order {
	var row orderRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if base, quote := row.BaseAsset.String(), row.QuoteAsset.String(); base != "" && quote != "" {
		if m, err := c.Market(exchanges.Symbol(exchanges.CurrencyCode(base, nil), exchanges.CurrencyCode(quote, nil))); err == nil {
			market = m
		}
	}
	if m, ok := c.MarketByID(unslash(row.Symbol.String())); ok {
		market = m
	}
	o := &exchanges.Order{
		ID:        row.OrderID.String(),
		Timestamp: exchanges.ParseISO8601(row.OrderTime.String()),
		Symbol:    exchanges.SymbolOf(market),
		Type:      exchanges.OrderTypeFromString(row.OrderType.String()),
		Side:      exchanges.SideFromString(row.OrderDirection.String()),
		Price:     row.OrderPrice.NullDecimal,
		Amount:    row.Quantity.NullDecimal,
		Filled:    row.FilledQuantity.NullDecimal,
		Cost:      row.FilledAmount.NullDecimal,
		Average:   row.AvgPrice.NullDecimal,
		Info:      raw,
	}
	if o.Price.Valid && o.Price.Decimal.IsZero() {
		o.Price = decimal.NullDecimal{}
	}
	if o.Average.Valid && o.Average.Decimal.IsZero() {
		o.Average = decimal.NullDecimal{}
	}
	if o.Type == exchanges.OrderTypeMarket && o.Amount.Valid && o.Amount.Decimal.IsZero() {
		o.Amount = o.Filled
	}
	if !o.Cost.Valid && o.Average.Valid {
		o.Cost = exchanges.Mul(o.Average, o.Filled)
	}
	if row.OrderStatus != "" {
		o.Status = exchanges.MapStatus(statuses, row.OrderStatus.String())
	}
	if fee := exchanges.First(row.Fee.NullDecimal, row.TotalFee.NullDecimal); fee.Valid {
		o.Fee = &exchanges.Fee{Cost: fee}
		if market != nil {
			o.Fee.Currency = market.Quote
		}
	}
	return exchanges.DeriveOrder(o)
}

// CreateOrder places a limit or market order.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	orderType, ok := orderTypes[req.Type]
	if !ok {
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid order type %q", req.Type)
	}
	direction, ok := directions[req.Side]
	if !ok {
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid side %q", req.Side)
	}
	market, err := c.ResolveMarket(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{
		"symbol":    slashedID(market),
		"direction": direction,
		"quantity":  exchanges.AmountToPrecision(market, req.Amount),
		"orderType": orderType,
	}
	if req.Price.Valid {
		params["price"] = exchanges.PriceToPrecision(market, req.Price.Decimal)
	}
	if req.ClientOrderID != "" {
		params["clientId"] = req.ClientOrderID
	}
	var data struct {
		OrderID exchanges.Text `json:"orderId"`
	}
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpCreateOrder, params.Extend(req.Params), &raw); err != nil {
		return nil, err
	}
	if err := c.api.Decode(raw, &data); err != nil {
		return nil, err
	}
	return &exchanges.Order{
		ID:            data.OrderID.String(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        market.Symbol,
		Type:          req.Type,
		Side:          req.Side,
		Price:         req.Price,
		Amount:        exchanges.Some(req.Amount),
		Status:        exchanges.OrderStatusOpen,
		Info:          raw,
	}, nil
}

// CancelOrder cancels one order.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpCancelOrder, exchanges.Params{"orderId": id}, &raw); err != nil {
		return nil, err
	}
	return &exchanges.Order{ID: id, Symbol: symbol, Status: exchanges.OrderStatusCanceled, Info: raw}, nil
}

// CancelOrders cancels a batch. Orders the exchange refused are reported
// through the returned error; the others are returned as canceled.
func (c *Client) CancelOrders(ctx context.Context, ids []string) ([]*exchanges.Order, error) {
	var rows []struct {
		OrderID exchanges.Text `json:"orderId"`
		Code    exchanges.Text `json:"code"`
		Message exchanges.Text `json:"message"`
	}
	if err := c.call(ctx, OpBatchCancel, exchanges.Params{"orderIds": ids}, &rows); err != nil {
		return nil, err
	}
	canceled := make([]*exchanges.Order, 0, len(rows))
	var failed errors.MultiError
	for _, r := range rows {
		if r.Code == "" || r.Code == codeOK {
			canceled = append(canceled, &exchanges.Order{ID: r.OrderID.String(), Status: exchanges.OrderStatusCanceled})
			continue
		}
		kind, ok := errorTable.MatchExact(r.Code.String())
		if !ok {
			kind = exchanges.KindExchange
		}
		failed.Add(exchanges.Errorf(kind, exchangeID, "cancel %s: %s", r.OrderID, r.Message))
	}
	return canceled, failed.ToError()
}

// FetchOrder fetches one order.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchOrder, exchanges.Params{"orderId": id}, &raw); err != nil {
		return nil, err
	}
	o := c.parseOrder(raw, nil)
	if o == nil || o.ID == "" {
		return nil, exchanges.Errorf(exchanges.KindOrderNotFound, exchangeID, "order %s not found", id).WithBody(string(raw))
	}
	return o, nil
}

func (c *Client) fetchOrders(ctx context.Context, op exchanges.Operation, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	params := exchanges.Params{}
	var market *exchanges.Market
	if symbol != "" {
		m, err := c.Market(symbol)
		if err != nil {
			return nil, err
		}
		market = m
		params["symbol"] = slashedID(m)
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var rows []json.RawMessage
	if err := c.call(ctx, op, params, &rows); err != nil {
		return nil, err
	}
	orders := make([]*exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		o := c.parseOrder(raw, market)
		if o == nil || (!since.IsZero() && o.Timestamp.Before(since)) {
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// FetchOpenOrders fetches open orders, optionally of one market.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	return c.fetchOrders(ctx, exchanges.OpFetchOpenOrders, symbol, since, limit)
}

// FetchClosedOrders fetches finished orders, optionally of one market.
func (c *Client) FetchClosedOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	return c.fetchOrders(ctx, exchanges.OpFetchClosedOrders, symbol, since, limit)
}

// sign prefixes the prehash "<ISO time><METHOD>/<path>" to the query of
// GET calls or the JSON body of others and signs it with HMAC-SHA256.
func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	url := c.URL(path)
	if ep.Access == exchanges.Public {
		if len(params) > 0 {
			url += "?" + params.Encode()
		}
		return exchanges.NewRequest(ep.Method, url), nil
	}

	creds := c.Credentials()
	timestamp := exchanges.ISO8601(time.UnixMilli(c.Clock().Milliseconds()))
	auth := timestamp + ep.Method + "/" + path
	req := exchanges.NewRequest(ep.Method, url)
	if ep.Method == http.MethodGet {
		if len(params) > 0 {
			query := "?" + params.Encode()
			req.URL += query
			auth += query
		}
	} else {
		if len(params) > 0 {
			body, err := json.Marshal(map[string]any(params))
			if err != nil {
				return nil, errors.Wrapf(err, "%s: encode body", exchangeID)
			}
			req.Body = string(body)
			auth += req.Body
		}
		req.Headers.Set("Content-Type", "application/json")
	}
	req.Headers.Set("ACCESS-KEY", creds.APIKey)
	req.Headers.Set("ACCESS-TIMESTAMP", timestamp)
	req.Headers.Set("ACCESS-SIGN", exchanges.HMACSHA256(creds.Secret, auth))
	return req, nil
}

// handleError raises on any JSON code other than 200. Bodies without a
// failing code fall through to the HTTP status mapping.
func (c *Client) handleError(_ int, body []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil
	}
	var res struct {
		Code exchanges.Text `json:"code"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil
	}
	if code := res.Code.String(); code != "" && code != codeOK {
		return errorTable.Raise(exchangeID, string(body), code)
	}
	return nil
}
