// Package gateiofu implements the Gate.io futures (v4) adapter. Every
// contract is listed under a settle currency, so market ids resolve to a
// settle id plus a contract name.
package gateiofu

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "gateiofu"
	baseURL    = "https://fx-api.gateio.ws/api/v4"
	rateLimit  = 1000 * time.Millisecond

	maxCandles = 2000
)

// Operations without a unified counterpart.
const (
	OpContract         exchanges.Operation = "contract"
	OpFundingRate      exchanges.Operation = "fundingRate"
	OpInsurance        exchanges.Operation = "insurance"
	OpAccountBook      exchanges.Operation = "accountBook"
	OpPositions        exchanges.Operation = "positions"
	OpPosition         exchanges.Operation = "position"
	OpPositionMargin   exchanges.Operation = "positionMargin"
	OpPositionLeverage exchanges.Operation = "positionLeverage"
	OpCancelAllOrders  exchanges.Operation = "cancelAllOrders"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:   exchanges.Get("futures/{settle}/contracts"),
	OpContract:                 exchanges.Get("futures/{settle}/contracts/{contract}"),
	exchanges.OpFetchOrderBook: exchanges.Get("futures/{settle}/order_book"),
	exchanges.OpFetchTrades:    exchanges.Get("futures/{settle}/trades"),
	exchanges.OpFetchOHLCV:     exchanges.Get("futures/{settle}/candlesticks"),
	exchanges.OpFetchTickers:   exchanges.Get("futures/{settle}/tickers"),
	OpFundingRate:              exchanges.Get("futures/{settle}/funding_rate"),
	OpInsurance:                exchanges.Get("futures/{settle}/insurance"),
	exchanges.OpFetchBalance:   exchanges.PrivateGet("futures/{settle}/accounts"),
	OpAccountBook:              exchanges.PrivateGet("futures/{settle}/account_book"),
	OpPositions:                exchanges.PrivateGet("futures/{settle}/positions"),
	OpPosition:                 exchanges.PrivateGet("futures/{settle}/positions/{contract}"),
	OpPositionMargin:           exchanges.PrivatePost("futures/{settle}/positions/{contract}/margin"),
	OpPositionLeverage:         exchanges.PrivatePost("futures/{settle}/positions/{contract}/leverage"),
	exchanges.OpFetchOrders:    exchanges.PrivateGet("futures/{settle}/orders"),
	exchanges.OpFetchOrder:     exchanges.PrivateGet("futures/{settle}/orders/{order_id}"),
	exchanges.OpCreateOrder:    exchanges.PrivatePost("futures/{settle}/orders"),
	OpCancelAllOrders:          exchanges.PrivateDelete("futures/{settle}/orders"),
	exchanges.OpCancelOrder:    exchanges.PrivateDelete("futures/{settle}/orders/{order_id}"),
	exchanges.OpFetchMyTrades:  exchanges.PrivateGet("futures/{settle}/my_trades"),
}

var timeframes = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
	"1w":  "7d",
}

var defaultSettles = []string{"btc", "usdt"}

var (
	makerFee = exchanges.Float(-0.00025)
	takerFee = exchanges.Float(0.00075)
)

var finishStatuses = map[string]exchanges.OrderStatus{
	"filled":    exchanges.OrderStatusClosed,
	"cancelled": exchanges.OrderStatusCanceled,
	"ioc":       exchanges.OrderStatusCanceled,
}

// errorTable covers the legacy {result:"false", code} envelope.
var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"4":  exchanges.KindDDoSProtection,
		"5":  exchanges.KindAuthentication,
		"6":  exchanges.KindAuthentication,
		"7":  exchanges.KindNotSupported,
		"8":  exchanges.KindNotSupported,
		"9":  exchanges.KindNotSupported,
		"15": exchanges.KindDDoSProtection,
		"16": exchanges.KindOrderNotFound,
		"17": exchanges.KindOrderNotFound,
		"20": exchanges.KindInvalidOrder,
		"21": exchanges.KindInsufficientFunds,
	},
}

var errorCodeNames = map[string]string{
	"1":  "Invalid request",
	"2":  "Invalid version",
	"3":  "Invalid request",
	"4":  "Too many attempts",
	"5":  "Invalid sign",
	"6":  "Invalid sign",
	"7":  "Currency is not supported",
	"8":  "Currency is not supported",
	"9":  "Currency is not supported",
	"10": "Verified failed",
	"11": "Obtaining address failed",
	"12": "Empty params",
	"13": "Internal error, please report to administrator",
	"14": "Invalid user",
	"15": "Cancel order too fast, please wait 1 min and try again",
	"16": "Invalid order id or order is already closed",
	"17": "Invalid orderid",
	"18": "Invalid amount",
	"19": "Not permitted or trade is disabled",
	"20": "Your order size is too small",
	"21": "You don't have enough fund",
}

// labelTable covers v4 {label, message} errors.
var labelTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"INVALID_KEY":             exchanges.KindAuthentication,
		"INVALID_SIGNATURE":       exchanges.KindAuthentication,
		"MISSING_REQUIRED_HEADER": exchanges.KindAuthentication,
		"FORBIDDEN":               exchanges.KindPermissionDenied,
		"TOO_MANY_REQUESTS":       exchanges.KindDDoSProtection,
		"CONTRACT_NOT_FOUND":      exchanges.KindBadSymbol,
		"ORDER_NOT_FOUND":         exchanges.KindOrderNotFound,
		"INSUFFICIENT_AVAILABLE":  exchanges.KindInsufficientFunds,
		"ORDER_SIZE_TOO_SMALL":    exchanges.KindInvalidOrder,
		"INVALID_PARAM_VALUE":     exchanges.KindBadRequest,
	},
}

// Client is the Gate.io futures adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a Gate.io futures adapter. The "settleCurrencyIds" option
// replaces the settle currencies markets are loaded from.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Gate.io Futures",
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

func (c *Client) settles() []string {
	if ids, ok := c.Option("settleCurrencyIds", defaultSettles).([]string); ok && len(ids) > 0 {
		return ids
	}
	return defaultSettles
}

type contractRow struct {
	Name            exchanges.Text   `json:"name"`
	Type            exchanges.Text   `json:"type"`
	OrderSizeMin    exchanges.Number `json:"order_size_min"`
	OrderSizeMax    exchanges.Number `json:"order_size_max"`
	OrderPriceRound exchanges.Number `json:"order_price_round"`
	MakerFeeRate    exchanges.Number `json:"maker_fee_rate"`
	TakerFeeRate    exchanges.Number `json:"taker_fee_rate"`
	InDelisting     bool             `json:"in_delisting"`
}

// FetchMarkets lists the contracts of every settle currency.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var markets []*exchanges.Market
	for _, settleID := range c.settles() {
		body, err := c.api.Call(ctx, exchanges.OpFetchMarkets, exchanges.Params{"settle": settleID})
		if err != nil {
			return nil, err
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, exchanges.NewError(exchanges.KindExchange, exchangeID, "fetchMarkets got an unrecognized response").WithBody(string(body))
		}
		for _, raw := range rows {
			var row contractRow
			if err := json.Unmarshal(raw, &row); err != nil {
				continue
			}
			if m := parseContract(row, settleID, raw); m != nil {
				markets = append(markets, m)
			}
		}
	}
	return markets, nil
}

// parseContract splits names on "_". A three-part name such as BOE_ETH_ETH
// keeps the first two parts as the base.
func parseContract(row contractRow, settleID string, raw json.RawMessage) *exchanges.Market {
	id := row.Name.String()
	parts := strings.Split(id, "_")
	if len(parts) < 2 {
		return nil
	}
	baseID, quoteID := parts[0], parts[1]
	if len(parts) > 2 {
		baseID = parts[0] + "_" + parts[1]
		quoteID = parts[2]
	}
	base := exchanges.CurrencyCode(baseID, nil)
	quote := exchanges.CurrencyCode(quoteID, nil)
	marketType := exchanges.MarketTypeFuture
	if row.Type == "inverse" {
		marketType = exchanges.MarketTypeSwap
	}
	return &exchanges.Market{
		ID:       id,
		Symbol:   exchanges.Symbol(base, quote),
		Base:     base,
		Quote:    quote,
		BaseID:   baseID,
		QuoteID:  quoteID,
		Active:   !row.InDelisting,
		Type:     marketType,
		Settle:   exchanges.CurrencyCode(settleID, nil),
		SettleID: settleID,
		Precision: exchanges.Precision{
			Mode:   exchanges.PrecisionTickSize,
			Amount: row.OrderSizeMin.NullDecimal,
			Price:  row.OrderPriceRound.NullDecimal,
		},
		Limits: exchanges.Limits{
			Amount: exchanges.MinMax{Min: row.OrderSizeMin.NullDecimal, Max: row.OrderSizeMax.NullDecimal},
			Price:  exchanges.MinMax{Min: row.OrderPriceRound.NullDecimal},
			Cost:   exchanges.MinMax{Min: exchanges.Mul(row.OrderSizeMin.NullDecimal, row.OrderPriceRound.NullDecimal)},
		},
		Maker: exchanges.First(row.MakerFeeRate.NullDecimal, makerFee),
		Taker: exchanges.First(row.TakerFeeRate.NullDecimal, takerFee),
		Info:  raw,
	}
}

func contractParams(m *exchanges.Market) exchanges.Params {
	return exchanges.Params{"settle": m.SettleID, "contract": m.ID}
}

type tickerRow struct {
	Contract         exchanges.Text   `json:"contract"`
	Last             exchanges.Number `json:"last"`
	ChangePercentage exchanges.Number `json:"change_percentage"`
	High24h          exchanges.Number `json:"high_24h"`
	Low24h           exchanges.Number `json:"low_24h"`
	HighestBid       exchanges.Number `json:"highest_bid"`
	LowestAsk        exchanges.Number `json:"lowest_ask"`
	VolumeBase       exchanges.Number `json:"volume_24h_base"`
	VolumeQuote      exchanges.Number `json:"volume_24h_quote"`
}

func (c *Client) parseTicker(raw json.RawMessage) *exchanges.Ticker {
	var row tickerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	market, _ := c.MarketByID(row.Contract.String())
	t := &exchanges.Ticker{
		Symbol:      exchanges.SymbolOf(market),
		High:        row.High24h.NullDecimal,
		Low:         row.Low24h.NullDecimal,
		Bid:         row.HighestBid.NullDecimal,
		Ask:         row.LowestAsk.NullDecimal,
		Last:        row.Last.NullDecimal,
		Percentage:  row.ChangePercentage.NullDecimal,
		BaseVolume:  row.VolumeBase.NullDecimal,
		QuoteVolume: row.VolumeQuote.NullDecimal,
		Info:        raw,
	}
	if t.Percentage.Valid {
		ratio := decimal.NewFromInt(1).Add(t.Percentage.Decimal.Shift(-2))
		if !ratio.IsZero() {
			t.Open = exchanges.Div(t.Last, exchanges.Some(ratio))
		}
	}
	return exchanges.DeriveTicker(t)
}

// FetchTickers fetches the tickers of every settle currency.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var list []*exchanges.Ticker
	for _, settleID := range c.settles() {
		var rows []json.RawMessage
		if err := c.api.CallJSON(ctx, exchanges.OpFetchTickers, exchanges.Params{"settle": settleID}, &rows); err != nil {
			return nil, err
		}
		for _, raw := range rows {
			if t := c.parseTicker(raw); t != nil {
				list = append(list, t)
			}
		}
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

// FetchTicker fetches the ticker of one contract.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTickers, contractParams(market), &rows); err != nil {
		return nil, err
	}
	for _, raw := range rows {
		if t := c.parseTicker(raw); t != nil && t.Symbol == market.Symbol {
			return t, nil
		}
	}
	return nil, exchanges.Errorf(exchanges.KindBadSymbol, exchangeID, "no ticker for %s", symbol)
}

// FetchOrderBook fetches the book; levels are {p, s} objects.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := contractParams(market)
	if limit > 0 {
		params["limit"] = limit
	}
	var res struct {
		Bids json.RawMessage  `json:"bids"`
		Asks json.RawMessage  `json:"asks"`
		ID   exchanges.Number `json:"id"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOrderBook, params, &res); err != nil {
		return nil, err
	}
	book := exchanges.NewOrderBook(market.Symbol,
		exchanges.ParseLevelObjects(res.Bids, "p", "s"),
		exchanges.ParseLevelObjects(res.Asks, "p", "s"),
		time.Time{},
	)
	book.Nonce = res.ID.Int()
	return book, nil
}

type tradeRow struct {
	ID         exchanges.Text   `json:"id"`
	OrderID    exchanges.Text   `json:"order_id"`
	CreateTime exchanges.Number `json:"create_time"`
	Contract   exchanges.Text   `json:"contract"`
	Size       exchanges.Number `json:"size"`
	Price      exchanges.Number `json:"price"`
	Role       exchanges.Text   `json:"role"`
}

// parseTrade reads a signed size: negative sizes are sells.
func (c *Client) parseTrade(raw json.RawMessage, market *exchanges.Market) *exchanges.Trade {
	var row tradeRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if m, ok := c.MarketByID(row.Contract.String()); ok {
		market = m
	}
	t := &exchanges.Trade{
		ID:           row.ID.String(),
		Order:        row.OrderID.String(),
		Timestamp:    exchanges.Seconds(row.CreateTime.NullDecimal),
		Symbol:       exchanges.SymbolOf(market),
		Price:        row.Price.NullDecimal,
		TakerOrMaker: exchanges.Liquidity(row.Role.String()),
		Info:         raw,
	}
	if row.Size.Valid {
		t.Side = exchanges.SideBuy
		if row.Size.Decimal.IsNegative() {
			t.Side = exchanges.SideSell
		}
		t.Amount = exchanges.Some(row.Size.Decimal.Abs())
	}
	return exchanges.DeriveTrade(t, market)
}

func (c *Client) parseTrades(rows []json.RawMessage, market *exchanges.Market, since time.Time) []*exchanges.Trade {
	trades := make([]*exchanges.Trade, 0, len(rows))
	for _, raw := range rows {
		t := c.parseTrade(raw, market)
		if t == nil || (!since.IsZero() && t.Timestamp.Before(since)) {
			continue
		}
		trades = append(trades, t)
	}
	return exchanges.SortTrades(trades)
}

// FetchTrades fetches public trades of one contract.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := contractParams(market)
	if limit > 0 {
		params["limit"] = limit
	}
	if !since.IsZero() {
		params["from"] = since.Unix()
	}
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTrades, params, &rows); err != nil {
		return nil, err
	}
	return c.parseTrades(rows, market, since), nil
}

// FetchOHLCV fetches candles. At most 2000 points come back per query; with
// since and limit the request names an explicit from/to window.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	interval, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	if limit > maxCandles {
		limit = maxCandles
	}
	params := contractParams(market)
	params["interval"] = interval
	switch {
	case !since.IsZero():
		from := since.Unix()
		params["from"] = from
		if limit > 0 {
			period, _ := exchanges.TimeframeDuration(timeframe)
			points := limit
			if points == maxCandles {
				points--
			}
			params["to"] = from + int64(points)*int64(period/time.Second)
		}
	case limit > 0:
		params["limit"] = limit
	}
	var rows []struct {
		T exchanges.Number `json:"t"`
		V exchanges.Number `json:"v"`
		O exchanges.Number `json:"o"`
		H exchanges.Number `json:"h"`
		L exchanges.Number `json:"l"`
		C exchanges.Number `json:"c"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOHLCV, params, &rows); err != nil {
		return nil, err
	}
	candles := make([]*exchanges.OHLCV, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, &exchanges.OHLCV{
			Timestamp: exchanges.Seconds(r.T.NullDecimal),
			Open:      r.O.NullDecimal,
			High:      r.H.NullDecimal,
			Low:       r.L.NullDecimal,
			Close:     r.C.NullDecimal,
			Volume:    r.V.NullDecimal,
		})
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

// FetchBalance merges the futures account of every settle currency.
func (c *Client) FetchBalance(ctx context.Context) (*exchanges.Balances, error) {
	out := exchanges.NewBalances(time.Time{})
	infos := make(map[string]json.RawMessage)
	for _, settleID := range c.settles() {
		body, err := c.api.Call(ctx, exchanges.OpFetchBalance, exchanges.Params{"settle": settleID})
		if err != nil {
			return nil, err
		}
		var acc struct {
			Total     exchanges.Number `json:"total"`
			Available exchanges.Number `json:"available"`
			Currency  exchanges.Text   `json:"currency"`
		}
		if err := c.api.Decode(body, &acc); err != nil {
			return nil, err
		}
		code := acc.Currency.String()
		if code == "" {
			code = settleID
		}
		out.Set(exchanges.CurrencyCode(code, nil), acc.Available.NullDecimal, decimal.NullDecimal{}, acc.Total.NullDecimal)
		infos[settleID] = body
	}
	info, err := json.Marshal(infos)
	if err != nil {
		return nil, err
	}
	out.Info = info
	return out, nil
}

type orderRow struct {
	ID         exchanges.Text   `json:"id"`
	Contract   exchanges.Text   `json:"contract"`
	CreateTime exchanges.Number `json:"create_time"`
	FinishTime exchanges.Number `json:"finish_time"`
	Size       exchanges.Number `json:"size"`
	Left       exchanges.Number `json:"left"`
	Price      exchanges.Number `json:"price"`
	FillPrice  exchanges.Number `json:"fill_price"`
	Status     exchanges.Text   `json:"status"`
	FinishAs   exchanges.Text   `json:"finish_as"`
	Text       exchanges.Text   `json:"text"`
}

// parseOrder reads signed sizes; a zero price marks a market order.
func (c *Client) parseOrder(raw json.RawMessage, market *exchanges.Market) *exchanges.Order {
	var row orderRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if m, ok := c.MarketByID(row.Contract.String()); ok {
		market = m
	}
	o := &exchanges.Order{
		ID:                 row.ID.String(),
		Timestamp:          exchanges.Seconds(row.CreateTime.NullDecimal),
		LastTradeTimestamp: exchanges.Seconds(row.FinishTime.NullDecimal),
		Symbol:             exchanges.SymbolOf(market),
		Type:               exchanges.OrderTypeLimit,
		Price:              row.Price.NullDecimal,
		Info:               raw,
	}
	if text := row.Text.String(); strings.HasPrefix(text, "t-") {
		o.ClientOrderID = strings.TrimPrefix(text, "t-")
	}
	if row.Size.Valid {
		o.Side = exchanges.SideBuy
		if row.Size.Decimal.IsNegative() {
			o.Side = exchanges.SideSell
		}
		o.Amount = exchanges.Some(row.Size.Decimal.Abs())
	}
	if row.Left.Valid {
		o.Remaining = exchanges.Some(row.Left.Decimal.Abs())
	}
	if o.Price.Valid && o.Price.Decimal.IsZero() {
		o.Type = exchanges.OrderTypeMarket
		o.Price = decimal.NullDecimal{}
	}
	if exchanges.Positive(row.FillPrice.NullDecimal) {
		o.Average = row.FillPrice.NullDecimal
	}
	switch row.Status {
	case "open":
		o.Status = exchanges.OrderStatusOpen
	case "finished":
		o.Status = exchanges.MapStatus(finishStatuses, row.FinishAs.String())
	default:
		o.Status = exchanges.OrderStatus(row.Status)
	}
	o = exchanges.DeriveOrder(o)
	if !o.Cost.Valid && o.Average.Valid {
		o.Cost = exchanges.Mul(o.Average, o.Filled)
		if o.Type == exchanges.OrderTypeMarket && !o.Price.Valid {
			o.Price = o.Average
		}
	}
	return o
}

// CreateOrder places an order. Sells are sent as negative sizes and market
// orders as price 0 with immediate-or-cancel.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	market, err := c.ResolveMarket(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	size := exchanges.AmountToPrecision(market, req.Amount)
	switch req.Side {
	case exchanges.SideBuy:
	case exchanges.SideSell:
		size = "-" + size
	default:
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid side %q", req.Side)
	}
	params := contractParams(market)
	params["size"] = size
	switch req.Type {
	case exchanges.OrderTypeLimit:
		if !req.Price.Valid {
			return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "limit order requires a price")
		}
		params["price"] = exchanges.PriceToPrecision(market, req.Price.Decimal)
		params["tif"] = "gtc"
	case exchanges.OrderTypeMarket:
		params["price"] = "0"
		params["tif"] = "ioc"
	default:
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid order type %q", req.Type)
	}
	if req.TimeInForce != "" {
		params["tif"] = strings.ToLower(req.TimeInForce)
	}
	if req.ClientOrderID != "" {
		params["text"] = "t-" + req.ClientOrderID
	}
	body, err := c.api.Call(ctx, exchanges.OpCreateOrder, params.Extend(req.Params))
	if err != nil {
		return nil, err
	}
	o := c.parseOrder(body, market)
	if o == nil {
		return nil, exchanges.NewError(exchanges.KindExchange, exchangeID, "malformed order response").WithBody(string(body))
	}
	return o, nil
}

func (c *Client) orderCall(ctx context.Context, op exchanges.Operation, id, symbol string) (*exchanges.Order, error) {
	if symbol == "" {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "%s requires a symbol", op)
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"settle": market.SettleID, "order_id": id}
	body, err := c.api.Call(ctx, op, params)
	if err != nil {
		return nil, err
	}
	o := c.parseOrder(body, market)
	if o == nil || o.ID == "" {
		return nil, exchanges.Errorf(exchanges.KindOrderNotFound, exchangeID, "order %s not found", id).WithBody(string(body))
	}
	return o, nil
}

// CancelOrder cancels one order; the symbol selects the settle currency.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	return c.orderCall(ctx, exchanges.OpCancelOrder, id, symbol)
}

// FetchOrder fetches one order; the symbol selects the settle currency.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	return c.orderCall(ctx, exchanges.OpFetchOrder, id, symbol)
}

func (c *Client) fetchOrders(ctx context.Context, status, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if symbol == "" {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "listing orders requires a symbol")
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := contractParams(market)
	params["status"] = status
	if limit > 0 {
		params["limit"] = limit
	}
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOrders, params, &rows); err != nil {
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

// FetchOpenOrders lists open orders of one contract.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	return c.fetchOrders(ctx, "open", symbol, since, limit)
}

// FetchClosedOrders lists finished orders of one contract.
func (c *Client) FetchClosedOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	return c.fetchOrders(ctx, "finished", symbol, since, limit)
}

// FetchMyTrades lists the account's fills in one contract.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	if symbol == "" {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "fetchMyTrades requires a symbol")
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := contractParams(market)
	if limit > 0 {
		params["limit"] = limit
	}
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchMyTrades, params, &rows); err != nil {
		return nil, err
	}
	return c.parseTrades(rows, market, since), nil
}

// sign sends private calls under /private with a urlencoded nonce body
// signed by HMAC-SHA512.
func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	if ep.Access == exchanges.Public {
		url := c.URL(path)
		if len(params) > 0 {
			url += "?" + params.Encode()
		}
		return exchanges.NewRequest(ep.Method, url), nil
	}
	creds := c.Credentials()
	req := exchanges.NewRequest(ep.Method, c.URL("private/"+path))
	req.Body = exchanges.Params{"nonce": c.Clock().Nonce()}.Extend(params).Encode()
	req.Headers.Set("Key", creds.APIKey)
	req.Headers.Set("Sign", exchanges.HMACSHA512(creds.Secret, req.Body))
	req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// handleError maps the legacy result:"false" envelope through the code
// table and v4 label errors through the label table.
func (c *Client) handleError(status int, body []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil
	}
	var res struct {
		Result  exchanges.Text `json:"result"`
		Code    exchanges.Text `json:"code"`
		Message exchanges.Text `json:"message"`
		Label   exchanges.Text `json:"label"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil
	}
	if res.Result == "false" {
		code := res.Code.String()
		feedback, ok := errorCodeNames[code]
		if !ok {
			feedback = res.Message.String()
		}
		kind, ok := errorTable.MatchExact(code)
		if !ok {
			kind = exchanges.KindExchange
		}
		return exchanges.NewError(kind, exchangeID, feedback).WithBody(string(body))
	}
	if res.Label != "" {
		return labelTable.Raise(exchangeID, string(body), res.Label.String())
	}
	return nil
}
