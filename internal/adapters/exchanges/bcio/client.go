// Package bcio implements the Blockchain.io spot adapter. The REST surface
// follows the Binance v1 layout.
package bcio

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "bcio"
	baseURL    = "https://api.blockchain.io/v1"
	rateLimit  = 500 * time.Millisecond

	defaultRecvWindow = 5000
	aggTradesWindow   = time.Hour
)

// Operations without a unified counterpart.
const (
	OpPing            exchanges.Operation = "ping"
	OpAggTrades       exchanges.Operation = "aggTrades"
	OpTickerPrice     exchanges.Operation = "tickerPrice"
	OpBookTicker      exchanges.Operation = "bookTicker"
	OpCreateTestOrder exchanges.Operation = "createTestOrder"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	OpPing:                      exchanges.Get("ping"),
	exchanges.OpFetchTime:       exchanges.Get("time"),
	exchanges.OpFetchMarkets:    exchanges.Get("exchangeInfo"),
	exchanges.OpFetchOrderBook:  exchanges.Get("depth"),
	exchanges.OpFetchTrades:     exchanges.Get("trades"),
	OpAggTrades:                 exchanges.Get("aggTrades"),
	exchanges.OpFetchOHLCV:      exchanges.Get("klines"),
	exchanges.OpFetchTicker:     exchanges.Get("ticker/24hr"),
	OpTickerPrice:               exchanges.Get("ticker/price"),
	OpBookTicker:                exchanges.Get("ticker/bookTicker"),
	exchanges.OpFetchOrder:      exchanges.PrivateGet("order"),
	exchanges.OpFetchOpenOrders: exchanges.PrivateGet("openOrders"),
	exchanges.OpFetchOrders:     exchanges.PrivateGet("allOrders"),
	exchanges.OpFetchBalance:    exchanges.PrivateGet("account"),
	exchanges.OpFetchMyTrades:   exchanges.PrivateGet("myTrades"),
	exchanges.OpCreateOrder:     exchanges.PrivatePost("order"),
	OpCreateTestOrder:           exchanges.PrivatePost("order/test"),
	exchanges.OpCancelOrder:     exchanges.PrivateDelete("order"),
}

var timeframes = map[string]string{
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1h", "2h": "2h", "4h": "4h", "6h": "6h", "8h": "8h", "12h": "12h",
	"1d": "1d", "3d": "3d", "1w": "1w", "1M": "1M",
}

var statuses = map[string]exchanges.OrderStatus{
	"NEW":              exchanges.OrderStatusOpen,
	"PARTIALLY_FILLED": exchanges.OrderStatusOpen,
	"FILLED":           exchanges.OrderStatusClosed,
	"CANCELED":         exchanges.OrderStatusCanceled,
	"PENDING_CANCEL":   exchanges.OrderStatusCanceling,
	"REJECTED":         exchanges.OrderStatusRejected,
	"EXPIRED":          exchanges.OrderStatusExpired,
}

var (
	makerFee = exchanges.Float(0.01)
	takerFee = exchanges.Float(0.01)
)

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"API key does not exist":                                 exchanges.KindAuthentication,
		"Order would trigger immediately.":                       exchanges.KindInvalidOrder,
		"Account has insufficient balance for requested action.": exchanges.KindInsufficientFunds,
		"Rest API trading is not enabled.":                       exchanges.KindExchangeNotAvailable,
		"-1000":                                                  exchanges.KindExchangeNotAvailable,
		"-1013":                                                  exchanges.KindInvalidOrder,
		"-1021":                                                  exchanges.KindInvalidNonce,
		"-1022":                                                  exchanges.KindAuthentication,
		"-1100":                                                  exchanges.KindInvalidOrder,
		"-1104":                                                  exchanges.KindExchange,
		"-1128":                                                  exchanges.KindExchange,
		"-2010":                                                  exchanges.KindExchange,
		"-2011":                                                  exchanges.KindOrderNotFound,
		"-2013":                                                  exchanges.KindOrderNotFound,
		"-2014":                                                  exchanges.KindAuthentication,
		"-2015":                                                  exchanges.KindAuthentication,
	},
}

// invalidOrderBodies are filter rejections reported with an HTTP error status.
var invalidOrderBodies = []string{"Price * QTY is zero or less", "LOT_SIZE", "PRICE_FILTER"}

// Client is the Blockchain.io adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API

	// authenticated is set after the first successful private call. A
	// later -2015 then signals a temporary ban rather than bad keys.
	authenticated atomic.Bool
}

// New constructs a Blockchain.io adapter. Supported options:
// recvWindow (ms), fetchTradesMethod ("aggTrades" or "trades"),
// fetchTickersMethod ("ticker/24hr" or "ticker/bookTicker") and
// warnOnFetchOpenOrdersWithoutSymbol.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Blockchain.io",
		BaseURL:   baseURL,
		RateLimit: rateLimit,
	}, cfg, exchanges.Hooks{
		Signer:  exchanges.SignerFunc(c.sign),
		Errors:  exchanges.ErrorHandlerFunc(c.handleError),
		Markets: c.FetchMarkets,
	})
	all := make(map[exchanges.Operation]exchanges.Endpoint, len(endpoints)+len(walletEndpoints))
	maps.Copy(all, endpoints)
	maps.Copy(all, walletEndpoints)
	c.api = exchanges.BindEndpoints(c.Base, all)
	return c, nil
}

// API exposes the bound endpoints.
func (c *Client) API() *exchanges.API { return c.api }

func (c *Client) call(ctx context.Context, op exchanges.Operation, params exchanges.Params, target any) error {
	body, err := c.api.Call(ctx, op, params)
	if err != nil {
		return err
	}
	if ep, ok := c.api.Endpoint(op); ok && ep.Access == exchanges.Private {
		c.authenticated.Store(true)
	}
	return c.api.Decode(body, target)
}

// CalibrateClock measures local minus server time. Apply the result with
// SetTimeDifference or exchanges.CalibrateClock.
func (c *Client) CalibrateClock(ctx context.Context) (time.Duration, error) {
	var res struct {
		ServerTime exchanges.Number `json:"serverTime"`
	}
	if err := c.call(ctx, exchanges.OpFetchTime, nil, &res); err != nil {
		return 0, err
	}
	if !res.ServerTime.Valid {
		return 0, exchanges.NewError(exchanges.KindExchange, exchangeID, "time response without serverTime")
	}
	return c.Clock().Skew(exchanges.Millis(res.ServerTime.NullDecimal)), nil
}

type filter struct {
	FilterType  string           `json:"filterType"`
	MinPrice    exchanges.Number `json:"minPrice"`
	MaxPrice    exchanges.Number `json:"maxPrice"`
	TickSize    exchanges.Text   `json:"tickSize"`
	StepSize    exchanges.Text   `json:"stepSize"`
	MinQty      exchanges.Number `json:"minQty"`
	MaxQty      exchanges.Number `json:"maxQty"`
	MinNotional exchanges.Number `json:"minNotional"`
}

type marketRow struct {
	Symbol             exchanges.Text   `json:"symbol"`
	Status             exchanges.Text   `json:"status"`
	BaseAsset          exchanges.Text   `json:"baseAsset"`
	QuoteAsset         exchanges.Text   `json:"quoteAsset"`
	BaseAssetPrecision exchanges.Number `json:"baseAssetPrecision"`
	QuotePrecision     exchanges.Number `json:"quotePrecision"`
	Filters            []filter         `json:"filters"`
}

// FetchMarkets reads exchangeInfo. Precision is in decimal places.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var res struct {
		Symbols []json.RawMessage `json:"symbols"`
	}
	if err := c.call(ctx, exchanges.OpFetchMarkets, nil, &res); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(res.Symbols))
	for _, raw := range res.Symbols {
		var row marketRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		// The venue lists a placeholder pair with this id.
		if row.Symbol == "123456" {
			continue
		}
		markets = append(markets, parseMarket(row, raw))
	}
	return markets, nil
}

func parseMarket(row marketRow, raw json.RawMessage) *exchanges.Market {
	baseID, quoteID := row.BaseAsset.String(), row.QuoteAsset.String()
	base := exchanges.CurrencyCode(baseID, nil)
	quote := exchanges.CurrencyCode(quoteID, nil)
	m := &exchanges.Market{
		ID:      row.Symbol.String(),
		Symbol:  exchanges.Symbol(base, quote),
		Base:    base,
		Quote:   quote,
		BaseID:  baseID,
		QuoteID: quoteID,
		Active:  row.Status == "TRADING",
		Type:    exchanges.MarketTypeSpot,
		Precision: exchanges.Precision{
			Mode:   exchanges.PrecisionDecimalPlaces,
			Amount: row.BaseAssetPrecision.NullDecimal,
			Price:  row.QuotePrecision.NullDecimal,
		},
		Maker: makerFee,
		Taker: takerFee,
		Info:  raw,
	}
	if row.BaseAssetPrecision.Valid {
		m.Limits.Amount.Min = exchanges.Some(exchanges.PowTen(row.BaseAssetPrecision.Int()))
	}
	for _, f := range row.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			m.Limits.Price.Min = f.MinPrice.NullDecimal
			if exchanges.Positive(f.MaxPrice.NullDecimal) {
				m.Limits.Price.Max = f.MaxPrice.NullDecimal
			}
			if p := exchanges.PrecisionFromString(f.TickSize.String()); p.Valid {
				m.Precision.Price = p
			}
		case "LOT_SIZE":
			if p := exchanges.PrecisionFromString(f.StepSize.String()); p.Valid {
				m.Precision.Amount = p
			}
			m.Limits.Amount = exchanges.MinMax{Min: f.MinQty.NullDecimal, Max: f.MaxQty.NullDecimal}
		case "MIN_NOTIONAL":
			m.Limits.Cost.Min = f.MinNotional.NullDecimal
		}
	}
	return m
}

type tickerRow struct {
	Symbol           exchanges.Text   `json:"symbol"`
	CloseTime        exchanges.Number `json:"closeTime"`
	HighPrice        exchanges.Number `json:"highPrice"`
	LowPrice         exchanges.Number `json:"lowPrice"`
	BidPrice         exchanges.Number `json:"bidPrice"`
	BidQty           exchanges.Number `json:"bidQty"`
	AskPrice         exchanges.Number `json:"askPrice"`
	AskQty           exchanges.Number `json:"askQty"`
	WeightedAvgPrice exchanges.Number `json:"weightedAvgPrice"`
	OpenPrice        exchanges.Number `json:"openPrice"`
	LastPrice        exchanges.Number `json:"lastPrice"`
	PrevClosePrice   exchanges.Number `json:"prevClosePrice"`
	PriceChange      exchanges.Number `json:"priceChange"`
	PriceChangePct   exchanges.Number `json:"priceChangePercent"`
	Volume           exchanges.Number `json:"volume"`
	QuoteVolume      exchanges.Number `json:"quoteVolume"`
}

func (c *Client) parseTicker(raw json.RawMessage, market *exchanges.Market) *exchanges.Ticker {
	var row tickerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if market == nil {
		market, _ = c.MarketByID(row.Symbol.String())
	}
	return exchanges.DeriveTicker(&exchanges.Ticker{
		Symbol:        exchanges.SymbolOf(market),
		Timestamp:     exchanges.Millis(row.CloseTime.NullDecimal),
		High:          row.HighPrice.NullDecimal,
		Low:           row.LowPrice.NullDecimal,
		Bid:           row.BidPrice.NullDecimal,
		BidVolume:     row.BidQty.NullDecimal,
		Ask:           row.AskPrice.NullDecimal,
		AskVolume:     row.AskQty.NullDecimal,
		VWAP:          row.WeightedAvgPrice.NullDecimal,
		Open:          row.OpenPrice.NullDecimal,
		Last:          row.LastPrice.NullDecimal,
		PreviousClose: row.PrevClosePrice.NullDecimal,
		Change:        row.PriceChange.NullDecimal,
		Percentage:    row.PriceChangePct.NullDecimal,
		BaseVolume:    row.Volume.NullDecimal,
		QuoteVolume:   row.QuoteVolume.NullDecimal,
		Info:          raw,
	})
}

// FetchTicker fetches the 24h statistics of one market.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchTicker, exchanges.Params{"symbol": market.ID}, &raw); err != nil {
		return nil, err
	}
	t := c.parseTicker(raw, market)
	if t == nil {
		return nil, exchanges.NewError(exchanges.KindExchange, exchangeID, "malformed ticker").WithBody(string(raw))
	}
	return t, nil
}

// FetchTickers fetches every 24h ticker; the bookTicker variant is used
// when the fetchTickersMethod option selects it.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	op := exchanges.OpFetchTicker
	if c.Option("fetchTickersMethod", "ticker/24hr") == "ticker/bookTicker" {
		op = OpBookTicker
	}
	return c.fetchTickerList(ctx, op, symbols)
}

// FetchBidsAsks fetches the best bid and ask of every market.
func (c *Client) FetchBidsAsks(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	return c.fetchTickerList(ctx, OpBookTicker, symbols)
}

func (c *Client) fetchTickerList(ctx context.Context, op exchanges.Operation, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := c.call(ctx, op, nil, &rows); err != nil {
		return nil, err
	}
	list := make([]*exchanges.Ticker, 0, len(rows))
	for _, raw := range rows {
		list = append(list, c.parseTicker(raw, nil))
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

// FetchOrderBook fetches the depth snapshot; lastUpdateId becomes the nonce.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID}
	if limit > 0 {
		params["limit"] = limit
	}
	var res struct {
		LastUpdateID exchanges.Number `json:"lastUpdateId"`
		Bids         exchanges.Levels `json:"bids"`
		Asks         exchanges.Levels `json:"asks"`
	}
	if err := c.call(ctx, exchanges.OpFetchOrderBook, params, &res); err != nil {
		return nil, err
	}
	book := exchanges.NewOrderBook(market.Symbol, res.Bids, res.Asks, time.Time{})
	book.Nonce = res.LastUpdateID.Int()
	return book, nil
}

// FetchOHLCV fetches klines.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	interval, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID, "interval": interval}
	if !since.IsZero() {
		params["startTime"] = since.UnixMilli()
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var rows [][]exchanges.Number
	if err := c.call(ctx, exchanges.OpFetchOHLCV, params, &rows); err != nil {
		return nil, err
	}
	candles := make([]*exchanges.OHLCV, 0, len(rows))
	for _, row := range rows {
		if candle := exchanges.CandleRow(row); candle != nil {
			candles = append(candles, candle)
		}
	}
	return candles, nil
}

// tradeRow covers aggregate trades (single-letter keys), plain trades and
// account fills.
type tradeRow struct {
	A               exchanges.Text    `json:"a"`
	ID              exchanges.Text    `json:"id"`
	OrderID         exchanges.Text    `json:"orderId"`
	Symbol          exchanges.Text    `json:"symbol"`
	T               exchanges.Number  `json:"T"`
	Time            exchanges.Number  `json:"time"`
	P               exchanges.Number  `json:"p"`
	Price           exchanges.Number  `json:"price"`
	Q               exchanges.Number  `json:"q"`
	Qty             exchanges.Number  `json:"qty"`
	M               *bool             `json:"m"`
	IsBuyerMaker    *bool             `json:"isBuyerMaker"`
	IsBuyer         *bool             `json:"isBuyer"`
	IsMaker         *bool             `json:"isMaker"`
	Commission      *exchanges.Number `json:"commission"`
	CommissionAsset exchanges.Text    `json:"commissionAsset"`
}

func (c *Client) parseTrade(raw json.RawMessage, market *exchanges.Market) *exchanges.Trade {
	var row tradeRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if market == nil {
		market, _ = c.MarketByID(row.Symbol.String())
	}
	t := &exchanges.Trade{
		ID:        firstText(row.A, row.ID),
		Order:     row.OrderID.String(),
		Timestamp: exchanges.Millis(exchanges.First(row.T.NullDecimal, row.Time.NullDecimal)),
		Symbol:    exchanges.SymbolOf(market),
		Price:     exchanges.First(row.P.NullDecimal, row.Price.NullDecimal),
		Amount:    exchanges.First(row.Q.NullDecimal, row.Qty.NullDecimal),
		Info:      raw,
	}
	switch {
	case row.M != nil:
		t.Side = exchanges.SideFromBuyerMaker(*row.M)
	case row.IsBuyerMaker != nil:
		t.Side = exchanges.SideFromBuyerMaker(*row.IsBuyerMaker)
	case row.IsBuyer != nil:
		t.Side = exchanges.SideSell
		if *row.IsBuyer {
			t.Side = exchanges.SideBuy
		}
	}
	if row.IsMaker != nil {
		t.TakerOrMaker = exchanges.Taker
		if *row.IsMaker {
			t.TakerOrMaker = exchanges.Maker
		}
	}
	if row.Commission != nil {
		t.Fee = exchanges.ReportedFee(row.Commission.NullDecimal, row.CommissionAsset.String(), nil)
	}
	t.Cost = exchanges.Mul(t.Price, t.Amount)
	return t
}

func (c *Client) parseTrades(rows []json.RawMessage, market *exchanges.Market) []*exchanges.Trade {
	trades := make([]*exchanges.Trade, 0, len(rows))
	for _, raw := range rows {
		if t := c.parseTrade(raw, market); t != nil {
			trades = append(trades, t)
		}
	}
	return exchanges.SortTrades(trades)
}

// FetchTrades uses aggregate trades by default. With since set, the
// window is one hour wide, the widest the endpoint accepts.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID}
	op := OpAggTrades
	if c.Option("fetchTradesMethod", "aggTrades") == "trades" {
		op = exchanges.OpFetchTrades
	}
	if op == OpAggTrades && !since.IsZero() {
		params["startTime"] = since.UnixMilli()
		params["endTime"] = since.Add(aggTradesWindow).UnixMilli()
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var rows []json.RawMessage
	if err := c.call(ctx, op, params, &rows); err != nil {
		return nil, err
	}
	return c.parseTrades(rows, market), nil
}

// FetchBalance returns free and locked holdings.
func (c *Client) FetchBalance(ctx context.Context) (*exchanges.Balances, error) {
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchBalance, nil, &raw); err != nil {
		return nil, err
	}
	var res struct {
		Balances []struct {
			Asset  exchanges.Text   `json:"asset"`
			Free   exchanges.Number `json:"free"`
			Locked exchanges.Number `json:"locked"`
		} `json:"balances"`
	}
	if err := c.api.Decode(raw, &res); err != nil {
		return nil, err
	}
	out := exchanges.NewBalances(time.Time{})
	out.Info = raw
	for _, b := range res.Balances {
		out.Set(exchanges.CurrencyCode(b.Asset.String(), nil), b.Free.NullDecimal, b.Locked.NullDecimal, decimal.NullDecimal{})
	}
	return out, nil
}

type orderRow struct {
	OrderID             exchanges.Text    `json:"orderId"`
	ClientOrderID       exchanges.Text    `json:"clientOrderId"`
	Symbol              exchanges.Text    `json:"symbol"`
	Status              exchanges.Text    `json:"status"`
	Type                exchanges.Text    `json:"type"`
	Side                exchanges.Text    `json:"side"`
	Time                exchanges.Number  `json:"time"`
	TransactTime        exchanges.Number  `json:"transactTime"`
	Price               exchanges.Number  `json:"price"`
	OrigQty             exchanges.Number  `json:"origQty"`
	ExecutedQty         exchanges.Number  `json:"executedQty"`
	CummulativeQuoteQty exchanges.Number  `json:"cummulativeQuoteQty"`
	Fills               []json.RawMessage `json:"fills"`
}

func (c *Client) parseOrder(raw json.RawMessage, market *exchanges.Market) (*exchanges.Order, error) {
	var row orderRow
	if err := c.api.Decode(raw, &row); err != nil {
		return nil, err
	}
	if market == nil {
		market, _ = c.MarketByID(row.Symbol.String())
	}
	o := &exchanges.Order{
		ID:            row.OrderID.String(),
		ClientOrderID: row.ClientOrderID.String(),
		Timestamp:     exchanges.Millis(exchanges.First(row.Time.NullDecimal, row.TransactTime.NullDecimal)),
		Symbol:        exchanges.SymbolOf(market),
		Type:          exchanges.OrderTypeFromString(row.Type.String()),
		Side:          exchanges.SideFromString(row.Side.String()),
		Price:         row.Price.NullDecimal,
		Amount:        row.OrigQty.NullDecimal,
		Filled:        row.ExecutedQty.NullDecimal,
		Cost:          row.CummulativeQuoteQty.NullDecimal,
		Status:        exchanges.MapStatus(statuses, row.Status.String()),
		Info:          raw,
	}
	if len(row.Fills) > 0 {
		o.Trades = c.parseTrades(row.Fills, market)
		cost := exchanges.Some(decimal.Zero)
		for _, t := range o.Trades {
			cost = exchanges.Add(cost, t.Cost)
			t.Order = o.ID
		}
		o.Cost = cost
	}
	return exchanges.DeriveOrder(o), nil
}

func (c *Client) parseOrders(rows []json.RawMessage, market *exchanges.Market, since time.Time, limit int) []*exchanges.Order {
	orders := make([]*exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		o, err := c.parseOrder(raw, market)
		if err != nil {
			continue
		}
		if !since.IsZero() && o.Timestamp.Before(since) {
			continue
		}
		orders = append(orders, o)
	}
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

// CreateOrder places an order. Price, stop price and time in force are
// required or forbidden according to the order type. Set Params["test"]
// to validate without placing.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	market, err := c.ResolveMarket(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	orderType := strings.ToUpper(string(req.Type))
	respType := "RESULT"
	if req.Type == exchanges.OrderTypeMarket {
		respType = "FULL"
	}
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	params := exchanges.Params{
		"symbol":           market.ID,
		"quantity":         exchanges.AmountToPrecision(market, req.Amount),
		"type":             orderType,
		"side":             strings.ToUpper(string(req.Side)),
		"newOrderRespType": respType,
		"newClientOrderId": clientID,
	}

	var needPrice, needTIF, needStop bool
	switch orderType {
	case "LIMIT":
		needPrice, needTIF = true, true
	case "STOP_LOSS", "TAKE_PROFIT":
		needStop = true
	case "STOP_LOSS_LIMIT", "TAKE_PROFIT_LIMIT":
		needPrice, needTIF, needStop = true, true, true
	case "LIMIT_MAKER":
		needPrice = true
	}
	if needPrice {
		if !req.Price.Valid {
			return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "createOrder requires a price for a %s order", req.Type)
		}
		params["price"] = exchanges.PriceToPrecision(market, req.Price.Decimal)
	}
	if needTIF {
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params["timeInForce"] = tif
	}

	extra := req.Params.Clone()
	if needStop {
		stop := req.StopPrice
		if !stop.Valid && extra.Has("stopPrice") {
			stop = exchanges.ParseDecimal(extra.Get("stopPrice"))
		}
		if !stop.Valid {
			return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "createOrder requires a stopPrice for a %s order", req.Type)
		}
		params["stopPrice"] = exchanges.PriceToPrecision(market, stop.Decimal)
	}
	op := exchanges.OpCreateOrder
	if extra.Get("test") == "true" {
		op = OpCreateTestOrder
	}
	params = params.Extend(extra.Omit("test", "stopPrice"))

	var raw json.RawMessage
	if err := c.call(ctx, op, params, &raw); err != nil {
		return nil, err
	}
	return c.parseOrder(raw, market)
}

func (c *Client) requireSymbol(op, symbol string) error {
	if symbol == "" {
		return exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "%s requires a symbol argument", op)
	}
	return nil
}

// FetchOrder fetches one order of symbol.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	if err := c.requireSymbol("fetchOrder", symbol); err != nil {
		return nil, err
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchOrder, exchanges.Params{"symbol": market.ID, "orderId": id}, &raw); err != nil {
		return nil, err
	}
	return c.parseOrder(raw, market)
}

// FetchOrders fetches every order of symbol.
func (c *Client) FetchOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if err := c.requireSymbol("fetchOrders", symbol); err != nil {
		return nil, err
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID}
	if !since.IsZero() {
		params["startTime"] = since.UnixMilli()
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var rows []json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchOrders, params, &rows); err != nil {
		return nil, err
	}
	return c.parseOrders(rows, market, since, limit), nil
}

// FetchOpenOrders fetches open orders. Without a symbol the call is heavily
// rate limited, so it is refused unless warnOnFetchOpenOrdersWithoutSymbol is false.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var market *exchanges.Market
	params := exchanges.Params{}
	if symbol != "" {
		m, err := c.Market(symbol)
		if err != nil {
			return nil, err
		}
		market = m
		params["symbol"] = m.ID
	} else if c.Option("warnOnFetchOpenOrdersWithoutSymbol", true) == true {
		return nil, exchanges.Errorf(exchanges.KindExchange, exchangeID,
			"fetching open orders without a symbol is rate-limited to one call per %d seconds; set warnOnFetchOpenOrdersWithoutSymbol to false to allow it",
			len(c.Symbols())/2)
	}
	var rows []json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchOpenOrders, params, &rows); err != nil {
		return nil, err
	}
	return c.parseOrders(rows, market, since, limit), nil
}

// FetchClosedOrders filters the full order history down to filled orders.
func (c *Client) FetchClosedOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	orders, err := c.FetchOrders(ctx, symbol, since, limit)
	if err != nil {
		return nil, err
	}
	closed := orders[:0]
	for _, o := range orders {
		if o.Status == exchanges.OrderStatusClosed {
			closed = append(closed, o)
		}
	}
	return closed, nil
}

// CancelOrder cancels one order of symbol.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	if err := c.requireSymbol("cancelOrder", symbol); err != nil {
		return nil, err
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, exchanges.OpCancelOrder, exchanges.Params{"symbol": market.ID, "orderId": id}, &raw); err != nil {
		return nil, err
	}
	return c.parseOrder(raw, nil)
}

// FetchMyTrades fetches the account's fills in symbol.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	if err := c.requireSymbol("fetchMyTrades", symbol); err != nil {
		return nil, err
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID}
	if limit > 0 {
		params["limit"] = limit
	}
	var rows []json.RawMessage
	if err := c.call(ctx, exchanges.OpFetchMyTrades, params, &rows); err != nil {
		return nil, err
	}
	trades := c.parseTrades(rows, market)
	if since.IsZero() {
		return trades, nil
	}
	out := trades[:0]
	for _, t := range trades {
		if !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	url := c.URL(path)
	if ep.Group == wapi {
		url = c.wapiURL() + "/" + path
	}
	if ep.Access == exchanges.Public {
		if len(params) > 0 {
			url += "?" + params.Encode()
		}
		return exchanges.NewRequest(ep.Method, url), nil
	}

	signed := exchanges.Params{
		"timestamp":  c.Clock().Nonce(),
		"recvWindow": c.Option("recvWindow", defaultRecvWindow),
	}.Extend(params)
	creds := c.Credentials()
	query := signed.Encode()
	query += "&signature=" + exchanges.HMACSHA256(creds.Secret, query)

	req := exchanges.NewRequest(ep.Method, url)
	req.Headers.Set("X-BCIO-APIKEY", creds.APIKey)
	if ep.Method == http.MethodGet || ep.Method == http.MethodDelete || ep.Group == wapi {
		req.URL += "?" + query
	} else {
		req.Body = query
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (c *Client) handleError(status int, body []byte) error {
	text := string(body)
	if status >= http.StatusBadRequest {
		for _, marker := range invalidOrderBodies {
			if strings.Contains(text, marker) {
				return exchanges.NewError(exchanges.KindInvalidOrder, exchangeID, text).WithBody(text)
			}
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return nil
	}

	var res struct {
		Success *bool          `json:"success"`
		Msg     exchanges.Text `json:"msg"`
		Code    exchanges.Text `json:"code"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil
	}
	success := res.Success == nil || *res.Success
	if !success && res.Msg != "" {
		var nested struct {
			Msg  exchanges.Text `json:"msg"`
			Code exchanges.Text `json:"code"`
		}
		if err := json.Unmarshal([]byte(res.Msg), &nested); err == nil {
			res.Msg, res.Code = nested.Msg, nested.Code
		}
	}

	if kind, ok := errorTable.MatchExact(res.Msg.String()); ok {
		return exchanges.NewError(kind, exchangeID, res.Msg.String()).WithBody(text)
	}
	if code := res.Code.String(); code != "" {
		if code == "-2015" && c.authenticated.Load() {
			return exchanges.NewError(exchanges.KindDDoSProtection, exchangeID, "temporary banned: "+text).WithBody(text)
		}
		return errorTable.Raise(exchangeID, text, code)
	}
	if !success {
		return exchanges.NewError(exchanges.KindExchange, exchangeID, text).WithBody(text)
	}
	return nil
}

func firstText(values ...exchanges.Text) string {
	for _, v := range values {
		if v != "" {
			return v.String()
		}
	}
	return ""
}
