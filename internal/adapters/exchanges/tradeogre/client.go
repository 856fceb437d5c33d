// Package tradeogre implements the TradeOgre spot adapter.
package tradeogre

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "tradeogre"
	baseURL    = "https://tradeogre.com/api/v1"
	rateLimit  = 1000 * time.Millisecond

	pricePrecision = 8
)

// Operations without a unified counterpart.
const (
	OpBuy            exchanges.Operation = "buy"
	OpSell           exchanges.Operation = "sell"
	OpAccountBalance exchanges.Operation = "accountBalance"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:    exchanges.Get("markets"),
	exchanges.OpFetchTicker:     exchanges.Get("ticker/{symbol}"),
	exchanges.OpFetchOrderBook:  exchanges.Get("orders/{symbol}"),
	exchanges.OpFetchTrades:     exchanges.Get("history/{symbol}"),
	exchanges.OpFetchBalance:    exchanges.PrivateGet("account/balances"),
	exchanges.OpFetchOrder:      exchanges.PrivateGet("account/order/{uuid}"),
	OpBuy:                       exchanges.PrivatePost("order/buy"),
	OpSell:                      exchanges.PrivatePost("order/sell"),
	exchanges.OpCancelOrder:     exchanges.PrivatePost("order/cancel"),
	exchanges.OpFetchOpenOrders: exchanges.PrivatePost("account/orders").ReadOnly(),
	OpAccountBalance:            exchanges.PrivatePost("account/balance").ReadOnly(),
}

// Market ids put the quote first: "BTC-LTC" is LTC/BTC.
var symbolRule = exchanges.SymbolRule{Separator: "-", Reversed: true}

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"Must be authorized": exchanges.KindAuthentication,
	},
}

// Client is the TradeOgre adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a TradeOgre adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Trade Ogre",
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

type tickerRow struct {
	InitialPrice exchanges.Number `json:"initialprice"`
	Price        exchanges.Number `json:"price"`
	High         exchanges.Number `json:"high"`
	Low          exchanges.Number `json:"low"`
	Volume       exchanges.Number `json:"volume"`
	Bid          exchanges.Number `json:"bid"`
	Ask          exchanges.Number `json:"ask"`
}

// FetchMarkets reads the list of single-key objects keyed by market id.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var rows []map[string]json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchMarkets, nil, &rows); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(rows))
	for _, row := range rows {
		for id, info := range row {
			baseID, quoteID, err := symbolRule.SplitSymbolID(id)
			if err != nil {
				c.Logger().Debugw("skipping unparseable market", "market", id)
				continue
			}
			base := exchanges.CurrencyCode(baseID, nil)
			quote := exchanges.CurrencyCode(quoteID, nil)
			markets = append(markets, &exchanges.Market{
				ID:      id,
				Symbol:  exchanges.Symbol(base, quote),
				Base:    base,
				Quote:   quote,
				BaseID:  baseID,
				QuoteID: quoteID,
				Active:  true,
				Type:    exchanges.MarketTypeSpot,
				Precision: exchanges.Precision{
					Mode:  exchanges.PrecisionDecimalPlaces,
					Price: exchanges.Some(decimal.NewFromInt(pricePrecision)),
				},
				Info: info,
			})
		}
	}
	return markets, nil
}

// FetchTicker fetches the ticker of one market. initialprice is the price
// 24 hours ago.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	body, err := c.api.Call(ctx, exchanges.OpFetchTicker, exchanges.Params{"symbol": market.ID})
	if err != nil {
		return nil, err
	}
	var row tickerRow
	if err := c.api.Decode(body, &row); err != nil {
		return nil, err
	}
	return exchanges.DeriveTicker(&exchanges.Ticker{
		Symbol:        market.Symbol,
		High:          row.High.NullDecimal,
		Low:           row.Low.NullDecimal,
		Bid:           row.Bid.NullDecimal,
		Ask:           row.Ask.NullDecimal,
		Last:          row.Price.NullDecimal,
		PreviousClose: row.InitialPrice.NullDecimal,
		BaseVolume:    row.Volume.NullDecimal,
		Info:          body,
	}), nil
}

// FetchOrderBook fetches the book. Sides are price-keyed objects, and an
// empty side arrives as an empty array.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var res struct {
		Buy  exchanges.Levels `json:"buy"`
		Sell exchanges.Levels `json:"sell"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOrderBook, exchanges.Params{"symbol": market.ID}, &res); err != nil {
		return nil, err
	}
	return exchanges.NewOrderBook(market.Symbol, res.Buy, res.Sell, time.Time{}).Truncate(limit), nil
}

type historyRow struct {
	Date     exchanges.Number `json:"date"`
	Type     exchanges.Text   `json:"type"`
	Price    exchanges.Number `json:"price"`
	Quantity exchanges.Number `json:"quantity"`
}

// FetchTrades fetches recent public trades. Trades carry no id.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var rows []historyRow
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTrades, exchanges.Params{"symbol": market.ID}, &rows); err != nil {
		return nil, err
	}
	trades := make([]*exchanges.Trade, 0, len(rows))
	for _, r := range rows {
		t := exchanges.DeriveTrade(&exchanges.Trade{
			Timestamp: exchanges.Seconds(r.Date.NullDecimal),
			Symbol:    market.Symbol,
			Side:      exchanges.SideFromString(r.Type.String()),
			Price:     r.Price.NullDecimal,
			Amount:    r.Quantity.NullDecimal,
		}, nil)
		if !since.IsZero() && t.Timestamp.Before(since) {
			continue
		}
		trades = append(trades, t)
	}
	trades = exchanges.SortTrades(trades)
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return trades, nil
}

// FetchBalance reports totals only.
func (c *Client) FetchBalance(ctx context.Context) (*exchanges.Balances, error) {
	body, err := c.api.Call(ctx, exchanges.OpFetchBalance, nil)
	if err != nil {
		return nil, err
	}
	var res struct {
		Balances map[string]exchanges.Number `json:"balances"`
	}
	if err := c.api.Decode(body, &res); err != nil {
		return nil, err
	}
	out := exchanges.NewBalances(time.Time{})
	for id, total := range res.Balances {
		out.Set(exchanges.CurrencyCode(id, nil), decimal.NullDecimal{}, decimal.NullDecimal{}, total.NullDecimal)
	}
	out.Info = body
	return out, nil
}

type orderRow struct {
	UUID      exchanges.Text   `json:"uuid"`
	Date      exchanges.Number `json:"date"`
	Type      exchanges.Text   `json:"type"`
	Market    exchanges.Text   `json:"market"`
	Price     exchanges.Number `json:"price"`
	Quantity  exchanges.Number `json:"quantity"`
	Fulfilled exchanges.Number `json:"fulfilled"`
}

func (c *Client) parseOrder(raw json.RawMessage, row orderRow) *exchanges.Order {
	market, _ := c.MarketByID(row.Market.String())
	o := &exchanges.Order{
		ID:        row.UUID.String(),
		Timestamp: exchanges.Seconds(row.Date.NullDecimal),
		Symbol:    exchanges.SymbolOf(market),
		Type:      exchanges.OrderTypeLimit,
		Side:      exchanges.SideFromString(row.Type.String()),
		Price:     row.Price.NullDecimal,
		Amount:    row.Quantity.NullDecimal,
		Filled:    row.Fulfilled.NullDecimal,
		Status:    exchanges.OrderStatusOpen,
		Info:      raw,
	}
	if !o.Filled.Valid {
		o.Filled = exchanges.Some(decimal.Zero)
	}
	o = exchanges.DeriveOrder(o)
	if o.Remaining.Valid && o.Remaining.Decimal.IsZero() {
		o.Status = exchanges.OrderStatusClosed
	}
	return o
}

// CreateOrder places a limit order; the venue has no market orders.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	market, err := c.ResolveMarket(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if req.Type != exchanges.OrderTypeLimit {
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "only limit orders are supported")
	}
	if !req.Price.Valid {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "limit order requires a price")
	}
	op := OpBuy
	switch req.Side {
	case exchanges.SideBuy:
	case exchanges.SideSell:
		op = OpSell
	default:
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid side %q", req.Side)
	}
	params := exchanges.Params{
		"market":   market.ID,
		"quantity": exchanges.AmountToPrecision(market, req.Amount),
		"price":    exchanges.PriceToPrecision(market, req.Price.Decimal),
	}
	body, err := c.api.Call(ctx, op, params.Extend(req.Params))
	if err != nil {
		return nil, err
	}
	var res struct {
		UUID exchanges.Text `json:"uuid"`
	}
	if err := c.api.Decode(body, &res); err != nil {
		return nil, err
	}
	return &exchanges.Order{
		ID:     res.UUID.String(),
		Symbol: market.Symbol,
		Type:   exchanges.OrderTypeLimit,
		Side:   req.Side,
		Price:  req.Price,
		Amount: exchanges.Some(req.Amount),
		Status: exchanges.OrderStatusOpen,
		Info:   body,
	}, nil
}

// CancelOrder cancels by uuid.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	body, err := c.api.Call(ctx, exchanges.OpCancelOrder, exchanges.Params{"uuid": id})
	if err != nil {
		return nil, err
	}
	return &exchanges.Order{ID: id, Symbol: symbol, Status: exchanges.OrderStatusCanceled, Info: body}, nil
}

// FetchOrder fetches an order by uuid.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	body, err := c.api.Call(ctx, exchanges.OpFetchOrder, exchanges.Params{"uuid": id})
	if err != nil {
		return nil, err
	}
	var row orderRow
	if err := c.api.Decode(body, &row); err != nil {
		return nil, err
	}
	if row.UUID == "" {
		row.UUID = exchanges.Text(id)
	}
	return c.parseOrder(body, row), nil
}

// FetchOpenOrders lists open orders, optionally of one market.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	params := exchanges.Params{}
	if symbol != "" {
		market, err := c.Market(symbol)
		if err != nil {
			return nil, err
		}
		params["market"] = market.ID
	}
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOpenOrders, params, &rows); err != nil {
		return nil, err
	}
	orders := make([]*exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		var row orderRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		o := c.parseOrder(raw, row)
		if !since.IsZero() && o.Timestamp.Before(since) {
			continue
		}
		orders = append(orders, o)
	}
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// sign uses HTTP basic auth for private calls. POST parameters travel as a
// form body.
func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	url := c.URL(path)
	if ep.Method == http.MethodGet && len(params) > 0 {
		url += "?" + params.Encode()
	}
	req := exchanges.NewRequest(ep.Method, url)
	if ep.Method != http.MethodGet && len(params) > 0 {
		req.Body = params.Encode()
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if ep.Access == exchanges.Private {
		creds := c.Credentials()
		req.Headers.Set("Authorization", exchanges.BasicAuth(creds.APIKey, creds.Secret))
	}
	return req, nil
}

// handleError maps {"success": false, "error": "..."} bodies.
func (c *Client) handleError(status int, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if !strings.HasPrefix(string(trimmed), "{") {
		return nil
	}
	var res struct {
		Success *bool          `json:"success"`
		Error   exchanges.Text `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil
	}
	if res.Success == nil || *res.Success {
		return nil
	}
	return errorTable.Raise(exchangeID, string(body), res.Error.String())
}
