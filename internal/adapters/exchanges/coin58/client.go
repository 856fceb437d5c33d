package coin58

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "58coin"
	baseURL    = "https://openapi.58ex.com"
	version    = "v1"
	rateLimit  = 2000 * time.Millisecond
)

// Operations without a unified counterpart.
const (
	OpTickerPrice exchanges.Operation = "tickerPrice"
	OpAccounts    exchanges.Operation = "accounts"
	OpOrder       exchanges.Operation = "order"
	OpOrders      exchanges.Operation = "orders"
	OpMyTrades    exchanges.Operation = "myTrades"
	OpPlaceOrder  exchanges.Operation = "placeOrder"
	OpCancelOrder exchanges.Operation = "cancelOrder"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:   exchanges.Get("product/list"),
	OpTickerPrice:              exchanges.Get("ticker/price"),
	exchanges.OpFetchTickers:   exchanges.Get("ticker"),
	exchanges.OpFetchOrderBook: exchanges.Get("order_book"),
	exchanges.OpFetchTrades:    exchanges.Get("trades"),
	exchanges.OpFetchOHLCV:     exchanges.Get("candles"),
	OpAccounts:                 exchanges.PrivateGet("accounts"),
	OpOrder:                    exchanges.PrivateGet("order"),
	OpOrders:                   exchanges.PrivateGet("orders"),
	OpMyTrades:                 exchanges.PrivateGet("trades"),
	OpPlaceOrder:               exchanges.PrivatePost("order/place"),
	OpCancelOrder:              exchanges.PrivatePost("order/cancel"),
}

var timeframes = map[string]string{
	"1m":  "1min",
	"3m":  "3min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"1h":  "1hour",
	"2h":  "2hour",
	"4h":  "4hour",
	"6h":  "6hour",
	"12h": "12hour",
	"1d":  "1day",
	"1w":  "1week",
}

var (
	makerFee = exchanges.Float(0.0005)
	takerFee = exchanges.Float(0.0005)
)

// errorTable is empty until the exchange documents its messages; every
// reported error falls through to ExchangeError.
var errorTable = exchanges.ErrorTable{}

// Client is the 58 Coin spot adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a 58 Coin adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "58 Coin",
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

// API exposes the bound endpoints, including the private ones without a
// unified method.
func (c *Client) API() *exchanges.API { return c.api }

type marketRow struct {
	Name              exchanges.Text   `json:"name"`
	BaseCurrencyName  exchanges.Text   `json:"baseCurrencyName"`
	QuoteCurrencyName exchanges.Text   `json:"quoteCurrencyName"`
	BaseMinSize       exchanges.Number `json:"baseMinSize"`
	BaseIncrement     exchanges.Number `json:"baseIncrement"`
	QuoteIncrement    exchanges.Number `json:"quoteIncrement"`
}

// FetchMarkets lists spot markets.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var res struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchMarkets, nil, &res); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(res.Data))
	for _, raw := range res.Data {
		var row marketRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		markets = append(markets, parseMarket(row, raw))
	}
	return markets, nil
}

func parseMarket(row marketRow, raw json.RawMessage) *exchanges.Market {
	baseID, quoteID := row.BaseCurrencyName.String(), row.QuoteCurrencyName.String()
	base := exchanges.CurrencyCode(baseID, nil)
	quote := exchanges.CurrencyCode(quoteID, nil)
	price := row.QuoteIncrement.NullDecimal
	return &exchanges.Market{
		ID:      row.Name.String(),
		Symbol:  exchanges.Symbol(base, quote),
		Base:    base,
		Quote:   quote,
		BaseID:  baseID,
		QuoteID: quoteID,
		Active:  true,
		Type:    exchanges.MarketTypeSpot,
		Precision: exchanges.Precision{
			Mode:   exchanges.PrecisionTickSize,
			Amount: row.BaseIncrement.NullDecimal,
			Price:  price,
		},
		Limits: exchanges.Limits{
			Amount: exchanges.MinMax{Min: row.BaseMinSize.NullDecimal},
			Price:  exchanges.MinMax{Min: price},
		},
		Maker: makerFee,
		Taker: takerFee,
		Info:  raw,
	}
}

type tickerRow struct {
	Symbol      exchanges.Text   `json:"symbol"`
	Time        exchanges.Number `json:"time"`
	Bid         exchanges.Number `json:"bid"`
	Ask         exchanges.Number `json:"ask"`
	Last        exchanges.Number `json:"last"`
	Open        exchanges.Number `json:"open"`
	High        exchanges.Number `json:"high"`
	Low         exchanges.Number `json:"low"`
	Volume      exchanges.Number `json:"volume"`
	QuoteVolume exchanges.Number `json:"quote_volume"`
}

// FetchTickers fetches every ticker and keeps the requested symbols.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var res struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTickers, nil, &res); err != nil {
		return nil, err
	}
	list := make([]*exchanges.Ticker, 0, len(res.Data))
	for _, raw := range res.Data {
		var row tickerRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		list = append(list, c.parseTicker(row, raw))
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

func (c *Client) parseTicker(row tickerRow, raw json.RawMessage) *exchanges.Ticker {
	var market *exchanges.Market
	if m, ok := c.MarketByID(row.Symbol.String()); ok {
		market = m
	}
	return exchanges.DeriveTicker(&exchanges.Ticker{
		Symbol:      exchanges.SymbolOf(market),
		Timestamp:   exchanges.Millis(row.Time.NullDecimal),
		High:        row.High.NullDecimal,
		Low:         row.Low.NullDecimal,
		Bid:         row.Bid.NullDecimal,
		Ask:         row.Ask.NullDecimal,
		Open:        row.Open.NullDecimal,
		Last:        row.Last.NullDecimal,
		BaseVolume:  row.Volume.NullDecimal,
		QuoteVolume: row.QuoteVolume.NullDecimal,
		Info:        raw,
	})
}

// FetchOHLCV fetches candles. since and limit are optional.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	period, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID, "period": period}
	if !since.IsZero() {
		params["since"] = since.UnixMilli()
	}
	if limit > 0 {
		params["limit"] = limit
	}
	var res struct {
		Data [][]exchanges.Number `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOHLCV, params, &res); err != nil {
		return nil, err
	}
	candles := make([]*exchanges.OHLCV, 0, len(res.Data))
	for _, row := range res.Data {
		if candle := exchanges.CandleRow(row); candle != nil {
			candles = append(candles, candle)
		}
	}
	return candles, nil
}

func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	midfix := "spot"
	if ep.Access == exchanges.Private {
		midfix = "spot/my"
	}
	url := c.URL(version + "/" + midfix + "/" + path)

	if ep.Access == exchanges.Public {
		if len(params) > 0 {
			url += "?" + params.Encode()
		}
		return exchanges.NewRequest(ep.Method, url), nil
	}

	query := params.Extend(exchanges.Params{"nonce": c.Clock().Nonce()})
	body := query.Encode()
	creds := c.Credentials()
	req := exchanges.NewRequest(ep.Method, url)
	if ep.Method == http.MethodGet {
		req.URL += "?" + body
	} else {
		req.Body = body
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Headers.Set("Key", creds.APIKey)
	req.Headers.Set("Sign", exchanges.HMACSHA512(creds.Secret, body))
	return req, nil
}

func (c *Client) handleError(status int, body []byte) error {
	var res struct {
		Error *exchanges.Text `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Error == nil {
		return nil
	}
	msg := res.Error.String()
	return errorTable.Raise(exchangeID, string(body), msg)
}
