// Package felixo implements the public market-data surface of Felixo.
package felixo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "felixo"
	baseURL    = "https://api.felixo.com/v1"
	rateLimit  = 2000 * time.Millisecond
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchTime:      exchanges.Get("time"),
	exchanges.OpFetchMarkets:   exchanges.Get("ticker"),
	exchanges.OpFetchTickers:   exchanges.Get("ticker"),
	exchanges.OpFetchOrderBook: exchanges.Get("orderbook"),
}

// Pair ids carry no separator; the quote is recognized by suffix.
var symbolRule = exchanges.SymbolRule{
	Quotes:          []string{"USDT", "USDC", "TRY", "BTC"},
	CaseInsensitive: true,
}

var tradingFee = exchanges.Float(0.002)

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"Permission denied.": exchanges.KindPermissionDenied,
	},
}

// Client is the Felixo adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a Felixo adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Felixo",
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

type tickerRow struct {
	Pair      exchanges.Text   `json:"pair"`
	LastPrice exchanges.Number `json:"lastPrice"`
	OpenPrice exchanges.Number `json:"openPrice"`
	HighPrice exchanges.Number `json:"highPrice"`
	LowPrice  exchanges.Number `json:"lowPrice"`
	Volume    exchanges.Number `json:"volume"`
	Bid       exchanges.Number `json:"bid"`
	Ask       exchanges.Number `json:"ask"`
	Timestamp exchanges.Number `json:"timestamp"`
}

// CalibrateClock measures local minus server time.
func (c *Client) CalibrateClock(ctx context.Context) (time.Duration, error) {
	body, err := c.api.Call(ctx, exchanges.OpFetchTime, nil)
	if err != nil {
		return 0, err
	}
	var server exchanges.Number
	if err := json.Unmarshal(body, &server); err != nil || !server.Valid {
		var res struct {
			ServerTime exchanges.Number `json:"serverTime"`
			Timestamp  exchanges.Number `json:"timestamp"`
		}
		if err := c.api.Decode(body, &res); err != nil {
			return 0, err
		}
		server.NullDecimal = exchanges.First(res.ServerTime.NullDecimal, res.Timestamp.NullDecimal)
	}
	if !server.Valid {
		return 0, exchanges.NewError(exchanges.KindExchange, exchangeID, "time response without a timestamp").WithBody(string(body))
	}
	return c.Clock().Skew(exchanges.Millis(server.NullDecimal)), nil
}

// FetchMarkets derives markets from the ticker list, the only listing the
// exchange publishes.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchMarkets, nil, &rows); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(rows))
	for _, raw := range rows {
		var row tickerRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		id := row.Pair.String()
		baseID, quoteID, err := symbolRule.SplitSymbolID(id)
		if err != nil {
			c.Logger().Debugw("skipping unparseable pair", "pair", id)
			continue
		}
		base := exchanges.CurrencyCode(baseID, nil)
		quote := exchanges.CurrencyCode(quoteID, nil)
		markets = append(markets, &exchanges.Market{
			ID:        id,
			Symbol:    exchanges.Symbol(base, quote),
			Base:      base,
			Quote:     quote,
			BaseID:    baseID,
			QuoteID:   quoteID,
			Active:    true,
			Type:      exchanges.MarketTypeSpot,
			Precision: exchanges.Precision{Mode: exchanges.PrecisionDecimalPlaces},
			Maker:     tradingFee,
			Taker:     tradingFee,
			Info:      raw,
		})
	}
	return markets, nil
}

func (c *Client) parseTicker(raw json.RawMessage) *exchanges.Ticker {
	var row tickerRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	market, _ := c.MarketByID(row.Pair.String())
	return exchanges.DeriveTicker(&exchanges.Ticker{
		Symbol:     exchanges.SymbolOf(market),
		Timestamp:  exchanges.Millis(row.Timestamp.NullDecimal),
		High:       row.HighPrice.NullDecimal,
		Low:        row.LowPrice.NullDecimal,
		Bid:        row.Bid.NullDecimal,
		Ask:        row.Ask.NullDecimal,
		Open:       row.OpenPrice.NullDecimal,
		Last:       row.LastPrice.NullDecimal,
		BaseVolume: row.Volume.NullDecimal,
		Info:       raw,
	})
}

// FetchTickers fetches every ticker.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTickers, nil, &rows); err != nil {
		return nil, err
	}
	list := make([]*exchanges.Ticker, 0, len(rows))
	for _, raw := range rows {
		if t := c.parseTicker(raw); t != nil {
			list = append(list, t)
		}
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

// FetchTicker picks one ticker out of the full list.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	if _, err := c.ResolveMarket(ctx, symbol); err != nil {
		return nil, err
	}
	tickers, err := c.FetchTickers(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	t, ok := tickers[symbol]
	if !ok {
		return nil, exchanges.Errorf(exchanges.KindBadSymbol, exchangeID, "no ticker for %s", symbol)
	}
	return t, nil
}

// FetchOrderBook fetches the book of one pair.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"pair": market.ID}
	if limit > 0 {
		params["limit"] = limit
	}
	var res struct {
		Bids      exchanges.Levels `json:"bids"`
		Asks      exchanges.Levels `json:"asks"`
		Timestamp exchanges.Number `json:"timestamp"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOrderBook, params, &res); err != nil {
		return nil, err
	}
	return exchanges.NewOrderBook(market.Symbol, res.Bids, res.Asks, exchanges.Millis(res.Timestamp.NullDecimal)), nil
}

func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	if ep.Access != exchanges.Public {
		return nil, exchanges.Errorf(exchanges.KindNotSupported, exchangeID, "private endpoints are not supported")
	}
	url := c.URL(path)
	if len(params) > 0 {
		url += "?" + params.Encode()
	}
	return exchanges.NewRequest(ep.Method, url), nil
}

// handleError maps {"error": "..."} bodies.
func (c *Client) handleError(status int, body []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil
	}
	var res struct {
		Error *exchanges.Text `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Error == nil {
		return nil
	}
	return errorTable.Raise(exchangeID, string(body), res.Error.String())
}
