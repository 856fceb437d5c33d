package bitclude

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "bitclude"
	baseURL    = "https://api.bitclude.com"
	rateLimit  = 2000 * time.Millisecond
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchTickers: exchanges.Get("stats/ticker.json"),
}

var symbolRule = exchanges.SymbolRule{Separator: "_"}

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"Not enough balances":     exchanges.KindInsufficientFunds,
		"InvalidPrice":            exchanges.KindInvalidOrder,
		"Size too small":          exchanges.KindInvalidOrder,
		"Missing parameter price": exchanges.KindInvalidOrder,
		"Order not found":         exchanges.KindOrderNotFound,
	},
	Broad: []exchanges.BroadRule{
		{Substring: "Invalid parameter", Kind: exchanges.KindBadRequest},
		{Substring: "The requested URL was not found on the server", Kind: exchanges.KindBadRequest},
		{Substring: "No such coin", Kind: exchanges.KindBadRequest},
		{Substring: "No such market", Kind: exchanges.KindBadRequest},
		{Substring: "An unexpected error occurred", Kind: exchanges.KindExchange},
	},
}

// Client is the Bitclude adapter. The exchange publishes one ticker
// document, which doubles as the market list.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a Bitclude adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Bitclude",
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

func (c *Client) fetchTickerDocument(ctx context.Context) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTickers, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FetchMarkets derives markets from the ticker keys such as "btc_pln".
// Limits are account specific and left undefined.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	doc, err := c.fetchTickerDocument(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	markets := make([]*exchanges.Market, 0, len(ids))
	for _, id := range ids {
		baseID, quoteID, err := symbolRule.SplitSymbolID(id)
		if err != nil {
			c.Logger().Debugw("skipping market", "id", id, "error", err)
			continue
		}
		base := exchanges.CurrencyCode(baseID, nil)
		quote := exchanges.CurrencyCode(quoteID, nil)
		info, _ := json.Marshal(map[string]json.RawMessage{id: doc[id]})
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
			Info:      info,
		})
	}
	return markets, nil
}

type tickerRow struct {
	Last   exchanges.Number `json:"last"`
	Max24H exchanges.Number `json:"max24H"`
	Min24H exchanges.Number `json:"min24H"`
	Bid    exchanges.Number `json:"bid"`
	Ask    exchanges.Number `json:"ask"`
}

// FetchTickers returns the tickers of the loaded markets. The exchange
// sends no timestamp, so each ticker is stamped with the local clock.
func (c *Client) FetchTickers(ctx context.Context, symbols []string) (map[string]*exchanges.Ticker, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	doc, err := c.fetchTickerDocument(ctx)
	if err != nil {
		return nil, err
	}
	now := time.UnixMilli(c.Clock().Milliseconds()).UTC()
	list := make([]*exchanges.Ticker, 0, len(doc))
	for _, m := range c.Markets() {
		raw, ok := doc[m.ID]
		if !ok {
			continue
		}
		var row tickerRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		list = append(list, exchanges.DeriveTicker(&exchanges.Ticker{
			Symbol:    m.Symbol,
			Timestamp: now,
			High:      row.Max24H.NullDecimal,
			Low:       row.Min24H.NullDecimal,
			Bid:       row.Bid.NullDecimal,
			Ask:       row.Ask.NullDecimal,
			Last:      row.Last.NullDecimal,
			Info:      raw,
		}))
	}
	return exchanges.FilterTickers(exchanges.IndexTickers(list), symbols), nil
}

// FetchTicker picks one market out of the ticker document.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
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

func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	url := c.URL(path)
	if len(params) > 0 {
		url += "?" + params.Encode()
	}
	return exchanges.NewRequest(ep.Method, url), nil
}

// handleError reads {"error": "...", "success": false}.
func (c *Client) handleError(status int, body []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil
	}
	var res struct {
		Success *bool          `json:"success"`
		Error   exchanges.Text `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil
	}
	if res.Error == "" && (res.Success == nil || *res.Success) {
		return nil
	}
	return errorTable.Raise(exchangeID, string(body), res.Error.String())
}
