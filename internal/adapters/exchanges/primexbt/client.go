// Package primexbt implements the public futures surface of PrimeXBT.
package primexbt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "primexbt"
	baseURL    = "https://api.primexbt.com/v1"
	rateLimit  = 2000 * time.Millisecond
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:   exchanges.Get("markets"),
	exchanges.OpFetchOrderBook: exchanges.Get("dom"),
}

var tradingFee = exchanges.Float(0.0005)

// Client is the PrimeXBT adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a PrimeXBT adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Prime XBT",
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

type marketRow struct {
	Name       exchanges.Text   `json:"name"`
	Base       exchanges.Text   `json:"base"`
	Quote      exchanges.Text   `json:"quote"`
	QtyScale   exchanges.Number `json:"qty_scale"`
	PriceScale exchanges.Number `json:"price_scale"`
}

// FetchMarkets lists crypto contracts. Scales are decimal-place counts.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var res struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchMarkets, exchanges.Params{"category": "crypto"}, &res); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(res.Data))
	for _, raw := range res.Data {
		var row marketRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		base := exchanges.CurrencyCode(row.Base.String(), nil)
		quote := exchanges.CurrencyCode(row.Quote.String(), nil)
		markets = append(markets, &exchanges.Market{
			ID:      row.Name.String(),
			Symbol:  exchanges.Symbol(base, quote),
			Base:    base,
			Quote:   quote,
			BaseID:  row.Base.String(),
			QuoteID: row.Quote.String(),
			Active:  true,
			Type:    exchanges.MarketTypeFuture,
			Precision: exchanges.Precision{
				Mode:   exchanges.PrecisionDecimalPlaces,
				Amount: row.QtyScale.NullDecimal,
				Price:  row.PriceScale.NullDecimal,
			},
			Limits: exchanges.Limits{
				Amount: exchanges.MinMax{Min: tick(row.QtyScale)},
				Price:  exchanges.MinMax{Min: tick(row.PriceScale)},
			},
			Maker: tradingFee,
			Taker: tradingFee,
			Info:  raw,
		})
	}
	return markets, nil
}

func tick(scale exchanges.Number) decimal.NullDecimal {
	if !scale.Valid {
		return decimal.NullDecimal{}
	}
	return exchanges.Some(exchanges.PowTen(scale.Int()))
}

// FetchOrderBook fetches the depth of market. Each price arrives twice with
// identical volume and only the first is kept.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"symbol": market.ID}
	if limit > 0 {
		params["depth"] = limit
	}
	var res struct {
		Bids  exchanges.Levels `json:"bids"`
		Sells exchanges.Levels `json:"sells"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOrderBook, params, &res); err != nil {
		return nil, err
	}
	return exchanges.NewOrderBook(market.Symbol, res.Bids, res.Sells, time.Time{}), nil
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

// handleError maps {"error": {...}} or {"error": "..."} bodies to
// a generic exchange error; the venue publishes no code table.
func (c *Client) handleError(status int, body []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil
	}
	var res struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil || len(res.Error) == 0 || string(res.Error) == "null" {
		return nil
	}
	return exchanges.NewError(exchanges.KindExchange, exchangeID, string(res.Error)).WithBody(string(body))
}
