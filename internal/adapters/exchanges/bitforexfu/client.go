// Package bitforexfu implements the Bitforex perpetual swap adapter.
package bitforexfu

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"exconnect/internal/adapters/exchanges"
)

const (
	exchangeID = "bitforexfu"
	baseURL    = "https://www.bitforex.com/contract"
	rateLimit  = 2000 * time.Millisecond
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:   exchanges.Get("swap/contract/listAll"),
	exchanges.OpFetchOrderBook: exchanges.Get("mkapi/depth"),
	exchanges.OpFetchTicker:    exchanges.Get("mkapi/ticker"),
	exchanges.OpFetchOHLCV:     exchanges.Get("mkapi/kline"),
}

var timeframes = map[string]string{
	"1m":  "1min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"1h":  "1hour",
	"2h":  "2hour",
	"4h":  "4hour",
	"12h": "12hour",
	"1d":  "1day",
	"1w":  "1week",
	"1M":  "1month",
}

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"4004":  exchanges.KindOrderNotFound,
		"1013":  exchanges.KindAuthentication,
		"1016":  exchanges.KindAuthentication,
		"3002":  exchanges.KindInsufficientFunds,
		"10204": exchanges.KindDDoSProtection,
	},
}

// Client is the Bitforex swap adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a Bitforex swap adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "Bitforex Futures",
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

type contractRow struct {
	Symbol              exchanges.Text   `json:"symbol"`
	UnitQuantity        exchanges.Number `json:"unitQuantity"`
	MinOrderPrice       exchanges.Number `json:"minOrderPrice"`
	MaxOrderPrice       exchanges.Number `json:"maxOrderPrice"`
	MinOrderVolume      exchanges.Number `json:"minOrderVolume"`
	MaxOrderVolume      exchanges.Number `json:"maxOrderVolume"`
	FeeRateMaker        exchanges.Number `json:"feeRateMaker"`
	FeeRateTaker        exchanges.Number `json:"feeRateTaker"`
	PriceOrderPrecision exchanges.Number `json:"priceOrderPrecision"`
}

// FetchMarkets lists swap contracts. Ids look like "swap-usd-btc": the
// second part is the quote and the third the base.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var res struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchMarkets, nil, &res); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(res.Data))
	for _, raw := range res.Data {
		var row contractRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		id := row.Symbol.String()
		parts := strings.Split(id, "-")
		if len(parts) != 3 {
			c.Logger().Debugw("skipping contract", "id", id)
			continue
		}
		baseID, quoteID := parts[2], parts[1]
		base := exchanges.CurrencyCode(baseID, nil)
		quote := exchanges.CurrencyCode(quoteID, nil)
		m := &exchanges.Market{
			ID:      id,
			Symbol:  exchanges.Symbol(base, quote),
			Base:    base,
			Quote:   quote,
			BaseID:  baseID,
			QuoteID: quoteID,
			Active:  true,
			Type:    exchanges.MarketTypeSwap,
			Precision: exchanges.Precision{
				Mode:   exchanges.PrecisionTickSize,
				Amount: row.UnitQuantity.NullDecimal,
			},
			Limits: exchanges.Limits{
				Amount: exchanges.MinMax{Min: row.MinOrderVolume.NullDecimal, Max: row.MaxOrderVolume.NullDecimal},
				Price:  exchanges.MinMax{Min: row.MinOrderPrice.NullDecimal, Max: row.MaxOrderPrice.NullDecimal},
			},
			Maker: row.FeeRateMaker.NullDecimal,
			Taker: row.FeeRateTaker.NullDecimal,
			Info:  raw,
		}
		if row.PriceOrderPrecision.Valid {
			m.Precision.Price = exchanges.Some(exchanges.PowTen(row.PriceOrderPrecision.Int()))
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FetchTicker fetches the latest ticker of a contract.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (*exchanges.Ticker, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var res struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchTicker, exchanges.Params{"businessType": market.ID}, &res); err != nil {
		return nil, err
	}
	var row struct {
		Date exchanges.Number `json:"date"`
		High exchanges.Number `json:"high"`
		Low  exchanges.Number `json:"low"`
		Buy  exchanges.Number `json:"buy"`
		Sell exchanges.Number `json:"sell"`
		Last exchanges.Number `json:"last"`
		Vol  exchanges.Number `json:"vol"`
	}
	if err := c.api.Decode(res.Data, &row); err != nil {
		return nil, err
	}
	return exchanges.DeriveTicker(&exchanges.Ticker{
		Symbol:     market.Symbol,
		Timestamp:  exchanges.Millis(row.Date.NullDecimal),
		High:       row.High.NullDecimal,
		Low:        row.Low.NullDecimal,
		Bid:        row.Buy.NullDecimal,
		Ask:        row.Sell.NullDecimal,
		Last:       row.Last.NullDecimal,
		BaseVolume: row.Vol.NullDecimal,
		Info:       res.Data,
	}), nil
}

// FetchOrderBook fetches the contract depth. The exchange caps size at 200.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"businessType": market.ID}
	if limit > 0 {
		params["size"] = limit
	}
	var res struct {
		Time exchanges.Number `json:"time"`
		Data struct {
			Bids exchanges.Levels `json:"bids"`
			Asks exchanges.Levels `json:"asks"`
		} `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOrderBook, params, &res); err != nil {
		return nil, err
	}
	return exchanges.NewOrderBook(market.Symbol, res.Data.Bids, res.Data.Asks, exchanges.Millis(res.Time.NullDecimal)), nil
}

type candleRow struct {
	Time  exchanges.Number `json:"time"`
	Open  exchanges.Number `json:"open"`
	High  exchanges.Number `json:"high"`
	Low   exchanges.Number `json:"low"`
	Close exchanges.Number `json:"close"`
	Vol   exchanges.Number `json:"vol"`
}

// FetchOHLCV fetches klines. The endpoint has no start parameter, so since
// filters the returned candles.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	kType, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	params := exchanges.Params{"businessType": market.ID, "kType": kType}
	if limit > 0 {
		params["size"] = limit
	}
	var res struct {
		Data []candleRow `json:"data"`
	}
	if err := c.api.CallJSON(ctx, exchanges.OpFetchOHLCV, params, &res); err != nil {
		return nil, err
	}
	candles := make([]*exchanges.OHLCV, 0, len(res.Data))
	for _, row := range res.Data {
		candle := &exchanges.OHLCV{
			Timestamp: exchanges.Millis(row.Time.NullDecimal),
			Open:      row.Open.NullDecimal,
			High:      row.High.NullDecimal,
			Low:       row.Low.NullDecimal,
			Close:     row.Close.NullDecimal,
			Volume:    row.Vol.NullDecimal,
		}
		if !since.IsZero() && candle.Timestamp.Before(since) {
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// sign builds public queries and signed form bodies. The signature covers
// "/<path>?accessKey=<key>&<sorted params with nonce>".
func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	url := c.URL(path)
	if ep.Access == exchanges.Public {
		if len(params) > 0 {
			url += "?" + params.Encode()
		}
		return exchanges.NewRequest(ep.Method, url), nil
	}

	creds := c.Credentials()
	payload := exchanges.Params{"accessKey": creds.APIKey}.Encode()
	query := params.Extend(exchanges.Params{"nonce": c.Clock().Nonce()})
	payload += "&" + query.Encode()
	signature := exchanges.HMACSHA256(creds.Secret, "/"+path+"?"+payload)

	req := exchanges.NewRequest(ep.Method, url)
	req.Body = payload + "&signData=" + signature
	req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (c *Client) handleError(status int, body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil
	}
	var res struct {
		Success *bool          `json:"success"`
		Code    exchanges.Text `json:"code"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Success == nil || *res.Success {
		return nil
	}
	if kind, ok := errorTable.MatchExact(res.Code.String()); ok {
		return exchanges.NewError(kind, exchangeID, string(body)).WithBody(string(body))
	}
	return exchanges.NewError(exchanges.KindExchange, exchangeID, string(body)).WithBody(string(body))
}
