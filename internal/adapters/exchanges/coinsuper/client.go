// Package coinsuper implements the CoinSuper spot adapter. Every endpoint,
// market data included, is a signed POST.
package coinsuper

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
)

const (
	exchangeID = "coinsuper"
	baseURL    = "https://api.coinsuper.com"
	prefix     = "api/v1/"
	rateLimit  = 200 * time.Millisecond

	codeOK       = "1000"
	maxDepth     = 50
	maxCandles   = 300
	detailsBatch = 50
)

// Operations without a unified counterpart.
const (
	OpBuy          exchanges.Operation = "buy"
	OpSell         exchanges.Operation = "sell"
	OpBatchCancel  exchanges.Operation = "batchCancel"
	OpOpenOrderIDs exchanges.Operation = "openOrderIds"
	OpClientOrders exchanges.Operation = "clientOrders"
	OpTradeHistory exchanges.Operation = "tradeHistory"
	OpOrderList    exchanges.Operation = "orderList"
)

var endpoints = map[exchanges.Operation]exchanges.Endpoint{
	exchanges.OpFetchMarkets:      exchanges.PrivatePost(prefix + "market/symbolList").ReadOnly(),
	exchanges.OpFetchOrderBook:    exchanges.PrivatePost(prefix + "market/orderBook").ReadOnly(),
	exchanges.OpFetchOHLCV:        exchanges.PrivatePost(prefix + "market/kline").ReadOnly(),
	exchanges.OpFetchTrades:       exchanges.PrivatePost(prefix + "market/tickers").ReadOnly(),
	exchanges.OpFetchBalance:      exchanges.PrivatePost(prefix + "asset/userAssetInfo").ReadOnly(),
	OpBuy:                         exchanges.PrivatePost(prefix + "order/buy"),
	OpSell:                        exchanges.PrivatePost(prefix + "order/sell"),
	exchanges.OpCancelOrder:       exchanges.PrivatePost(prefix + "order/cancel"),
	OpBatchCancel:                 exchanges.PrivatePost(prefix + "order/batchCancel"),
	OpOrderList:                   exchanges.PrivatePost(prefix + "order/list").ReadOnly(),
	exchanges.OpFetchOrder:        exchanges.PrivatePost(prefix + "order/details").ReadOnly(),
	OpClientOrders:                exchanges.PrivatePost(prefix + "order/clList").ReadOnly(),
	OpOpenOrderIDs:                exchanges.PrivatePost(prefix + "order/openList").ReadOnly(),
	exchanges.OpFetchClosedOrders: exchanges.PrivatePost(prefix + "order/history").ReadOnly(),
	OpTradeHistory:                exchanges.PrivatePost(prefix + "order/tradeHistory").ReadOnly(),
}

var timeframes = map[string]string{
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"1h":  "1hour",
	"6h":  "6hour",
	"12h": "12hour",
	"1d":  "1day",
}

var (
	orderTypes = map[exchanges.OrderType]string{
		exchanges.OrderTypeLimit:  "LMT",
		exchanges.OrderTypeMarket: "MKT",
	}
	statuses = map[string]exchanges.OrderStatus{
		"UNDEAL":     exchanges.OrderStatusOpen,
		"PARTDEAL":   exchanges.OrderStatusOpen,
		"PROCESSING": exchanges.OrderStatusOpen,
		"DEAL":       exchanges.OrderStatusClosed,
		"CANCEL":     exchanges.OrderStatusCanceled,
	}
)

var errorTable = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"2000": exchanges.KindExchangeNotAvailable,
		"2001": exchanges.KindExchange,
		"2002": exchanges.KindExchangeNotAvailable,
		"2003": exchanges.KindDDoSProtection,
		"2004": exchanges.KindPermissionDenied,
		"2005": exchanges.KindArgumentsRequired,
		"2006": exchanges.KindExchange,
		"2007": exchanges.KindPermissionDenied,
		"2008": exchanges.KindAuthentication,
		"3001": exchanges.KindInsufficientFunds,
		"3002": exchanges.KindOrderNotFound,
		"3003": exchanges.KindInvalidOrder,
		"3004": exchanges.KindBadSymbol,
		"3005": exchanges.KindInvalidOrder,
		"3006": exchanges.KindInvalidOrder,
		"3007": exchanges.KindInvalidOrder,
		"3008": exchanges.KindBadRequest,
		"3009": exchanges.KindInvalidNonce,
		"3010": exchanges.KindInvalidOrder,
		"3011": exchanges.KindExchange,
		"3012": exchanges.KindExchange,
		"3013": exchanges.KindBadRequest,
		"3014": exchanges.KindBadSymbol,
		"3015": exchanges.KindInvalidOrder,
		"3016": exchanges.KindInvalidOrder,
		"3017": exchanges.KindAuthentication,
		"3018": exchanges.KindInvalidOrder,
		"3019": exchanges.KindBadRequest,
		"3020": exchanges.KindInvalidOrder,
		"3021": exchanges.KindInvalidOrder,
		"3027": exchanges.KindExchangeNotAvailable,
		"3028": exchanges.KindInvalidOrder,
		"3029": exchanges.KindInvalidOrder,
		"3030": exchanges.KindInvalidOrder,
		"3031": exchanges.KindBadRequest,
		"3032": exchanges.KindBadRequest,
		"3033": exchanges.KindBadRequest,
		"3034": exchanges.KindBadRequest,
		"3035": exchanges.KindBadRequest,
		"3036": exchanges.KindPermissionDenied,
	},
}

// Client is the CoinSuper adapter.
type Client struct {
	*exchanges.Base
	api *exchanges.API
}

// New constructs a CoinSuper adapter.
func New(cfg exchanges.Config) (*Client, error) {
	c := &Client{}
	c.Base = exchanges.NewBase(exchanges.Descriptor{
		ID:        exchangeID,
		Name:      "CoinSuper",
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

type envelope struct {
	Code exchanges.Text `json:"code"`
	Msg  exchanges.Text `json:"msg"`
	Data struct {
		Result    json.RawMessage  `json:"result"`
		Timestamp exchanges.Number `json:"timestamp"`
	} `json:"data"`
}

func (c *Client) call(ctx context.Context, op exchanges.Operation, params exchanges.Params, target any) (*envelope, error) {
	var env envelope
	if err := c.api.CallJSON(ctx, op, params, &env); err != nil {
		return nil, err
	}
	if target != nil {
		if err := c.api.Decode(env.Data.Result, target); err != nil {
			return nil, err
		}
	}
	return &env, nil
}

type symbolRow struct {
	Symbol        exchanges.Text   `json:"symbol"`
	QuantityScale exchanges.Number `json:"quantityScale"`
	PriceScale    exchanges.Number `json:"priceScale"`
	QuantityMin   exchanges.Number `json:"quantityMin"`
	QuantityMax   exchanges.Number `json:"quantityMax"`
	PriceMin      exchanges.Number `json:"priceMin"`
	PriceMax      exchanges.Number `json:"priceMax"`
}

// FetchMarkets lists symbols; ids keep the exchange's "BTC/USDT" form.
func (c *Client) FetchMarkets(ctx context.Context) ([]*exchanges.Market, error) {
	var rows []json.RawMessage
	if _, err := c.call(ctx, exchanges.OpFetchMarkets, nil, &rows); err != nil {
		return nil, err
	}
	markets := make([]*exchanges.Market, 0, len(rows))
	for _, raw := range rows {
		var row symbolRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		id := row.Symbol.String()
		baseID, quoteID, ok := strings.Cut(id, "/")
		if !ok {
			continue
		}
		base := exchanges.CurrencyCode(strings.ToUpper(baseID), nil)
		quote := exchanges.CurrencyCode(strings.ToUpper(quoteID), nil)
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
				Mode:   exchanges.PrecisionDecimalPlaces,
				Amount: row.QuantityScale.NullDecimal,
				Price:  row.PriceScale.NullDecimal,
			},
			Limits: exchanges.Limits{
				Amount: exchanges.MinMax{Min: row.QuantityMin.NullDecimal, Max: row.QuantityMax.NullDecimal},
				Price:  exchanges.MinMax{Min: row.PriceMin.NullDecimal, Max: row.PriceMax.NullDecimal},
			},
			Info: raw,
		})
	}
	return markets, nil
}

// FetchOrderBook fetches at most 50 levels per side.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, limit int) (*exchanges.OrderBook, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxDepth {
		limit = maxDepth
	}
	var book struct {
		Bids json.RawMessage `json:"bids"`
		Asks json.RawMessage `json:"asks"`
	}
	env, err := c.call(ctx, exchanges.OpFetchOrderBook, exchanges.Params{"symbol": market.ID, "num": limit}, &book)
	if err != nil {
		return nil, err
	}
	return exchanges.NewOrderBook(market.Symbol,
		exchanges.ParseLevelObjects(book.Bids, "limitPrice", "quantity"),
		exchanges.ParseLevelObjects(book.Asks, "limitPrice", "quantity"),
		exchanges.Millis(env.Data.Timestamp.NullDecimal),
	), nil
}

// FetchOHLCV fetches at most 300 candles.
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]*exchanges.OHLCV, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	rng, err := exchanges.MapTimeframe(exchangeID, timeframes, timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxCandles {
		limit = maxCandles
	}
	var rows []struct {
		Timestamp exchanges.Number `json:"timestamp"`
		Open      exchanges.Number `json:"open"`
		High      exchanges.Number `json:"high"`
		Low       exchanges.Number `json:"low"`
		Close     exchanges.Number `json:"close"`
		Volume    exchanges.Number `json:"volume"`
	}
	params := exchanges.Params{"symbol": market.ID, "range": rng, "num": limit}
	if _, err := c.call(ctx, exchanges.OpFetchOHLCV, params, &rows); err != nil {
		return nil, err
	}
	candles := make([]*exchanges.OHLCV, 0, len(rows))
	for _, r := range rows {
		ts := exchanges.Millis(r.Timestamp.NullDecimal)
		if !since.IsZero() && ts.Before(since) {
			continue
		}
		candles = append(candles, &exchanges.OHLCV{
			Timestamp: ts,
			Open:      r.Open.NullDecimal,
			High:      r.High.NullDecimal,
			Low:       r.Low.NullDecimal,
			Close:     r.Close.NullDecimal,
			Volume:    r.Volume.NullDecimal,
		})
	}
	return candles, nil
}

type tradeRow struct {
	ID                 exchanges.Text   `json:"tid"`
	TradeID            exchanges.Text   `json:"trade_id"`
	OrderID            exchanges.Text   `json:"order_id"`
	Pair               exchanges.Text   `json:"pair"`
	Timestamp          exchanges.Number `json:"timestamp"`
	TradeType          exchanges.Text   `json:"tradeType"`
	Price              exchanges.Number `json:"price"`
	Rate               exchanges.Number `json:"rate"`
	Volume             exchanges.Number `json:"volume"`
	Commission         exchanges.Number `json:"commission"`
	CommissionCurrency exchanges.Text   `json:"commissionCurrency"`
	IsYourOrder        *bool            `json:"is_your_order"`
}

func (c *Client) parseTrade(raw json.RawMessage, market *exchanges.Market) *exchanges.Trade {
	var row tradeRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if row.Pair != "" {
		if m, ok := c.MarketByID(row.Pair.String()); ok {
			market = m
		}
	}
	id := row.TradeID.String()
	if id == "" {
		id = row.ID.String()
	}
	t := &exchanges.Trade{
		ID:        id,
		Order:     row.OrderID.String(),
		Timestamp: exchanges.Millis(row.Timestamp.NullDecimal),
		Symbol:    exchanges.SymbolOf(market),
		Type:      exchanges.OrderTypeLimit,
		Side:      exchanges.SideFromString(row.TradeType.String()),
		Price:     exchanges.First(row.Rate.NullDecimal, row.Price.NullDecimal),
		Amount:    row.Volume.NullDecimal,
		Fee:       exchanges.ReportedFee(row.Commission.NullDecimal, row.CommissionCurrency.String(), nil),
		Info:      raw,
	}
	if row.IsYourOrder != nil {
		t.TakerOrMaker = exchanges.Taker
		if *row.IsYourOrder {
			t.TakerOrMaker = exchanges.Maker
		}
	}
	return exchanges.DeriveTrade(t, market)
}

// FetchTrades fetches recent trades, served by the market/tickers endpoint.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Trade, error) {
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if _, err := c.call(ctx, exchanges.OpFetchTrades, exchanges.Params{"symbol": market.ID}, &rows); err != nil {
		return nil, err
	}
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
	return trades, nil
}

// FetchBalance reads the account asset map.
func (c *Client) FetchBalance(ctx context.Context) (*exchanges.Balances, error) {
	var result struct {
		Asset map[string]struct {
			Total     exchanges.Number `json:"total"`
			Available exchanges.Number `json:"available"`
		} `json:"asset"`
	}
	env, err := c.call(ctx, exchanges.OpFetchBalance, nil, &result)
	if err != nil {
		return nil, err
	}
	out := exchanges.NewBalances(exchanges.Millis(env.Data.Timestamp.NullDecimal))
	out.Info = env.Data.Result
	for id, a := range result.Asset {
		out.Set(exchanges.CurrencyCode(strings.ToUpper(id), nil), a.Available.NullDecimal, decimal.NullDecimal{}, a.Total.NullDecimal)
	}
	return out, nil
}

type orderRow struct {
	OrderNo           exchanges.Text   `json:"orderNo"`
	ClientOrderID     exchanges.Text   `json:"clientOrderId"`
	Symbol            exchanges.Text   `json:"symbol"`
	Action            exchanges.Text   `json:"action"`
	OrderType         exchanges.Text   `json:"orderType"`
	PriceLimit        exchanges.Number `json:"priceLimit"`
	Quantity          exchanges.Number `json:"quantity"`
	QuantityRemaining exchanges.Number `json:"quantityRemaining"`
	Amount            exchanges.Number `json:"amount"`
	AmountRemaining   exchanges.Number `json:"amountRemaining"`
	Fee               exchanges.Number `json:"fee"`
	State             exchanges.Text   `json:"state"`
	UTCCreate         exchanges.Number `json:"utcCreate"`
	UTCUpdate         exchanges.Number `json:"utcUpdate"`
}

// parseOrder normalizes an order. Cost is the spent quote amount, read as
// amount minus amountRemaining.
func (c *Client) parseOrder(raw json.RawMessage, market *exchanges.Market) *exchanges.Order {
	var row orderRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	if m, ok := c.MarketByID(row.Symbol.String()); ok {
		market = m
	}
	o := &exchanges.Order{
		ID:            row.OrderNo.String(),
		ClientOrderID: row.ClientOrderID.String(),
		Timestamp:     exchanges.Millis(row.UTCCreate.NullDecimal),
		Symbol:        exchanges.SymbolOf(market),
		Side:          exchanges.SideFromString(row.Action.String()),
		Price:         row.PriceLimit.NullDecimal,
		Amount:        row.Quantity.NullDecimal,
		Remaining:     row.QuantityRemaining.NullDecimal,
		Cost:          exchanges.FloorZero(exchanges.Sub(row.Amount.NullDecimal, row.AmountRemaining.NullDecimal)),
		Info:          raw,
	}
	switch t := row.OrderType.String(); t {
	case "LMT":
		o.Type = exchanges.OrderTypeLimit
	case "MKT":
		o.Type = exchanges.OrderTypeMarket
	default:
		o.Type = exchanges.OrderTypeFromString(t)
	}
	if o.Type == exchanges.OrderTypeMarket && o.Price.Valid && o.Price.Decimal.IsZero() {
		o.Price = decimal.NullDecimal{}
	}
	if row.State != "" {
		o.Status = exchanges.MapStatus(statuses, row.State.String())
	}
	if o.Status.Terminal() {
		o.LastTradeTimestamp = exchanges.Millis(row.UTCUpdate.NullDecimal)
	}
	if row.Fee.Valid && market != nil {
		currency := market.Base
		if o.Side == exchanges.SideSell {
			currency = market.Quote
		}
		o.Fee = &exchanges.Fee{Cost: row.Fee.NullDecimal, Currency: currency}
	}
	return exchanges.DeriveOrder(o)
}

// CreateOrder places an order. A market buy is sized in quote currency, so
// it needs a price to turn the base amount into a cost.
func (c *Client) CreateOrder(ctx context.Context, req exchanges.OrderRequest) (*exchanges.Order, error) {
	orderType, ok := orderTypes[req.Type]
	if !ok {
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid order type %q", req.Type)
	}
	op := OpBuy
	switch req.Side {
	case exchanges.SideBuy:
	case exchanges.SideSell:
		op = OpSell
	default:
		return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "invalid side %q", req.Side)
	}
	market, err := c.ResolveMarket(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	params := exchanges.Params{
		"orderType":     orderType,
		"symbol":        market.ID,
		"clientOrderId": clientID,
		"priceLimit":    "0",
		"quantity":      exchanges.AmountToPrecision(market, req.Amount),
		"amount":        "0",
	}
	switch {
	case req.Type == exchanges.OrderTypeLimit:
		if !req.Price.Valid {
			return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "limit order requires a price")
		}
		params["priceLimit"] = exchanges.PriceToPrecision(market, req.Price.Decimal)
	case req.Side == exchanges.SideBuy:
		if !req.Price.Valid {
			return nil, exchanges.Errorf(exchanges.KindInvalidOrder, exchangeID, "market buy requires a price to compute its cost")
		}
		params["quantity"] = "0"
		params["amount"] = exchanges.PriceToPrecision(market, req.Amount.Mul(req.Price.Decimal))
	}
	var result struct {
		OrderNo       exchanges.Text `json:"orderNo"`
		ClientOrderID exchanges.Text `json:"clientOrderId"`
	}
	env, err := c.call(ctx, op, params.Extend(req.Params), &result)
	if err != nil {
		return nil, err
	}
	if result.ClientOrderID != "" {
		clientID = result.ClientOrderID.String()
	}
	return &exchanges.Order{
		ID:            result.OrderNo.String(),
		ClientOrderID: clientID,
		Timestamp:     exchanges.Millis(env.Data.Timestamp.NullDecimal),
		Symbol:        market.Symbol,
		Type:          req.Type,
		Side:          req.Side,
		Price:         req.Price,
		Amount:        exchanges.Some(req.Amount),
		Status:        exchanges.OrderStatusOpen,
		Info:          env.Data.Result,
	}, nil
}

// CancelOrder cancels one order.
func (c *Client) CancelOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	env, err := c.call(ctx, exchanges.OpCancelOrder, exchanges.Params{"orderNo": id}, nil)
	if err != nil {
		return nil, err
	}
	return &exchanges.Order{ID: id, Symbol: symbol, Status: exchanges.OrderStatusCanceled, Info: env.Data.Result}, nil
}

// CancelOrders cancels a batch. Refused orders are reported through the
// returned error.
func (c *Client) CancelOrders(ctx context.Context, ids []string) ([]*exchanges.Order, error) {
	var result struct {
		Success []exchanges.Text `json:"success"`
		Failed  []struct {
			OrderNo   exchanges.Text `json:"orderNo"`
			ErrorCode exchanges.Text `json:"errorCode"`
		} `json:"failed"`
	}
	if _, err := c.call(ctx, OpBatchCancel, exchanges.Params{"orderNoList": strings.Join(ids, ",")}, &result); err != nil {
		return nil, err
	}
	canceled := make([]*exchanges.Order, 0, len(result.Success))
	for _, id := range result.Success {
		canceled = append(canceled, &exchanges.Order{ID: id.String(), Status: exchanges.OrderStatusCanceled})
	}
	var failed errors.MultiError
	for _, f := range result.Failed {
		kind, ok := errorTable.MatchExact(f.ErrorCode.String())
		if !ok {
			kind = exchanges.KindExchange
		}
		failed.Add(exchanges.Errorf(kind, exchangeID, "cancel %s: code %s", f.OrderNo, f.ErrorCode))
	}
	return canceled, failed.ToError()
}

func (c *Client) orderDetails(ctx context.Context, ids []string) ([]*exchanges.Order, error) {
	orders := make([]*exchanges.Order, 0, len(ids))
	for start := 0; start < len(ids); start += detailsBatch {
		end := min(start+detailsBatch, len(ids))
		var rows []json.RawMessage
		params := exchanges.Params{"orderNoList": strings.Join(ids[start:end], ",")}
		if _, err := c.call(ctx, exchanges.OpFetchOrder, params, &rows); err != nil {
			return nil, err
		}
		for _, raw := range rows {
			if o := c.parseOrder(raw, nil); o != nil {
				orders = append(orders, o)
			}
		}
	}
	return orders, nil
}

// FetchOrder fetches one order by number.
func (c *Client) FetchOrder(ctx context.Context, id, symbol string) (*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	orders, err := c.orderDetails(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, exchanges.Errorf(exchanges.KindOrderNotFound, exchangeID, "order %s not found", id)
}

// FetchOpenOrders lists open order numbers and resolves them in batches.
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	params := exchanges.Params{}
	if symbol != "" {
		m, err := c.Market(symbol)
		if err != nil {
			return nil, err
		}
		params["symbol"] = m.ID
	}
	if limit > 0 {
		params["num"] = limit
	}
	var ids []exchanges.Text
	if _, err := c.call(ctx, OpOpenOrderIDs, params, &ids); err != nil {
		return nil, err
	}
	list := make([]string, len(ids))
	for i, id := range ids {
		list[i] = id.String()
	}
	orders, err := c.orderDetails(ctx, list)
	if err != nil {
		return nil, err
	}
	return filterSince(orders, since), nil
}

// FetchClosedOrders fetches the order history of one market between since
// and now.
func (c *Client) FetchClosedOrders(ctx context.Context, symbol string, since time.Time, limit int) ([]*exchanges.Order, error) {
	if symbol == "" {
		return nil, exchanges.Errorf(exchanges.KindArgumentsRequired, exchangeID, "fetchClosedOrders requires a symbol")
	}
	market, err := c.ResolveMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	now := c.Clock().Milliseconds()
	start := now - int64(24*time.Hour/time.Millisecond)
	if !since.IsZero() {
		start = since.UnixMilli()
	}
	params := exchanges.Params{"symbol": market.ID, "utcStart": start, "utcEnd": now}
	if limit > 0 {
		params["num"] = limit
	}
	var rows []json.RawMessage
	if _, err := c.call(ctx, exchanges.OpFetchClosedOrders, params, &rows); err != nil {
		return nil, err
	}
	orders := make([]*exchanges.Order, 0, len(rows))
	for _, raw := range rows {
		if o := c.parseOrder(raw, market); o != nil && o.Status != exchanges.OrderStatusOpen {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func filterSince(orders []*exchanges.Order, since time.Time) []*exchanges.Order {
	if since.IsZero() {
		return orders
	}
	out := orders[:0]
	for _, o := range orders {
		if !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out
}

// sign md5-hashes the key-sorted "k=v&..." string of the parameters plus
// accesskey, secretkey and timestamp, then wraps the parameters in the
// {common, data} envelope.
func (c *Client) sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	creds := c.Credentials()
	nonce := c.Clock().Milliseconds()
	payload := exchanges.Params{
		"timestamp": nonce,
		"accesskey": creds.APIKey,
		"secretkey": creds.Secret,
	}.Extend(params).EncodeRaw()

	data := map[string]any(params)
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{
		"common": map[string]any{
			"accesskey": creds.APIKey,
			"sign":      exchanges.MD5Hex(payload),
			"timestamp": nonce,
		},
		"data": data,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encode body", exchangeID)
	}
	req := exchanges.NewRequest(ep.Method, c.URL(path))
	req.Headers.Set("Content-Type", "application/json")
	req.Body = string(body)
	return req, nil
}

// handleError raises on any code other than 1000 and on a response
// without data.result.
func (c *Client) handleError(status int, body []byte) error {
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		return nil
	}
	var res struct {
		Code exchanges.Text             `json:"code"`
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil
	}
	if code := res.Code.String(); code != "" && code != codeOK {
		return errorTable.Raise(exchangeID, string(body), code)
	}
	if _, ok := res.Data["result"]; !ok {
		return exchanges.NewError(exchanges.KindExchange, exchangeID, string(body)).WithBody(string(body))
	}
	return nil
}
