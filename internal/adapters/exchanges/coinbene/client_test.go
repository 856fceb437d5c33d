package coinbene

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
)

const pairs = `{"code":200,"data":[
	{"symbol":"btc/usdt","pricePrecision":"2","amountPrecision":"4","minAmount":"0.0001","priceFluctuation":"0.1"},
	{"symbol":"eth/btc","pricePrecision":"6","amountPrecision":"3","minAmount":"0.001"},
	{"symbol":"broken"}
]}`

const p = "/api/exchange/v2/"

func newClient(t *testing.T, creds exchanges.Credentials) (*Client, *exchangetest.Server) {
	t.Helper()
	srv := exchangetest.NewServer(t)
	srv.Handle(p+"market/tradePair/list", pairs)
	c, err := New(exchangetest.Config(srv, creds))
	require.NoError(t, err)
	return c, srv
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return q
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newClient(t, exchanges.Credentials{})

	markets, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m := markets["BTC/USDT"]
	require.NotNil(t, m)
	assert.Equal(t, "BTCUSDT", m.ID)
	assert.Equal(t, "btc", m.BaseID)
	assert.Equal(t, "usdt", m.QuoteID)
	assert.Equal(t, "BTC/USDT", slashedID(m))
	assert.Equal(t, exchanges.PrecisionDecimalPlaces, m.Precision.Mode)
	assert.Equal(t, "2", m.Precision.Price.Decimal.String())
	assert.Equal(t, "4", m.Precision.Amount.Decimal.String())
	assert.Equal(t, "0.0001", m.Limits.Amount.Min.Decimal.String())
	assert.Equal(t, "0.001", m.Taker.Decimal.String())
}

func TestFetchTickers(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle(p+"market/ticker/list", `{"code":200,"data":[
		{"symbol":"BTC/USDT","latestPrice":"110","bestBid":"109","bestAsk":"111","high24h":"120","low24h":"90","volume24h":"1000000","chg24h":"10.00%"},
		{"symbol":"ETH/BTC","latestPrice":"0.03","chg24h":"n/a"},
		{"symbol":"XRP/USDT","latestPrice":"0.3","chg24h":"1%"}
	]}`)

	tickers, err := c.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tickers, 2)

	tk := tickers["BTC/USDT"]
	require.NotNil(t, tk)
	assert.Equal(t, "100", tk.Open.Decimal.String())
	assert.Equal(t, "10", tk.Change.Decimal.String(), "change is last minus open")
	assert.Equal(t, "10", tk.Percentage.Decimal.String())
	assert.Equal(t, "105", tk.Average.Decimal.String())
	assert.Equal(t, "1000000", tk.QuoteVolume.Decimal.String())
	assert.False(t, tk.BaseVolume.Valid)
	assert.True(t, tk.Timestamp.IsZero())

	eth := tickers["ETH/BTC"]
	require.NotNil(t, eth)
	assert.False(t, eth.Open.Valid)
	assert.False(t, eth.Percentage.Valid)
}

func TestFetchTicker(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle(p+"market/ticker/one", `{"code":200,"data":{"symbol":"BTC/USDT","latestPrice":"99","chg24h":"-1%"}}`)

	tk, err := c.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", tk.Symbol)
	assert.Equal(t, "100", tk.Open.Decimal.String())
	assert.Equal(t, "-1", tk.Change.Decimal.String())
	assert.Equal(t, "BTC/USDT", query(t, srv.Last().Query).Get("symbol"))
}

func TestFetchOrderBookTradesAndOHLCV(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle(p+"market/orderBook", `{"code":200,"data":{"asks":[["8001","1.5"]],"bids":[["7999","2"],["7998","1"]],"timestamp":"2019-05-21T10:00:00.000Z"}}`)
	srv.Handle(p+"market/trades", `{"code":200,"data":[
		["BTC/USDT","8000","0.5","sell","2019-05-21T10:00:00.000Z"],
		["BTC/USDT","8001","0.25","buy","2019-05-21T09:59:00.000Z"]
	]}`)
	srv.Handle(p+"market/instruments/candles", `{"code":200,"data":[
		["2019-05-21T10:00:00.000Z","1","2","0.5","1.5","100"],
		["2019-05-21T10:01:00.000Z","1.5","2.5","1","2","50"]
	]}`)
	ctx := context.Background()

	book, err := c.FetchOrderBook(ctx, "BTC/USDT", 0)
	require.NoError(t, err)
	assert.Len(t, book.Bids, 2)
	assert.Equal(t, "8001", book.Asks[0].Price.String())
	assert.Equal(t, time.Date(2019, 5, 21, 10, 0, 0, 0, time.UTC), book.Timestamp)
	assert.Equal(t, "10", query(t, srv.Last().Query).Get("depth"))

	trades, err := c.FetchTrades(ctx, "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, exchanges.SideBuy, trades[0].Side, "sorted by time")
	assert.Equal(t, exchanges.SideSell, trades[1].Side)
	assert.Equal(t, "4000", trades[1].Cost.Decimal.String())
	assert.Equal(t, "BTC/USDT", trades[1].Symbol)

	since := time.Date(2019, 5, 21, 10, 1, 0, 0, time.UTC)
	candles, err := c.FetchOHLCV(ctx, "BTC/USDT", "1h", since, 0)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "2", candles[0].Close.Decimal.String())
	q := query(t, srv.Last().Query)
	assert.Equal(t, "60", q.Get("period"))
	assert.Equal(t, "1558432860", q.Get("start"))
}

func TestSignedGet(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle(p+"account/list", `{"code":200,"data":[{"asset":"BTC","available":"1.5","frozenBalance":"0.5","totalBalance":"2"}]}`)

	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	btc, ok := bal.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "1.5", btc.Free.Decimal.String())
	assert.Equal(t, "2", btc.Total.Decimal.String())

	last := srv.Last()
	ts := "2024-03-01T12:00:00.000Z"
	assert.Equal(t, "test-key", last.Header.Get("ACCESS-KEY"))
	assert.Equal(t, ts, last.Header.Get("ACCESS-TIMESTAMP"))
	assert.Equal(t, exchanges.HMACSHA256("test-secret", ts+"GET"+p+"account/list"), last.Header.Get("ACCESS-SIGN"))
}

func TestCreateOrderSignsJSONBody(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle(p+"order/place", `{"code":200,"data":{"orderId":"1980983481458700288"}}`)

	o, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "BTC/USDT",
		Type:   exchanges.OrderTypeLimit,
		Side:   exchanges.SideBuy,
		Amount: decimal.RequireFromString("0.123456"),
		Price:  exchanges.ParseDecimal("8000.555"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1980983481458700288", o.ID)

	last := srv.Last()
	assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(last.Body), &body))
	assert.Equal(t, map[string]string{
		"symbol":    "BTC/USDT",
		"direction": "1",
		"quantity":  "0.1234",
		"orderType": "1",
		"price":     "8000.56",
	}, body)
	ts := last.Header.Get("ACCESS-TIMESTAMP")
	assert.Equal(t, exchanges.HMACSHA256("test-secret", ts+"POST"+p+"order/place"+last.Body), last.Header.Get("ACCESS-SIGN"))

	_, err = c.CreateOrder(context.Background(), exchanges.OrderRequest{Symbol: "BTC/USDT", Type: "stop", Side: exchanges.SideBuy})
	assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)
}

func TestFetchMarketOrder(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle(p+"order/info", `{"code":200,"data":{"orderId":"1","baseAsset":"BTC","quoteAsset":"USDT","orderType":"market",
		"orderDirection":"buy","orderStatus":"Filled","orderPrice":"0","quantity":"0","filledQuantity":"0.5",
		"filledAmount":"4000","avgPrice":"","orderTime":"2019-05-21T10:00:00.000Z","totalFee":"4"}}`)

	o, err := c.FetchOrder(context.Background(), "1", "")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", o.Symbol)
	assert.Equal(t, exchanges.OrderStatusClosed, o.Status)
	assert.Equal(t, exchanges.OrderTypeMarket, o.Type)
	assert.Equal(t, "0.5", o.Amount.Decimal.String(), "market quantity falls back to filled")
	assert.True(t, o.Remaining.Decimal.IsZero())
	assert.Equal(t, "8000", o.Average.Decimal.String())
	assert.Equal(t, "8000", o.Price.Decimal.String())
	require.NotNil(t, o.Fee)
	assert.Equal(t, "USDT", o.Fee.Currency)
	assert.Equal(t, "1", query(t, srv.Last().Query).Get("orderId"))
}

func TestOrderLists(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle(p+"order/openOrders", `{"code":200,"data":[
		{"orderId":"7","symbol":"BTC/USDT","orderType":"limit","orderDirection":"sell","orderStatus":"Open","orderPrice":"9000","quantity":"1","filledQuantity":"0.25"}
	]}`)
	srv.Handle(p+"order/closedOrders", `{"code":200,"data":[
		{"orderId":"8","symbol":"BTC/USDT","orderType":"limit","orderDirection":"buy","orderStatus":"Partially cancelled","orderPrice":"7000","quantity":"1","filledQuantity":"0.5"}
	]}`)
	ctx := context.Background()

	open, err := c.FetchOpenOrders(ctx, "BTC/USDT", time.Time{}, 5)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "0.75", open[0].Remaining.Decimal.String())
	assert.Equal(t, "2250", open[0].Cost.Decimal.String())
	q := query(t, srv.Last().Query)
	assert.Equal(t, "BTC/USDT", q.Get("symbol"))
	assert.Equal(t, "5", q.Get("limit"))

	closed, err := c.FetchClosedOrders(ctx, "", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, exchanges.OrderStatusCanceled, closed[0].Status)
	assert.Empty(t, srv.Last().Query)
}

func TestCancelOrders(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle(p+"order/cancel", `{"code":200,"data":"1"}`)
	srv.Handle(p+"order/batchCancel", `{"code":200,"data":[
		{"orderId":"a","code":"200","message":""},
		{"orderId":"b","code":"51801","message":"The order does not exist"}
	]}`)
	ctx := context.Background()

	o, err := c.CancelOrder(ctx, "a", "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, o.Status)

	canceled, err := c.CancelOrders(ctx, []string{"a", "b"})
	require.Len(t, canceled, 1)
	assert.Equal(t, "a", canceled[0].ID)
	assert.ErrorIs(t, err, exchanges.ErrOrderNotFound)
	assert.JSONEq(t, `{"orderIds":["a","b"]}`, srv.Last().Body)
}

func TestFetchOrderTrades(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle(p+"order/trade/fills", `{"code":200,"data":[
		{"price":"8000","quantity":"0.1","direction":"buy","tradeTime":"2019-05-21T10:00:00.000Z","fee":"0.8"}
	]}`)

	trades, err := c.FetchOrderTrades(context.Background(), "42", "BTC/USDT")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "42", trades[0].Order)
	assert.Equal(t, "0.1", trades[0].Amount.Decimal.String())
	require.NotNil(t, trades[0].Fee)
	assert.Equal(t, "USDT", trades[0].Fee.Currency)
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"nonce", 200, `{"code":10005,"message":"Invalid ACCESS_TIMESTAMP"}`, exchanges.ErrInvalidNonce},
		{"funds", 200, `{"code":"51809","message":"Insufficient balance"}`, exchanges.ErrInsufficientFunds},
		{"unknown code", 200, `{"code":99999,"message":"?"}`, exchanges.ErrExchange},
		{"http error with ok code", 500, `{"code":200}`, exchanges.ErrExchangeNotAvailable},
		{"unavailable without code", 503, `{}`, exchanges.ErrExchangeNotAvailable},
		{"bad request without code", 400, `{"message":"bad"}`, exchanges.ErrExchange},
		{"rate limited", 429, `{"code":429}`, exchanges.ErrDDoSProtection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newClient(t, exchanges.Credentials{})
			srv.HandleStatus(p+"market/ticker/one", tt.status, tt.body)
			_, err := c.FetchTicker(context.Background(), "BTC/USDT")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
