package tradeogre

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
)

const markets = `[
	{"BTC-LTC":{"initialprice":"0.01","price":"0.011","high":"0.012","low":"0.009","volume":"3.2","bid":"0.0109","ask":"0.0111"}},
	{"USDT-XMR":{"initialprice":"150","price":"160","high":"165","low":"148","volume":"1200","bid":"159","ask":"161"}},
	{"BROKEN":{}}
]`

func newClient(t *testing.T, creds exchanges.Credentials) (*Client, *exchangetest.Server) {
	t.Helper()
	srv := exchangetest.NewServer(t)
	srv.Handle("/markets", markets)
	c, err := New(exchangetest.Config(srv, creds))
	require.NoError(t, err)
	return c, srv
}

func TestFetchMarkets_QuoteFirst(t *testing.T) {
	c, _ := newClient(t, exchanges.Credentials{})

	loaded, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	m := loaded["LTC/BTC"]
	require.NotNil(t, m)
	assert.Equal(t, "BTC-LTC", m.ID)
	assert.Equal(t, "LTC", m.BaseID)
	assert.Equal(t, "BTC", m.QuoteID)
	assert.Equal(t, "8", m.Precision.Price.Decimal.String())
	assert.False(t, m.Precision.Amount.Valid)
	assert.Contains(t, string(m.Info), "initialprice")

	assert.NotNil(t, loaded["XMR/USDT"])
}

func TestFetchTicker(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/ticker/BTC-LTC", `{"success":true,"initialprice":"0.01","price":"0.011","high":"0.012",
		"low":"0.009","volume":"3.2","bid":"0.0109","ask":"0.0111"}`)

	tk, err := c.FetchTicker(context.Background(), "LTC/BTC")
	require.NoError(t, err)
	assert.Equal(t, "LTC/BTC", tk.Symbol)
	assert.Equal(t, "0.01", tk.PreviousClose.Decimal.String())
	assert.Equal(t, "0.011", tk.Last.Decimal.String())
	assert.Equal(t, "0.011", tk.Close.Decimal.String())
	assert.Equal(t, "3.2", tk.BaseVolume.Decimal.String())
	assert.False(t, tk.Open.Valid)
	assert.True(t, tk.Timestamp.IsZero())
}

func TestFetchOrderBook(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		bids     int
		asks     int
		firstBid string
	}{
		{
			name:     "price keyed",
			body:     `{"success":"true","buy":{"0.0109":"1.5","0.0108":"2"},"sell":{"0.0111":"0.25"}}`,
			bids:     2,
			asks:     1,
			firstBid: "0.0109",
		},
		{
			name: "empty sides are arrays",
			body: `{"success":"true","buy":[],"sell":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newClient(t, exchanges.Credentials{})
			srv.Handle("/orders/BTC-LTC", tt.body)

			book, err := c.FetchOrderBook(context.Background(), "LTC/BTC", 0)
			require.NoError(t, err)
			assert.Len(t, book.Bids, tt.bids)
			assert.Len(t, book.Asks, tt.asks)
			if tt.firstBid != "" {
				assert.Equal(t, tt.firstBid, book.Bids[0].Price.String())
				assert.Equal(t, "1.5", book.Bids[0].Amount.String())
			}
		})
	}
}

func TestFetchTrades(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/history/BTC-LTC", `[
		{"date":1515128300,"type":"buy","price":"0.011","quantity":"2"},
		{"date":1515128233,"type":"sell","price":"0.0109","quantity":"0.5"}
	]`)

	trades, err := c.FetchTrades(context.Background(), "LTC/BTC", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, exchanges.SideSell, trades[0].Side, "sorted oldest first")
	assert.Equal(t, "0.022", trades[1].Cost.Decimal.String())

	recent, err := c.FetchTrades(context.Background(), "LTC/BTC", time.Unix(1515128250, 0), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestFetchBalance_BasicAuth(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/account/balances", `{"success":true,"balances":{"BTC":"0.5","LTC":"12"}}`)

	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	btc, ok := bal.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "0.5", btc.Total.Decimal.String())
	assert.False(t, btc.Free.Valid, "only totals are reported")

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-key:test-secret"))
	assert.Equal(t, want, srv.Last().Header.Get("Authorization"))
}

func TestFetchBalance_Unauthorized(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/account/balances", `{"success":false,"error":"Must be authorized"}`)

	_, err := c.FetchBalance(context.Background())
	assert.ErrorIs(t, err, exchanges.ErrAuthentication)
}

func TestOrders(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/order/sell", `{"success":true,"uuid":"235364ae-4ed9-4ad6-8c38-7d1a3e0b3c1a"}`)
	srv.Handle("/order/cancel", `{"success":true}`)
	srv.Handle("/account/orders", `[
		{"uuid":"a","date":1515129865,"type":"buy","price":"0.01","quantity":"1","market":"BTC-LTC"}
	]`)
	srv.Handle("/account/order/b", `{"success":true,"date":1515129000,"type":"sell","market":"BTC-LTC",
		"price":"0.012","quantity":"2","fulfilled":"2"}`)

	o, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "LTC/BTC",
		Type:   exchanges.OrderTypeLimit,
		Side:   exchanges.SideSell,
		Amount: decimal.RequireFromString("1.25"),
		Price:  exchanges.Some(decimal.RequireFromString("0.0123456789")),
	})
	require.NoError(t, err)
	assert.Equal(t, "235364ae-4ed9-4ad6-8c38-7d1a3e0b3c1a", o.ID)
	last := srv.Last()
	assert.Equal(t, http.MethodPost, last.Method)
	form, err := url.ParseQuery(last.Body)
	require.NoError(t, err)
	assert.Equal(t, "BTC-LTC", form.Get("market"))
	assert.Equal(t, "1.25", form.Get("quantity"))
	assert.Equal(t, "0.01234568", form.Get("price"))

	_, err = c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "LTC/BTC", Type: exchanges.OrderTypeMarket, Side: exchanges.SideBuy, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, exchanges.ErrInvalidOrder)

	canceled, err := c.CancelOrder(context.Background(), "a", "LTC/BTC")
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, "uuid=a", srv.Last().Body)

	open, err := c.FetchOpenOrders(context.Background(), "LTC/BTC", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, exchanges.OrderStatusOpen, open[0].Status)
	assert.Equal(t, "1", open[0].Remaining.Decimal.String())
	assert.Equal(t, "market=BTC-LTC", srv.Last().Body)

	done, err := c.FetchOrder(context.Background(), "b", "")
	require.NoError(t, err)
	assert.Equal(t, "b", done.ID)
	assert.Equal(t, "LTC/BTC", done.Symbol)
	assert.Equal(t, exchanges.OrderStatusClosed, done.Status)
	assert.Equal(t, "0.024", done.Cost.Decimal.String())
}

func TestCreateOrder_BareFailure(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/order/buy", `{"success":false}`)

	o, err := c.CreateOrder(context.Background(), exchanges.OrderRequest{
		Symbol: "LTC/BTC",
		Type:   exchanges.OrderTypeLimit,
		Side:   exchanges.SideBuy,
		Amount: decimal.NewFromInt(1),
		Price:  exchanges.Some(decimal.RequireFromString("0.01")),
	})
	assert.Nil(t, o)
	assert.ErrorIs(t, err, exchanges.ErrExchange)
	assert.Equal(t, 1, srv.Count("/order/buy"))
}
