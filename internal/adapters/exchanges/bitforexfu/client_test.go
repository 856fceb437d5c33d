package bitforexfu

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
)

const contracts = `{"data":[
	{"id":10002,"symbol":"swap-usd-btc","baseSymbol":"BTC","quoteSymbol":"USD","unitQuantity":1,
	 "minOrderPrice":1e-8,"maxOrderPrice":1000000,"minOrderVolume":1,"maxOrderVolume":2000000,
	 "feeRateMaker":0.0004,"feeRateTaker":0.0006,"priceOrderPrecision":1},
	{"symbol":"garbage"}
],"success":true}`

func newClient(t *testing.T, creds exchanges.Credentials) (*Client, *exchangetest.Server) {
	t.Helper()
	srv := exchangetest.NewServer(t)
	srv.Handle("/swap/contract/listAll", contracts)
	c, err := New(exchangetest.Config(srv, creds))
	require.NoError(t, err)
	return c, srv
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newClient(t, exchanges.Credentials{})

	markets, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, markets, 1)

	m := markets["BTC/USD"]
	require.NotNil(t, m)
	assert.Equal(t, "swap-usd-btc", m.ID)
	assert.Equal(t, "btc", m.BaseID)
	assert.Equal(t, "usd", m.QuoteID)
	assert.Equal(t, exchanges.MarketTypeSwap, m.Type)
	assert.Equal(t, exchanges.PrecisionTickSize, m.Precision.Mode)
	assert.Equal(t, "0.1", m.Precision.Price.Decimal.String())
	assert.Equal(t, "1", m.Precision.Amount.Decimal.String())
	assert.Equal(t, "0.00000001", m.Limits.Price.Min.Decimal.String())
	assert.Equal(t, "2000000", m.Limits.Amount.Max.Decimal.String())
	assert.Equal(t, "0.0004", m.Maker.Decimal.String())
	assert.Equal(t, "0.0006", m.Taker.Decimal.String())
}

func TestFetchOHLCV(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/mkapi/kline", `{"data":[
		{"close":8000,"high":8100,"low":7900,"open":7950,"time":1560000000000,"vol":120},
		{"close":8010,"high":8110,"low":7910,"open":8000,"time":1560000060000,"vol":80}
	],"success":true}`)

	candles, err := c.FetchOHLCV(context.Background(), "BTC/USD", "1m", time.UnixMilli(1560000060000), 2)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "8010", candles[0].Close.Decimal.String())
	assert.Equal(t, "80", candles[0].Volume.Decimal.String())

	q, err := url.ParseQuery(srv.Last().Query)
	require.NoError(t, err)
	assert.Equal(t, "swap-usd-btc", q.Get("businessType"))
	assert.Equal(t, "1min", q.Get("kType"))
	assert.Equal(t, "2", q.Get("size"))
}

func TestFetchOrderBookAndTicker(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/mkapi/depth", `{"data":{"asks":[{"amount":5,"price":8001},{"amount":3,"price":8002}],"bids":[{"amount":2,"price":7999}]},"success":true,"time":1560000000000}`)
	srv.Handle("/mkapi/ticker", `{"data":{"buy":7999,"date":1560000000000,"high":8100,"last":8000,"low":7900,"sell":8001,"vol":1000},"success":true}`)
	ctx := context.Background()

	book, err := c.FetchOrderBook(ctx, "BTC/USD", 0)
	require.NoError(t, err)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, "8001", book.Asks[0].Price.String())
	assert.Equal(t, "5", book.Asks[0].Amount.String())
	assert.Equal(t, time.UnixMilli(1560000000000).UTC(), book.Timestamp)

	tk, err := c.FetchTicker(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "7999", tk.Bid.Decimal.String())
	assert.Equal(t, "8001", tk.Ask.Decimal.String())
	assert.Equal(t, "8000", tk.Close.Decimal.String())
}

func TestSignPrivate(t *testing.T) {
	c, _ := newClient(t, exchangetest.Keys)

	req, err := c.sign(exchanges.PrivatePost("contract/swap/account"), "contract/swap/account", exchanges.Params{"symbol": "swap-usd-btc"})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Headers.Get("Content-Type"))

	idx := strings.LastIndex(req.Body, "&signData=")
	require.Positive(t, idx)
	payload := req.Body[:idx]
	assert.True(t, strings.HasPrefix(payload, "accessKey=test-key&"))
	assert.Equal(t, exchanges.HMACSHA256("test-secret", "/contract/swap/account?"+payload), req.Body[idx+len("&signData="):])

	form, err := url.ParseQuery(payload)
	require.NoError(t, err)
	assert.Equal(t, exchanges.FormatInt(exchangetest.Now.UnixMilli()), form.Get("nonce"))
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"order not found", `{"success":false,"code":"4004","message":"order does not exist"}`, exchanges.ErrOrderNotFound},
		{"auth", `{"success":false,"code":"1013","message":"invalid key"}`, exchanges.ErrAuthentication},
		{"ddos", `{"success":false,"code":10204,"message":"too frequent"}`, exchanges.ErrDDoSProtection},
		{"unknown", `{"success":false,"code":"9","message":"x"}`, exchanges.ErrExchange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newClient(t, exchanges.Credentials{})
			srv.Handle("/mkapi/ticker", tt.body)
			_, err := c.FetchTicker(context.Background(), "BTC/USD")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
