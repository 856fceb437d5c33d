package felixo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
)

const tickers = `[
	{"pair":"BTCTRY","lastPrice":"43140.00000000","openPrice":"43000.00000000","highPrice":"43500.00000000","lowPrice":"42000.00000000",
	 "volume":"12.50000000","bid":"43100.00000000","ask":"43176.00000000","timestamp":1587377957316},
	{"pair":"USDCTRY","lastPrice":"6.9","openPrice":"0","highPrice":"7","lowPrice":"6.8","volume":"0","timestamp":1587377957316},
	{"pair":"ETHUSDT","lastPrice":"180","openPrice":"200","highPrice":"210","lowPrice":"170","volume":"3"},
	{"pair":"XYZ"}
]`

func newClient(t *testing.T) (*Client, *exchangetest.Server) {
	t.Helper()
	srv := exchangetest.NewServer(t)
	srv.Handle("/ticker", tickers)
	c, err := New(exchangetest.Config(srv, exchanges.Credentials{}))
	require.NoError(t, err)
	return c, srv
}

func TestSplitPairs(t *testing.T) {
	tests := []struct {
		id, base, quote string
	}{
		{"BTCTRY", "BTC", "TRY"},
		{"USDCTRY", "USDC", "TRY"},
		{"ETHUSDT", "ETH", "USDT"},
		{"USDTUSDC", "USDT", "USDC"},
		{"ethbtc", "eth", "btc"},
	}
	for _, tt := range tests {
		base, quote, err := symbolRule.SplitSymbolID(tt.id)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.base, base, tt.id)
		assert.Equal(t, tt.quote, quote, tt.id)
	}

	_, _, err := symbolRule.SplitSymbolID("XYZ")
	assert.ErrorIs(t, err, exchanges.ErrBadSymbol)
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newClient(t)

	markets, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, markets, 3, "unparseable pairs are skipped")

	m := markets["USDC/TRY"]
	require.NotNil(t, m)
	assert.Equal(t, "USDCTRY", m.ID)
	assert.Equal(t, "0.002", m.Taker.Decimal.String())
	assert.False(t, m.Precision.Amount.Valid)
}

func TestFetchTickers(t *testing.T) {
	c, srv := newClient(t)

	all, err := c.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, srv.Count("/ticker"), "markets and tickers share one endpoint")

	btc := all["BTC/TRY"]
	require.NotNil(t, btc)
	assert.Equal(t, "43500", btc.High.Decimal.String(), "high comes from highPrice")
	assert.Equal(t, "42000", btc.Low.Decimal.String())
	assert.Equal(t, "140", btc.Change.Decimal.String())
	assert.Equal(t, "43070", btc.Average.Decimal.String())
	assert.Equal(t, "43140", btc.Close.Decimal.String())
	assert.Equal(t, "12.5", btc.BaseVolume.Decimal.String())
	assert.False(t, btc.QuoteVolume.Valid)
	assert.False(t, btc.VWAP.Valid)
	assert.Equal(t, int64(1587377957316), btc.Timestamp.UnixMilli())

	usdc := all["USDC/TRY"]
	require.NotNil(t, usdc)
	assert.False(t, usdc.Percentage.Valid, "zero open leaves percentage undefined")

	eth, err := c.FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "-10", eth.Percentage.Decimal.String())
	assert.True(t, eth.Timestamp.IsZero())

	_, err = c.FetchTicker(context.Background(), "DOGE/TRY")
	assert.ErrorIs(t, err, exchanges.ErrBadSymbol)
}

func TestFetchOrderBook(t *testing.T) {
	c, srv := newClient(t)
	srv.Handle("/orderbook", `{"bids":[["43100","0.5"]],"asks":[["43176","1"],["43200","2"]],"timestamp":1587377957316}`)

	book, err := c.FetchOrderBook(context.Background(), "BTC/TRY", 20)
	require.NoError(t, err)
	assert.Len(t, book.Asks, 2)
	assert.Equal(t, "43100", book.Bids[0].Price.String())
	assert.Equal(t, "limit=20&pair=BTCTRY", srv.Last().Query)
}

func TestCalibrateClock(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare number", `1709294395000`},
		{"object", `{"serverTime":1709294395000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newClient(t)
			srv.Handle("/time", tt.body)
			skew, err := exchanges.CalibrateClock(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, 5*time.Second, skew)
			assert.Equal(t, 5*time.Second, c.TimeDifference())
		})
	}
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"permission", `{"error":"Permission denied."}`, exchanges.ErrPermissionDenied},
		{"unknown", `{"error":"Something else"}`, exchanges.ErrExchange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newClient(t)
			srv.Handle("/orderbook", tt.body)
			_, err := c.FetchOrderBook(context.Background(), "BTC/TRY", 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
