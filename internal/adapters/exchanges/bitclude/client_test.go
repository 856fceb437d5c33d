package bitclude

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
)

const tickerDoc = `{
	"btc_pln": {"last":"25000.00","max24H":"25500","min24H":"24000","bid":"24990","ask":"25010"},
	"eth_btc": {"last":"0.031","max24H":"0.032","min24H":"0.03","bid":"0.0309","ask":"0.0311"},
	"broken": {"last":"1"}
}`

func newClient(t *testing.T) (*Client, *exchangetest.Server) {
	t.Helper()
	srv := exchangetest.NewServer(t)
	srv.Handle("/stats/ticker.json", tickerDoc)
	c, err := New(exchangetest.Config(srv, exchanges.Credentials{}))
	require.NoError(t, err)
	return c, srv
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newClient(t)

	markets, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m := markets["BTC/PLN"]
	require.NotNil(t, m)
	assert.Equal(t, "btc_pln", m.ID)
	assert.Equal(t, "btc", m.BaseID)
	assert.Equal(t, "pln", m.QuoteID)
	assert.Equal(t, exchanges.PrecisionDecimalPlaces, m.Precision.Mode)
	assert.False(t, m.Precision.Price.Valid)
	assert.False(t, m.Limits.Amount.Min.Valid)
	assert.JSONEq(t, `{"btc_pln":{"last":"25000.00","max24H":"25500","min24H":"24000","bid":"24990","ask":"25010"}}`, string(m.Info))
}

func TestFetchTickers(t *testing.T) {
	c, srv := newClient(t)

	tickers, err := c.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tickers, 2)

	tk := tickers["BTC/PLN"]
	require.NotNil(t, tk)
	assert.Equal(t, exchangetest.Now, tk.Timestamp)
	assert.Equal(t, "25500", tk.High.Decimal.String())
	assert.Equal(t, "24000", tk.Low.Decimal.String())
	assert.Equal(t, "25000", tk.Close.Decimal.String())
	assert.False(t, tk.Open.Valid)
	assert.False(t, tk.Change.Valid)

	one, err := c.FetchTicker(context.Background(), "ETH/BTC")
	require.NoError(t, err)
	assert.Equal(t, "0.031", one.Last.Decimal.String())
	assert.Equal(t, 3, srv.Count("/stats/ticker.json"), "markets once, then one document per call")

	_, err = c.FetchTicker(context.Background(), "DOGE/PLN")
	assert.ErrorIs(t, err, exchanges.ErrBadSymbol)
}

func TestHandleErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"exact", `{"error":"Not enough balances","success":false}`, exchanges.ErrInsufficientFunds},
		{"exact order", `{"error":"Order not found","success":false}`, exchanges.ErrOrderNotFound},
		{"broad", `{"error":"Invalid parameter start_time","success":false}`, exchanges.ErrBadRequest},
		{"broad unexpected", `{"error":"An unexpected error occurred, please try again later (58BC21C795).","success":false}`, exchanges.ErrExchange},
		{"unknown", `{"error":"something else","success":false}`, exchanges.ErrExchange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := exchangetest.NewServer(t)
			srv.Handle("/stats/ticker.json", tt.body)
			c, err := New(exchangetest.Config(srv, exchanges.Credentials{}))
			require.NoError(t, err)

			_, err = c.LoadMarkets(context.Background(), false)
			assert.ErrorIs(t, err, tt.want)
			var e *exchanges.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.body, e.Body)
		})
	}
}
