package bitzfu

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
)

const coins = `{"status":200,"msg":"","data":[
	{"contractId":"101","symbol":"BTC","settleAnchor":"USDT","quoteAnchor":"USDT","contractAnchor":"BTC",
	 "contractValue":"0.00100000","pair":"BTC_USDT","makerFee":"-0.00030000","takerFee":"0.00070000",
	 "priceDec":"1","anchorDec":"2","status":"1","isreverse":"1","minAmount":"1","maxAmount":"5000"},
	{"contractId":"102","symbol":"ETH","settleAnchor":"USDT","quoteAnchor":"USDT","pair":"ETH_USDT",
	 "makerFee":"0.0003","takerFee":"0.0007","priceDec":"2","anchorDec":"2","status":"0","isreverse":"-1",
	 "minAmount":"1","maxAmount":"1000"}
],"time":1562059174,"microtime":"0.05824800 1562059174","source":"api"}`

func newClient(t *testing.T, creds exchanges.Credentials) (*Client, *exchangetest.Server) {
	t.Helper()
	srv := exchangetest.NewServer(t)
	srv.Handle("/Market/getContractCoin", coins)
	c, err := New(exchangetest.Config(srv, creds))
	require.NoError(t, err)
	return c, srv
}

func form(t *testing.T, body string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(body)
	require.NoError(t, err)
	return v
}

func TestFetchMarkets(t *testing.T) {
	c, _ := newClient(t, exchanges.Credentials{})

	markets, err := c.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	btc := markets["BTC/USDT"]
	require.NotNil(t, btc)
	assert.Equal(t, "101", btc.ID)
	assert.Equal(t, exchanges.MarketTypeSwap, btc.Type)
	assert.True(t, btc.Active)
	assert.Equal(t, "USDT", btc.Settle)
	assert.Equal(t, exchanges.PrecisionDecimalPlaces, btc.Precision.Mode)
	assert.Equal(t, "1", btc.Precision.Price.Decimal.String())
	assert.Equal(t, "2", btc.Precision.Amount.Decimal.String())
	assert.Equal(t, "0.1", btc.Limits.Price.Min.Decimal.String())
	assert.Equal(t, "5000", btc.Limits.Amount.Max.Decimal.String())
	assert.Equal(t, "-0.0003", btc.Maker.Decimal.String())

	eth := markets["ETH/USDT"]
	require.NotNil(t, eth)
	assert.Equal(t, exchanges.MarketTypeFuture, eth.Type)
	assert.False(t, eth.Active)
}

func TestFetchTickers(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/Market/getContractTickers", `{"status":200,"msg":"","data":[
		{"contractId":"101","pair":"BTC_USDT","min":"8550.0","max":"8867.5","latest":"8645.0","change24h":"-0.0248",
		 "baseAmount":"286.231 BTC","quoteVolumn":"2502462.46 USDT"},
		{"contractId":"999","pair":"XRP_USDT","min":"0.2","max":"0.3","latest":"0.25","change24h":"0.01",
		 "baseAmount":"10 XRP","quoteVolumn":"2.5 USDT"}
	],"time":1573813113,"microtime":"0.23065700 1573813113","source":"api"}`)

	tickers, err := c.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tickers, 2)

	tk := tickers["BTC/USDT"]
	require.NotNil(t, tk)
	assert.Equal(t, time.UnixMilli(1573813113230).UTC(), tk.Timestamp)
	assert.Equal(t, "8867.5", tk.High.Decimal.String())
	assert.Equal(t, "8550", tk.Low.Decimal.String())
	assert.Equal(t, "8864.8", tk.Open.Decimal.String())
	assert.Equal(t, "-219.8", tk.Change.Decimal.String())
	assert.Equal(t, "-2.48", tk.Percentage.Decimal.String())
	assert.Equal(t, "8754.9", tk.Average.Decimal.String())
	assert.Equal(t, "286.231", tk.BaseVolume.Decimal.String())
	assert.Equal(t, "2502462.46", tk.QuoteVolume.Decimal.String())
	assert.True(t, tk.VWAP.Valid)

	unknown := tickers["XRP/USDT"]
	require.NotNil(t, unknown, "unlisted contracts fall back to the pair")
	assert.False(t, unknown.Open.Valid)
	assert.Equal(t, "1", unknown.Percentage.Decimal.String())
}

func TestFetchTickerNarrowsToContract(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/Market/getContractTickers", `{"status":200,"data":[
		{"contractId":"101","pair":"BTC_USDT","latest":"8645.0","change24h":"0"}
	],"microtime":"0.1 1573813113"}`)

	tk, err := c.FetchTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "8645", tk.Last.Decimal.String())
	assert.Equal(t, "contractId=101", srv.Last().Query)

	_, err = c.FetchTicker(context.Background(), "ETH/USDT")
	assert.ErrorIs(t, err, exchanges.ErrExchange)
}

func TestFetchOrderBookTradesAndOHLCV(t *testing.T) {
	c, srv := newClient(t, exchanges.Credentials{})
	srv.Handle("/Market/getContractOrderBook", `{"status":200,"data":{
		"bids":[{"price":"8201.32","amount":"2820"}],
		"asks":[{"price":"8202.14","amount":"4863"},{"price":"8203","amount":"1"}]
	},"time":1532671288,"microtime":"0.23065700 1532671288"}`)
	srv.Handle("/Market/getContractTradesHistory", `{"status":200,"data":{"lists":[
		{"time":1558432920,"price":"7926.41","num":7137,"type":"buy"}
	]},"microtime":"0.1 1558432921"}`)
	srv.Handle("/Market/getContractKline", `{"status":200,"data":{"lists":[
		["1558433100000","7921.69000000","7921.96000000","7882.31000000","7882.31000000","1793940.00000000","14183930623.27000000"]
	]},"microtime":"0.1 1558433101"}`)
	ctx := context.Background()

	book, err := c.FetchOrderBook(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, "8201.32", book.Bids[0].Price.String())
	assert.Equal(t, "4863", book.Asks[0].Amount.String())
	assert.Equal(t, time.UnixMilli(1532671288230).UTC(), book.Timestamp)
	q, err := url.ParseQuery(srv.Last().Query)
	require.NoError(t, err)
	assert.Equal(t, "101", q.Get("contractId"))
	assert.Equal(t, "10", q.Get("depth"))

	trades, err := c.FetchTrades(ctx, "BTC/USDT", time.Time{}, 5)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, exchanges.SideBuy, trades[0].Side)
	assert.Equal(t, "7137", trades[0].Amount.Decimal.String())
	assert.Equal(t, "7137", trades[0].Cost.Decimal.String(), "swap cost is counted in contracts")
	assert.Equal(t, time.Unix(1558432920, 0).UTC(), trades[0].Timestamp)
	q, err = url.ParseQuery(srv.Last().Query)
	require.NoError(t, err)
	assert.Equal(t, "10", q.Get("pageSize"), "page size is clamped to at least 10")

	candles, err := c.FetchOHLCV(ctx, "BTC/USDT", "5m", time.Time{}, 500)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.UnixMilli(1558433100000).UTC(), candles[0].Timestamp)
	assert.Equal(t, "7882.31", candles[0].Close.Decimal.String())
	q, err = url.ParseQuery(srv.Last().Query)
	require.NoError(t, err)
	assert.Equal(t, "5m", q.Get("type"))
	assert.Equal(t, "300", q.Get("size"))

	_, err = c.FetchOHLCV(ctx, "BTC/USDT", "3m", time.Time{}, 0)
	assert.ErrorIs(t, err, exchanges.ErrBadRequest)
}

func TestFetchBalance(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/Contract/getContractAccountInfo", `{"status":200,"msg":"","data":{
		"time":1557928650,"estimate_BTC":"8.00667445",
		"balances":[{"coin":"btc","balance":"8.00000000","positionMargin":"0.00635670","total":"8.00667445"}]
	},"time":1533035297,"microtime":"0.41892000 1533035297"}`)

	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	btc, ok := bal.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "8", btc.Total.Decimal.String())
	assert.False(t, btc.Free.Valid)
	assert.False(t, btc.Used.Valid)

	last := srv.Last()
	assert.Equal(t, "POST", last.Method)
	assert.Equal(t, "test-key", form(t, last.Body).Get("apiKey"))
}

func TestFetchOrderClosedScenario(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/Contract/getContractOrderResult", `{"status":200,"msg":"","data":[
		{"orderId":"734709","contractId":"101","pair":"BTC_USDT","amount":"500","price":"7500.00","type":"limit",
		 "leverage":"10","direction":"1","orderStatus":"1","available":"0","time":1557994750}
	],"microtime":"0.41892000 1533035297"}`)

	o, err := c.FetchOrder(context.Background(), "734709", "")
	require.NoError(t, err)
	assert.Equal(t, "734709", o.ID)
	assert.Equal(t, "BTC/USDT", o.Symbol)
	assert.Equal(t, exchanges.OrderStatusClosed, o.Status)
	assert.Equal(t, exchanges.SideBuy, o.Side)
	assert.Equal(t, exchanges.OrderTypeLimit, o.Type)
	assert.True(t, o.Filled.Decimal.Equal(decimal.NewFromInt(500)))
	assert.True(t, o.Remaining.Decimal.Equal(decimal.Zero))
	assert.Equal(t, "500", o.Cost.Decimal.String())
	assert.Equal(t, time.Unix(1557994750, 0).UTC(), o.Timestamp)
	assert.Equal(t, "734709", form(t, srv.Last().Body).Get("entrustSheetIds"))
}

func TestFetchOrderMissing(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/Contract/getContractOrderResult", `{"status":200,"data":[]}`)

	_, err := c.FetchOrder(context.Background(), "1", "")
	assert.ErrorIs(t, err, exchanges.ErrOrderNotFound)
}

func TestFetchOrderFuturesAverage(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	rows := `{"status":200,"data":[
		{"orderId":"9","contractId":"102","pair":"ETH_USDT","amount":"500","price":"200","type":"limit",
		 "direction":"-1","orderStatus":"0","available":"200","time":1557994750},
		{"orderId":"10","contractId":"102","pair":"ETH_USDT","amount":"5","price":"200","type":"limit",
		 "direction":"-1","orderStatus":"1","available":"-1","time":1557994750}
	]}`
	srv.Handle("/Contract/getContractOrderResult", rows)
	srv.Handle("/Contract/getContractMyHistoryTrade", rows)

	o, err := c.FetchOrder(context.Background(), "9", "")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", o.Symbol)
	assert.True(t, o.Filled.Decimal.Equal(decimal.NewFromInt(300)))
	assert.True(t, o.Remaining.Decimal.Equal(decimal.NewFromInt(200)))
	assert.True(t, o.Cost.Decimal.Equal(decimal.NewFromInt(60000)))
	require.True(t, o.Average.Valid)
	assert.True(t, o.Average.Decimal.Equal(decimal.NewFromInt(200)))

	orders, err := c.FetchOrders(context.Background(), "ETH/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.True(t, orders[1].Remaining.Decimal.IsZero())
	assert.True(t, orders[1].Filled.Decimal.Equal(decimal.NewFromInt(5)))
}

func TestCreateAndCancelOrder(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/Contract/addContractTrade", `{"status":200,"msg":"","data":{"orderId":710370},"microtime":"0.41892000 1533035297"}`)
	srv.Handle("/Contract/cancelContractTrade", `{"status":200,"msg":"","data":{}}`)
	ctx := context.Background()

	o, err := c.CreateOrder(ctx, exchanges.OrderRequest{
		Symbol: "BTC/USDT",
		Type:   exchanges.OrderTypeLimit,
		Side:   exchanges.SideSell,
		Amount: decimal.RequireFromString("12.345"),
		Price:  exchanges.ParseDecimal("7500"),
	})
	require.NoError(t, err)
	assert.Equal(t, "710370", o.ID)
	assert.Equal(t, exchanges.OrderStatusOpen, o.Status)
	assert.Equal(t, time.UnixMilli(1533035297418).UTC(), o.Timestamp)

	f := form(t, srv.Last().Body)
	assert.Equal(t, "101", f.Get("contractId"))
	assert.Equal(t, "12.34", f.Get("amount"))
	assert.Equal(t, "-1", f.Get("direction"))
	assert.Equal(t, "1", f.Get("leverage"))
	assert.Equal(t, "1", f.Get("isCross"))
	assert.Equal(t, "limit", f.Get("type"))
	assert.Equal(t, "7500", f.Get("price"))
	assert.NotEmpty(t, f.Get("sign"))

	canceled, err := c.CancelOrder(ctx, "710370", "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, exchanges.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, "710370", form(t, srv.Last().Body).Get("entrustSheetId"))

	_, err = c.CancelOrder(ctx, "abc", "BTC/USDT")
	assert.ErrorIs(t, err, exchanges.ErrBadRequest)
}

func TestOrderLists(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	history := `{"status":200,"data":[
		{"orderId":"1","contractId":"101","amount":"500","price":"7500","type":"limit","direction":"1","orderStatus":"0","available":"500","time":1557994750},
		{"orderId":"2","contractId":"101","amount":"100","price":"7600","type":"limit","direction":"-1","orderStatus":"-1","available":"40","time":1557994760}
	]}`
	srv.Handle("/Contract/getContractMyHistoryTrade", history)
	srv.Handle("/Contract/getContractOrder", history)
	ctx := context.Background()

	orders, err := c.FetchOrders(ctx, "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	f := form(t, srv.Last().Body)
	assert.Equal(t, "1", f.Get("page"))
	assert.Equal(t, "50", f.Get("pageSize"))
	assert.Equal(t, "60", orders[1].Filled.Decimal.String())
	assert.Equal(t, exchanges.SideSell, orders[1].Side)

	closed, err := c.FetchClosedOrders(ctx, "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "2", closed[0].ID)

	open, err := c.FetchOpenOrders(ctx, "BTC/USDT", time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2)
	assert.Empty(t, form(t, srv.Last().Body).Get("page"))

	_, err = c.FetchOpenOrders(ctx, "", time.Time{}, 0)
	assert.ErrorIs(t, err, exchanges.ErrArgumentsRequired)
	_, err = c.FetchMyTrades(ctx, "", time.Time{}, 0)
	assert.ErrorIs(t, err, exchanges.ErrArgumentsRequired)
}

func TestFetchMyTrades(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/Contract/getContractMyTrades", `{"status":200,"data":[
		{"tradeId":"6534702673362395142","contractId":"101","pair":"BTC_USDT","price":"8000.00","num":"500",
		 "type":"buy","tradeFee":"0.00001250","leverage":"10","isCross":"-1","time":1557994526}
	]}`)

	trades, err := c.FetchMyTrades(context.Background(), "BTC/USDT", time.Time{}, 20)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, "6534702673362395142", tr.ID)
	require.NotNil(t, tr.Fee)
	assert.Equal(t, "0.0000125", tr.Fee.Cost.Decimal.String())
	assert.Equal(t, "BTC", tr.Fee.Currency)
	assert.Equal(t, "20", form(t, srv.Last().Body).Get("pageSize"))
}

func TestErrors(t *testing.T) {
	c, srv := newClient(t, exchangetest.Keys)
	srv.Handle("/Contract/getContractAccountInfo", `{"status":-200031,"msg":"","data":null}`)
	_, err := c.FetchBalance(context.Background())
	assert.ErrorIs(t, err, exchanges.ErrInsufficientFunds)

	anon, _ := newClient(t, exchanges.Credentials{})
	_, err = anon.FetchBalance(context.Background())
	assert.ErrorIs(t, err, exchanges.ErrAuthentication)
}
