package exchanges

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.NullDecimal {
	return ParseDecimal(s)
}

func assertDec(t *testing.T, want string, got decimal.NullDecimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, got.Valid, msgAndArgs...)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), append([]interface{}{"want %s got %s", want, got.Decimal.String()}, msgAndArgs...)...)
}

func TestNumber_Lenient(t *testing.T) {
	var row struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
		E Number `json:"e"`
		F Number `json:"f"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.50","b":2,"c":null,"d":"","e":"abc","f":{"x":1}}`), &row))

	assertDec(t, "1.5", row.A.NullDecimal)
	assertDec(t, "2", row.B.NullDecimal)
	assert.False(t, row.C.Valid)
	assert.False(t, row.D.Valid)
	assert.False(t, row.E.Valid)
	assert.False(t, row.F.Valid)
}

func TestText_KeepsNumberLiterals(t *testing.T) {
	var row struct {
		ID   Text `json:"id"`
		Name Text `json:"name"`
		Nil  Text `json:"nil"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":12345678901234567890,"name":"x","nil":null}`), &row))
	assert.Equal(t, "12345678901234567890", row.ID.String())
	assert.Equal(t, "x", row.Name.String())
	assert.Equal(t, "", row.Nil.String())
}

func TestParsePercent(t *testing.T) {
	assertDec(t, "-0.0248", ParsePercent("-2.48%"))
	assertDec(t, "0.05", ParsePercent("5"))
	assert.False(t, ParsePercent("n/a").Valid)
	assertDec(t, "286.231", ParseLeadingDecimal("286.231 BTC"))
}

func TestDeriveTicker(t *testing.T) {
	tk := DeriveTicker(&Ticker{
		Open:        d("100"),
		Last:        d("110"),
		BaseVolume:  d("4"),
		QuoteVolume: d("420"),
	})

	assertDec(t, "10", tk.Change)
	assertDec(t, "10", tk.Percentage)
	assertDec(t, "105", tk.Average)
	assertDec(t, "105", tk.VWAP)
	assertDec(t, "110", tk.Close)
}

func TestDeriveTicker_UndefinedOperands(t *testing.T) {
	tk := DeriveTicker(&Ticker{Last: d("110"), Open: d("0"), BaseVolume: d("0"), QuoteVolume: d("5")})
	assertDec(t, "110", tk.Change)
	assert.False(t, tk.Percentage.Valid, "percentage needs open > 0")
	assert.False(t, tk.VWAP.Valid, "vwap needs baseVolume > 0")

	empty := DeriveTicker(&Ticker{})
	assert.False(t, empty.Change.Valid)
	assert.False(t, empty.Average.Valid)
}

func TestDeriveTicker_KeepsReported(t *testing.T) {
	tk := DeriveTicker(&Ticker{Open: d("100"), Last: d("110"), Percentage: d("3")})
	assertDec(t, "3", tk.Percentage)
}

func TestDeriveOrder(t *testing.T) {
	tests := []struct {
		name      string
		in        Order
		filled    string
		remaining string
	}{
		{"amount and filled", Order{Amount: d("10"), Filled: d("4")}, "4", "6"},
		{"overfilled clamps", Order{Amount: d("10"), Filled: d("12")}, "12", "0"},
		{"remaining only", Order{Amount: d("10"), Remaining: d("3")}, "7", "3"},
		{"remaining above amount", Order{Amount: d("10"), Remaining: d("15")}, "0", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.in
			DeriveOrder(&o)
			assertDec(t, tt.filled, o.Filled)
			assertDec(t, tt.remaining, o.Remaining)
			assert.False(t, o.Remaining.Decimal.IsNegative())
		})
	}
}

func TestDeriveOrder_CostAndAverage(t *testing.T) {
	o := DeriveOrder(&Order{Type: OrderTypeLimit, Price: d("2"), Amount: d("10"), Filled: d("5")})
	assertDec(t, "10", o.Cost)
	assertDec(t, "2", o.Average)

	m := DeriveOrder(&Order{Type: OrderTypeMarket, Price: d("0"), Amount: d("4"), Filled: d("4"), Cost: d("40")})
	assertDec(t, "10", m.Price)
	assertDec(t, "10", m.Average)
}

func TestCalculateFee(t *testing.T) {
	m := &Market{Base: "BTC", Quote: "USDT", Maker: d("0.001"), Taker: d("0.002")}

	buy := CalculateFee(m, SideBuy, Taker, d("2"), d("100"))
	assertDec(t, "0.004", buy.Cost)
	assert.Equal(t, "BTC", buy.Currency)
	assertDec(t, "0.002", buy.Rate)

	sell := CalculateFee(m, SideSell, Maker, d("2"), d("100"))
	assertDec(t, "0.2", sell.Cost)
	assert.Equal(t, "USDT", sell.Currency)
}

func TestDeriveTrade(t *testing.T) {
	m := &Market{Base: "BTC", Quote: "USDT", Taker: d("0.001")}
	tr := DeriveTrade(&Trade{Side: SideSell, TakerOrMaker: Taker, Price: d("10"), Amount: d("3")}, m)
	assertDec(t, "30", tr.Cost)
	require.NotNil(t, tr.Fee)
	assertDec(t, "0.03", tr.Fee.Cost)

	reported := DeriveTrade(&Trade{Price: d("10"), Amount: d("3"), Cost: d("29")}, m)
	assertDec(t, "29", reported.Cost)
	assert.Nil(t, reported.Fee, "no role means no computed fee")
}

func TestSideNormalization(t *testing.T) {
	assert.Equal(t, SideBuy, SideFromString("BUY"))
	assert.Equal(t, SideSell, SideFromString("a"))
	assert.Equal(t, SideBuy, SideFromString("bid"))
	assert.Equal(t, Side(""), SideFromString("?"))
	assert.Equal(t, SideSell, SideFromBuyerMaker(true))
	assert.Equal(t, SideBuy, SideFromTable(map[string]Side{"1": SideBuy, "2": SideSell}, "1"))
}

func TestMapStatus_PassThrough(t *testing.T) {
	table := map[string]OrderStatus{"1": OrderStatusClosed}
	assert.Equal(t, OrderStatusClosed, MapStatus(table, "1"))
	assert.Equal(t, OrderStatus("weird"), MapStatus(table, "weird"))
	assert.True(t, OrderStatusCanceled.Terminal())
	assert.False(t, OrderStatusCanceling.Terminal())
}

func TestLevels_Shapes(t *testing.T) {
	var book struct {
		Arrays  Levels `json:"arrays"`
		Objects Levels `json:"objects"`
		Keyed   Levels `json:"keyed"`
		Empty   Levels `json:"empty"`
	}
	raw := `{
		"arrays": [["101.5","2"],["101","x"],[100,1,"extra"]],
		"objects": [{"price":"5","quantity":"1"}],
		"keyed": {"0.30":"1","0.10":"2","0.20":"3"},
		"empty": []
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &book))

	require.Len(t, book.Arrays, 2, "rows with non-numeric amount are skipped")
	assert.Equal(t, "101.5", book.Arrays[0].Price.String())
	assert.Equal(t, "100", book.Arrays[1].Price.String())

	require.Len(t, book.Objects, 1)
	assert.Equal(t, "1", book.Objects[0].Amount.String())

	require.Len(t, book.Keyed, 3)
	assert.Equal(t, []string{"0.3", "0.1", "0.2"}, []string{
		book.Keyed[0].Price.String(), book.Keyed[1].Price.String(), book.Keyed[2].Price.String(),
	}, "document order is kept")

	assert.Empty(t, book.Empty)
}

func TestNewOrderBook_DedupKeepsFirst(t *testing.T) {
	lvl := func(p, a string) PriceLevel {
		return PriceLevel{Price: decimal.RequireFromString(p), Amount: decimal.RequireFromString(a)}
	}
	book := NewOrderBook("BTC/USD", []PriceLevel{lvl("10", "1"), lvl("10.0", "5"), lvl("9", "2")}, nil, time.Time{})
	require.Len(t, book.Bids, 2)
	assert.Equal(t, "1", book.Bids[0].Amount.String())
	assert.Equal(t, "9", book.Bids[1].Price.String())
	assert.NotNil(t, book.Asks)

	book.Truncate(1)
	assert.Len(t, book.Bids, 1)
}

func TestParseLevelObjects(t *testing.T) {
	levels := ParseLevelObjects(json.RawMessage(`[{"limitPrice":"1.2","quantity":"3"}]`), "limitPrice", "quantity")
	require.Len(t, levels, 1)
	assert.Equal(t, "1.2", levels[0].Price.String())
}

func TestDeriveBalance(t *testing.T) {
	b := NewBalances(time.Time{})
	b.Set("BTC", d("1"), d("2"), decimal.NullDecimal{})
	b.Set("ETH", decimal.NullDecimal{}, d("2"), d("5"))
	b.Set("LTC", decimal.NullDecimal{}, decimal.NullDecimal{}, d("7"))
	b.Add("BTC", d("1"), decimal.NullDecimal{})

	btc, _ := b.Get("BTC")
	assertDec(t, "2", btc.Free)
	assertDec(t, "4", btc.Total)
	eth, _ := b.Get("ETH")
	assertDec(t, "3", eth.Free)
	ltc, _ := b.Get("LTC")
	assertDec(t, "7", ltc.Total)
	assert.False(t, ltc.Free.Valid)
}

func TestAggregateFills(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()
	o := &Order{Amount: d("3"), Price: d("10"), Type: OrderTypeLimit}
	AggregateFills(o, []*Trade{
		{Amount: d("1"), Cost: d("10"), Fee: &Fee{Cost: d("0.1"), Currency: "USDT"}},
		{Amount: d("1"), Cost: d("10"), Timestamp: ts, Fee: &Fee{Cost: d("0.1"), Currency: "USDT"}},
	})
	assertDec(t, "2", o.Filled)
	assertDec(t, "1", o.Remaining)
	assertDec(t, "20", o.Cost)
	assertDec(t, "10", o.Average)
	assert.Equal(t, ts, o.LastTradeTimestamp)
	require.NotNil(t, o.Fee)
	assertDec(t, "0.2", o.Fee.Cost)
}

func TestTimeframeDuration(t *testing.T) {
	dur, ok := TimeframeDuration("4h")
	assert.True(t, ok)
	assert.Equal(t, 4*time.Hour, dur)
	dur, ok = TimeframeDuration("1w")
	assert.True(t, ok)
	assert.Equal(t, 7*24*time.Hour, dur)
	_, ok = TimeframeDuration("x")
	assert.False(t, ok)
}

func TestNormalizeIdempotent(t *testing.T) {
	build := func() *Ticker {
		return DeriveTicker(&Ticker{Symbol: "BTC/USDT", Open: d("1"), Last: d("2"), Timestamp: time.UnixMilli(1).UTC()})
	}
	assert.Equal(t, build(), build())
}
