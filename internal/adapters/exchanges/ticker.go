package exchanges

import (
	"github.com/shopspring/decimal"
)

var hundred = Some(decimal.NewFromInt(100))
var two = Some(decimal.NewFromInt(2))

// DeriveTicker fills the derived fields that are still undefined and whose
// operands are known. It returns t for chaining.
func DeriveTicker(t *Ticker) *Ticker {
	if t == nil {
		return nil
	}
	if !t.Close.Valid {
		t.Close = t.Last
	}
	if !t.Last.Valid {
		t.Last = t.Close
	}
	if !t.Change.Valid {
		t.Change = Sub(t.Last, t.Open)
	}
	if !t.Percentage.Valid && Positive(t.Open) {
		t.Percentage = Mul(Div(t.Change, t.Open), hundred)
	}
	if !t.Average.Valid {
		t.Average = Div(Add(t.Open, t.Last), two)
	}
	if !t.VWAP.Valid && Positive(t.BaseVolume) {
		t.VWAP = Div(t.QuoteVolume, t.BaseVolume)
	}
	return t
}

// SymbolOf returns the market symbol, or "" for an unresolved market.
func SymbolOf(m *Market) string {
	if m == nil {
		return ""
	}
	return m.Symbol
}

// FilterTickers keeps the tickers whose symbol is listed. An empty list keeps all.
func FilterTickers(tickers map[string]*Ticker, symbols []string) map[string]*Ticker {
	if len(symbols) == 0 {
		return tickers
	}
	out := make(map[string]*Ticker, len(symbols))
	for _, s := range symbols {
		if t, ok := tickers[s]; ok {
			out[s] = t
		}
	}
	return out
}

// IndexTickers keys tickers by symbol, skipping unresolved ones.
func IndexTickers(list []*Ticker) map[string]*Ticker {
	out := make(map[string]*Ticker, len(list))
	for _, t := range list {
		if t == nil || t.Symbol == "" {
			continue
		}
		out[t.Symbol] = t
	}
	return out
}
