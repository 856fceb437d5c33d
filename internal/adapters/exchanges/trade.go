package exchanges

import (
	"sort"
	"strings"
)

// SideFromString maps the usual side vocabularies ("buy", "BID", "b",
// "sell", "ASK", "a") to a unified side. Unknown input yields "".
func SideFromString(raw string) Side {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "b", "bid", "long":
		return SideBuy
	case "sell", "s", "a", "ask", "short":
		return SideSell
	}
	return ""
}

// SideFromTable maps exchange side codes such as "1"/"2" through table.
func SideFromTable(table map[string]Side, raw string) Side {
	if s, ok := table[raw]; ok {
		return s
	}
	return SideFromString(raw)
}

// SideFromBuyerMaker derives the taker side of a public trade: when the
// buyer was the maker, the aggressor sold.
func SideFromBuyerMaker(isBuyerMaker bool) Side {
	if isBuyerMaker {
		return SideSell
	}
	return SideBuy
}

// DeriveTrade fills cost from price and amount when the exchange did not
// report it, and computes a fee when the role is known and none was reported.
func DeriveTrade(t *Trade, m *Market) *Trade {
	if t == nil {
		return nil
	}
	if !t.Cost.Valid {
		t.Cost = Mul(t.Price, t.Amount)
	}
	if t.Fee == nil && m != nil && t.TakerOrMaker != "" && t.Side != "" {
		fee := CalculateFee(m, t.Side, t.TakerOrMaker, t.Amount, t.Price)
		if fee.Cost.Valid {
			t.Fee = fee
		}
	}
	return t
}

// SortTrades orders trades by ascending timestamp, keeping source order on ties.
func SortTrades(trades []*Trade) []*Trade {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})
	return trades
}
