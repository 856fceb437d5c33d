package exchanges

import (
	"github.com/shopspring/decimal"
)

// CalculateFee computes the fee of a fill from the market's rates. A buy
// pays amount*rate in the base currency. A sell pays amount*price*rate in
// the quote currency. Cost is undefined when an operand is unknown.
func CalculateFee(m *Market, side Side, role Liquidity, amount, price decimal.NullDecimal) *Fee {
	rate := m.Taker
	if role == Maker {
		rate = m.Maker
	}
	if side == SideSell {
		return &Fee{
			Cost:     Mul(Mul(amount, price), rate),
			Currency: m.Quote,
			Rate:     rate,
		}
	}
	return &Fee{
		Cost:     Mul(amount, rate),
		Currency: m.Base,
		Rate:     rate,
	}
}

// ReportedFee builds a fee from exchange-reported cost and currency id.
// It returns nil when the cost is undefined.
func ReportedFee(cost decimal.NullDecimal, currencyID string, overrides map[string]string) *Fee {
	if !cost.Valid {
		return nil
	}
	return &Fee{Cost: cost, Currency: CurrencyCode(currencyID, overrides)}
}
