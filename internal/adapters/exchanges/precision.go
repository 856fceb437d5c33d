package exchanges

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PrecisionFromString counts the significant decimal places of a step such
// as "0.00010000" (4). Integral steps yield 0.
func PrecisionFromString(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	if !ParseDecimal(s).Valid {
		return decimal.NullDecimal{}
	}
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return Some(decimal.Zero)
	}
	frac := strings.TrimRight(s[dot+1:], "0")
	return Some(decimal.NewFromInt(int64(len(frac))))
}

// AmountToPrecision truncates amount to the market's amount precision.
// Markets without one get the amount back unchanged.
func AmountToPrecision(m *Market, amount decimal.Decimal) string {
	if m == nil || !m.Precision.Amount.Valid {
		return amount.String()
	}
	p := m.Precision.Amount.Decimal
	if m.Precision.Mode == PrecisionTickSize {
		if p.IsZero() {
			return amount.String()
		}
		return amount.Div(p).Floor().Mul(p).String()
	}
	return amount.Truncate(int32(p.IntPart())).String()
}

// PriceToPrecision rounds price half away from zero to the market's price precision.
func PriceToPrecision(m *Market, price decimal.Decimal) string {
	if m == nil || !m.Precision.Price.Valid {
		return price.String()
	}
	p := m.Precision.Price.Decimal
	if m.Precision.Mode == PrecisionTickSize {
		if p.IsZero() {
			return price.String()
		}
		return price.Div(p).Round(0).Mul(p).String()
	}
	return price.Round(int32(p.IntPart())).String()
}
