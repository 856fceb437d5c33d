package exchanges

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MapStatus maps a raw status through table. Unmapped values pass through.
func MapStatus(table map[string]OrderStatus, raw string) OrderStatus {
	if s, ok := table[raw]; ok {
		return s
	}
	return OrderStatus(raw)
}

// OrderTypeFromString lower-cases exchange order types. "limit" and
// "market" become the unified constants; others pass through.
func OrderTypeFromString(raw string) OrderType {
	return OrderType(strings.ToLower(strings.TrimSpace(raw)))
}

// DeriveOrder completes the quantities of o from the ones the exchange reported:
//
//	remaining = max(amount - filled, 0)
//	filled    = max(amount - remaining, 0)   when only remaining is known
//	cost      = price * filled                when cost is unknown
//	average   = cost / filled                 when filled > 0
//
// A market order reported with zero price takes price = cost / filled.
func DeriveOrder(o *Order) *Order {
	if o == nil {
		return nil
	}
	if !o.Filled.Valid && o.Amount.Valid && o.Remaining.Valid {
		o.Filled = FloorZero(Sub(o.Amount, o.Remaining))
	}
	if o.Amount.Valid && o.Filled.Valid {
		o.Remaining = FloorZero(Sub(o.Amount, o.Filled))
	}
	if !o.Amount.Valid && o.Filled.Valid && o.Remaining.Valid {
		o.Amount = Add(o.Filled, o.Remaining)
	}
	if !o.Cost.Valid && Positive(o.Price) {
		o.Cost = Mul(o.Price, o.Filled)
	}
	if !o.Average.Valid && Positive(o.Filled) {
		o.Average = Div(o.Cost, o.Filled)
	}
	if o.Type == OrderTypeMarket && (!o.Price.Valid || o.Price.Decimal.IsZero()) &&
		Positive(o.Cost) && Positive(o.Filled) {
		o.Price = Div(o.Cost, o.Filled)
	}
	if o.Fee == nil && len(o.Trades) > 0 {
		o.Fee = sumTradeFees(o.Trades)
	}
	return o
}

// AggregateFills sets filled, cost and last-trade time of o from its fills.
func AggregateFills(o *Order, fills []*Trade) *Order {
	if len(fills) == 0 {
		return o
	}
	filled := decimal.Zero
	cost := decimal.Zero
	for _, f := range fills {
		if f.Amount.Valid {
			filled = filled.Add(f.Amount.Decimal)
		}
		if f.Cost.Valid {
			cost = cost.Add(f.Cost.Decimal)
		}
		if f.Timestamp.After(o.LastTradeTimestamp) {
			o.LastTradeTimestamp = f.Timestamp
		}
	}
	o.Trades = fills
	o.Filled = Some(filled)
	o.Cost = Some(cost)
	o.Average = decimal.NullDecimal{}
	o.Fee = nil
	return DeriveOrder(o)
}

// sumTradeFees adds fees of one currency. Mixed currencies yield nil.
func sumTradeFees(trades []*Trade) *Fee {
	var out *Fee
	for _, t := range trades {
		if t.Fee == nil || !t.Fee.Cost.Valid {
			continue
		}
		if out == nil {
			out = &Fee{Cost: t.Fee.Cost, Currency: t.Fee.Currency}
			continue
		}
		if out.Currency != t.Fee.Currency {
			return nil
		}
		out.Cost = Add(out.Cost, t.Fee.Cost)
	}
	return out
}
