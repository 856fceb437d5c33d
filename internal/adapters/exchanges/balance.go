package exchanges

import (
	"time"

	"github.com/shopspring/decimal"
)

// NewBalances returns an empty balance set.
func NewBalances(ts time.Time) *Balances {
	return &Balances{Currencies: map[string]Balance{}, Timestamp: ts}
}

// Set stores a holding after filling the missing member from the other two.
func (b *Balances) Set(code string, free, used, total decimal.NullDecimal) {
	b.Currencies[code] = DeriveBalance(Balance{Free: free, Used: used, Total: total})
}

// Add accumulates into an existing holding, for exchanges that report a
// currency on several rows.
func (b *Balances) Add(code string, free, used decimal.NullDecimal) {
	prev, ok := b.Currencies[code]
	if ok {
		free = sumDefined(prev.Free, free)
		used = sumDefined(prev.Used, used)
	}
	b.Set(code, free, used, decimal.NullDecimal{})
}

// Get returns the holding of code.
func (b *Balances) Get(code string) (Balance, bool) {
	v, ok := b.Currencies[code]
	return v, ok
}

// DeriveBalance fills total = free + used, or the missing one of free/used.
func DeriveBalance(bal Balance) Balance {
	switch {
	case !bal.Total.Valid:
		bal.Total = Add(bal.Free, bal.Used)
	case !bal.Free.Valid:
		bal.Free = Sub(bal.Total, bal.Used)
	case !bal.Used.Valid:
		bal.Used = Sub(bal.Total, bal.Free)
	}
	return bal
}

func sumDefined(a, b decimal.NullDecimal) decimal.NullDecimal {
	switch {
	case a.Valid && b.Valid:
		return Some(a.Decimal.Add(b.Decimal))
	case a.Valid:
		return a
	}
	return b
}
