package exchanges

import (
	"strings"
)

var commonCurrencies = map[string]string{
	"XBT":    "BTC",
	"BCC":    "BCH",
	"DRK":    "DASH",
	"BCHABC": "BCH",
	"BCHSV":  "BSV",
}

// CurrencyCode turns an exchange currency id into a unified code. overrides
// are consulted before the common alias table.
func CurrencyCode(id string, overrides map[string]string) string {
	code := strings.ToUpper(strings.TrimSpace(id))
	if code == "" {
		return ""
	}
	if alias, ok := overrides[code]; ok {
		return alias
	}
	if alias, ok := commonCurrencies[code]; ok {
		return alias
	}
	return code
}

// Symbol joins unified codes.
func Symbol(base, quote string) string {
	return base + "/" + quote
}

// SplitSymbol splits a unified symbol into base and quote.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}

// SymbolRule describes how an exchange glues currency ids into a market id.
type SymbolRule struct {
	// Separator splits ids like "btc_usdt". Empty means no separator.
	Separator string
	// Quotes are the recognized quote ids in priority order.
	Quotes []string
	// Reversed puts the quote first: "USDTBTC" or, with a separator, "usdt-btc".
	Reversed bool
	// CaseInsensitive matches quotes ignoring case.
	CaseInsensitive bool
}

// SplitSymbolID splits a market id into base and quote ids.
func (r SymbolRule) SplitSymbolID(id string) (baseID, quoteID string, err error) {
	if r.Separator != "" {
		parts := strings.Split(id, r.Separator)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", Errorf(KindBadSymbol, "", "cannot split market id %q", id)
		}
		if r.Reversed {
			return parts[1], parts[0], nil
		}
		return parts[0], parts[1], nil
	}

	subject := id
	if r.CaseInsensitive {
		subject = strings.ToUpper(id)
	}
	for _, q := range r.Quotes {
		candidate := q
		if r.CaseInsensitive {
			candidate = strings.ToUpper(q)
		}
		if len(candidate) >= len(subject) {
			continue
		}
		if r.Reversed {
			if strings.HasPrefix(subject, candidate) {
				return id[len(candidate):], id[:len(candidate)], nil
			}
			continue
		}
		if strings.HasSuffix(subject, candidate) {
			cut := len(id) - len(candidate)
			return id[:cut], id[cut:], nil
		}
	}
	return "", "", Errorf(KindBadSymbol, "", "no known quote currency in market id %q", id)
}

// MarketID glues base and quote ids back into an exchange id.
func (r SymbolRule) MarketID(baseID, quoteID string) string {
	if r.Reversed {
		return quoteID + r.Separator + baseID
	}
	return baseID + r.Separator + quoteID
}
