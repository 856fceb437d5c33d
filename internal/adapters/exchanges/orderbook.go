package exchanges

import (
	"bytes"
	"encoding/json"
	"time"
)

// amountKeys are tried in order for object rows without configured keys.
var amountKeys = []string{"amount", "quantity", "qty", "size", "volume"}

// Levels decodes one side of an order book. It accepts arrays of
// [price, amount, ...] rows, arrays of {price, amount} objects, and
// price-keyed objects {"price": amount} read in document order. Rows
// without a numeric price and amount are skipped.
type Levels []PriceLevel

// UnmarshalJSON implements json.Unmarshaler.
func (l *Levels) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*l = nil
		return nil
	}
	switch data[0] {
	case '[':
		*l = parseLevelRows(data, "price", "")
	case '{':
		*l = parsePriceKeyed(data)
	default:
		*l = nil
	}
	return nil
}

// ParseLevelObjects decodes an array of row objects using custom keys,
// such as coinsuper's limitPrice/quantity.
func ParseLevelObjects(data json.RawMessage, priceKey, amountKey string) []PriceLevel {
	return parseLevelRows(bytes.TrimSpace(data), priceKey, amountKey)
}

func parseLevelRows(data []byte, priceKey, amountKey string) []PriceLevel {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil
	}
	out := make([]PriceLevel, 0, len(rows))
	for _, row := range rows {
		row = bytes.TrimSpace(row)
		if len(row) == 0 {
			continue
		}
		var price, amount Number
		switch row[0] {
		case '[':
			var cells []Number
			if err := json.Unmarshal(row, &cells); err != nil || len(cells) < 2 {
				continue
			}
			price, amount = cells[0], cells[1]
		case '{':
			var obj map[string]Number
			if err := json.Unmarshal(row, &obj); err != nil {
				continue
			}
			price = obj[priceKey]
			if amountKey != "" {
				amount = obj[amountKey]
			} else {
				for _, k := range amountKeys {
					if v, ok := obj[k]; ok {
						amount = v
						break
					}
				}
			}
		default:
			continue
		}
		if !price.Valid || !amount.Valid {
			continue
		}
		out = append(out, PriceLevel{Price: price.Decimal, Amount: amount.Decimal})
	}
	return out
}

func parsePriceKeyed(data []byte) []PriceLevel {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var out []PriceLevel
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		key, _ := tok.(string)
		var amount Number
		if err := dec.Decode(&amount); err != nil {
			return out
		}
		price := ParseDecimal(key)
		if !price.Valid || !amount.Valid {
			continue
		}
		out = append(out, PriceLevel{Price: price.Decimal, Amount: amount.Decimal})
	}
	return out
}

// DedupLevels keeps the first level of each price and drops later
// duplicates. Order is preserved.
func DedupLevels(levels []PriceLevel) []PriceLevel {
	if len(levels) == 0 {
		return []PriceLevel{}
	}
	seen := make(map[string]struct{}, len(levels))
	out := make([]PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		key := lvl.Price.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, lvl)
	}
	return out
}

// NewOrderBook builds a book from raw sides. Levels keep source order.
func NewOrderBook(symbol string, bids, asks []PriceLevel, ts time.Time) *OrderBook {
	return &OrderBook{
		Symbol:    symbol,
		Bids:      DedupLevels(bids),
		Asks:      DedupLevels(asks),
		Timestamp: ts,
	}
}

// Truncate limits both sides to n levels. n <= 0 keeps everything.
func (b *OrderBook) Truncate(n int) *OrderBook {
	if n <= 0 {
		return b
	}
	if len(b.Bids) > n {
		b.Bids = b.Bids[:n]
	}
	if len(b.Asks) > n {
		b.Asks = b.Asks[:n]
	}
	return b
}
