package exchanges

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Params are request parameters. Values are rendered with Format.
type Params map[string]any

// Clone returns a shallow copy, never nil.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Extend returns a copy of p overlaid with others, later maps winning.
func (p Params) Extend(others ...Params) Params {
	out := p.Clone()
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// Omit returns a copy of p without the named keys.
func (p Params) Omit(keys ...string) Params {
	out := p.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Keys returns the parameter names in ascending order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the formatted value of key.
func (p Params) Get(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	return Format(v)
}

// Has reports whether key is set.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Values renders p as url.Values.
func (p Params) Values() url.Values {
	vals := make(url.Values, len(p))
	for k, v := range p {
		vals.Set(k, Format(v))
	}
	return vals
}

// Encode returns the key-sorted urlencoded form.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// EncodeRaw returns the key-sorted k=v pairs joined by '&' without escaping.
func (p Params) EncodeRaw() string {
	keys := p.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+Format(p[k]))
	}
	return strings.Join(parts, "&")
}

// Strings renders every value, keeping the map shape, for JSON bodies.
func (p Params) Strings() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = Format(v)
	}
	return out
}

// Format renders a parameter value the way exchanges expect it on the wire.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case Text:
		return val.String()
	case decimal.Decimal:
		return val.String()
	case decimal.NullDecimal:
		if !val.Valid {
			return ""
		}
		return val.Decimal.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

// ImplodePath substitutes {name} placeholders in path with params and
// returns the parameters that were not consumed.
func ImplodePath(path string, params Params) (string, Params) {
	rest := params.Clone()
	if !strings.Contains(path, "{") {
		return path, rest
	}
	for k, v := range params {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, Format(v))
			delete(rest, k)
		}
	}
	return path, rest
}
