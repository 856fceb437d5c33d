package exchanges

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Number decodes any JSON scalar leniently. Numeric literals and numeric
// strings become valid decimals; null, empty strings, booleans, objects and
// garbage become undefined. Decoding never fails.
type Number struct {
	decimal.NullDecimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.NullDecimal = parseScalar(data)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	return n.NullDecimal.MarshalJSON()
}

// Int returns the integer part, or 0 when undefined.
func (n Number) Int() int64 {
	if !n.Valid {
		return 0
	}
	return n.Decimal.IntPart()
}

// Text decodes any JSON scalar into its string form. Numbers keep their
// literal spelling so large ids survive intact; null becomes "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*t = ""
			return nil
		}
		*t = Text(s)
	case data[0] == '{' || data[0] == '[':
		*t = ""
	default:
		*t = Text(data)
	}
	return nil
}

// String returns the plain string.
func (t Text) String() string { return string(t) }

func parseScalar(data []byte) decimal.NullDecimal {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return decimal.NullDecimal{}
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.NullDecimal{}
		}
		return ParseDecimal(s)
	case '{', '[', 'n', 't', 'f':
		return decimal.NullDecimal{}
	}
	return ParseDecimal(string(data))
}

// ParseDecimal converts a numeric string into a decimal, undefined on failure.
func ParseDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// ParsePercent parses a percent string such as "-2.48%" into a fraction (-0.0248).
func ParsePercent(s string) decimal.NullDecimal {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	return Div(ParseDecimal(s), Some(decimal.NewFromInt(100)))
}

// ParseLeadingDecimal parses the numeric prefix of values like "286.231 BTC".
func ParseLeadingDecimal(s string) decimal.NullDecimal {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return decimal.NullDecimal{}
	}
	return ParseDecimal(fields[0])
}

// Some wraps a defined decimal.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// Float wraps a float constant, intended for fee rates and similar literals.
func Float(f float64) decimal.NullDecimal {
	return Some(decimal.NewFromFloat(f))
}

// PowTen returns 10^-places, the tick size implied by a decimal-place count.
func PowTen(places int64) decimal.Decimal {
	return decimal.New(1, -int32(places))
}

// Add returns a+b when both are defined.
func Add(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return Some(a.Decimal.Add(b.Decimal))
}

// Sub returns a-b when both are defined.
func Sub(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return Some(a.Decimal.Sub(b.Decimal))
}

// Mul returns a*b when both are defined.
func Mul(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return Some(a.Decimal.Mul(b.Decimal))
}

// Div returns a/b when both are defined and b is nonzero.
func Div(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid || b.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return Some(a.Decimal.Div(b.Decimal))
}

// FloorZero clamps a defined value at zero.
func FloorZero(a decimal.NullDecimal) decimal.NullDecimal {
	if a.Valid && a.Decimal.IsNegative() {
		return Some(decimal.Zero)
	}
	return a
}

// Positive reports whether a is defined and strictly greater than zero.
func Positive(a decimal.NullDecimal) bool {
	return a.Valid && a.Decimal.IsPositive()
}

// First returns the first defined value.
func First(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}

// Millis converts epoch milliseconds to time, zero when undefined.
func Millis(n decimal.NullDecimal) time.Time {
	if !n.Valid || n.Decimal.IsZero() {
		return time.Time{}
	}
	return time.UnixMilli(n.Decimal.IntPart()).UTC()
}

// Seconds converts epoch seconds (possibly fractional) to time.
func Seconds(n decimal.NullDecimal) time.Time {
	if !n.Valid || n.Decimal.IsZero() {
		return time.Time{}
	}
	return time.UnixMilli(n.Decimal.Shift(3).IntPart()).UTC()
}

// ParseISO8601 parses RFC 3339 timestamps with or without fractional seconds.
func ParseISO8601(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ISO8601 formats t with millisecond precision in UTC.
func ISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// FormatInt renders an integer parameter.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
