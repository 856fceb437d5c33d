package exchanges

import (
	"strconv"
	"time"
)

// TimeframeDuration parses unified timeframes such as "1m", "4h", "1d", "1w" and "1M".
func TimeframeDuration(tf string) (time.Duration, bool) {
	if len(tf) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	var unit time.Duration
	switch tf[len(tf)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'M':
		unit = 30 * 24 * time.Hour
	case 'y':
		unit = 365 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// MapTimeframe translates a unified timeframe through table.
func MapTimeframe(exchange string, table map[string]string, tf string) (string, error) {
	if v, ok := table[tf]; ok {
		return v, nil
	}
	return "", Errorf(KindBadRequest, exchange, "unsupported timeframe %s", tf)
}

// CandleRow decodes an array-shaped candle whose time is in epoch milliseconds.
func CandleRow(row []Number) *OHLCV {
	if len(row) < 6 {
		return nil
	}
	return &OHLCV{
		Timestamp: Millis(row[0].NullDecimal),
		Open:      row[1].NullDecimal,
		High:      row[2].NullDecimal,
		Low:       row[3].NullDecimal,
		Close:     row[4].NullDecimal,
		Volume:    row[5].NullDecimal,
	}
}
