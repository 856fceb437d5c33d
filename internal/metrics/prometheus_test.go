package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

func TestRecordExchangeAPICall(t *testing.T) {
	RecordExchangeAPICall("felixo", "fetchTicker", 20*time.Millisecond, "", nil)
	RecordExchangeAPICall("felixo", "fetchTicker", 20*time.Millisecond, "", errors.ErrUnavailable)
	RecordExchangeAPICall("felixo", "fetchTicker", 20*time.Millisecond, "DDoSProtection", errors.ErrRateLimitExceeded)

	assert.Equal(t, 1.0, testutil.ToFloat64(ExchangeAPICalls.WithLabelValues("felixo", "fetchTicker", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ExchangeAPICalls.WithLabelValues("felixo", "fetchTicker", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ExchangeAPIErrors.WithLabelValues("felixo", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ExchangeAPIErrors.WithLabelValues("felixo", "DDoSProtection")))
}

func TestRecordNormalizedIgnoresEmpty(t *testing.T) {
	RecordNormalized("tradeogre", "trade", 0)
	RecordNormalized("tradeogre", "trade", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(NormalizedRecords.WithLabelValues("tradeogre", "trade")))
}

func TestStorageCollectorSkipsMissingBackends(t *testing.T) {
	c := NewStorageCollector(logger.Nop(), nil, nil, nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}
