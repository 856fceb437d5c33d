package marketdata

import (
	"context"
	"sync"
	"time"

	"exconnect/internal/adapters/telegram"
	"exconnect/pkg/logger"
)

// Alerter is notified when an exchange crosses the failure threshold and
// again when it recovers.
type Alerter interface {
	ExchangeDown(ctx context.Context, o telegram.Outage) error
	ExchangeRecovered(ctx context.Context, exchange string, downSince time.Time) error
}

type failureState struct {
	consecutive int
	since       time.Time
	alerted     bool
}

// OutageTracker counts consecutive failures per exchange and operation.
// It is shared by every collector so one exchange is reported once per
// operation.
type OutageTracker struct {
	mu        sync.Mutex
	threshold int
	alerter   Alerter
	log       *logger.Logger
	now       func() time.Time
	state     map[string]*failureState
}

// NewOutageTracker returns a tracker. A nil alerter only logs.
func NewOutageTracker(threshold int, alerter Alerter) *OutageTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &OutageTracker{
		threshold: threshold,
		alerter:   alerter,
		log:       logger.Get().Component("outages"),
		now:       time.Now,
		state:     make(map[string]*failureState),
	}
}

// Failure records a failed call and alerts once the threshold is reached.
func (t *OutageTracker) Failure(ctx context.Context, exchange, operation string, err error) {
	key := exchange + "/" + operation

	t.mu.Lock()
	st, ok := t.state[key]
	if !ok {
		st = &failureState{since: t.now()}
		t.state[key] = st
	}
	st.consecutive++
	fire := !st.alerted && st.consecutive >= t.threshold
	if fire {
		st.alerted = true
	}
	outage := telegram.Outage{
		Exchange:  exchange,
		Operation: operation,
		Failures:  st.consecutive,
		Since:     st.since,
		LastError: err,
	}
	t.mu.Unlock()

	if !fire {
		return
	}
	t.log.Warnw("Exchange marked down", "exchange", exchange, "operation", operation, "failures", outage.Failures)
	if t.alerter == nil {
		return
	}
	if alertErr := t.alerter.ExchangeDown(ctx, outage); alertErr != nil {
		t.log.Warnw("Outage alert failed", "exchange", exchange, "error", alertErr)
	}
}

// Success resets the counter and sends a recovery notice when an alert
// was raised.
func (t *OutageTracker) Success(ctx context.Context, exchange, operation string) {
	key := exchange + "/" + operation

	t.mu.Lock()
	st, ok := t.state[key]
	delete(t.state, key)
	t.mu.Unlock()

	if !ok || !st.alerted {
		return
	}
	t.log.Infow("Exchange recovered", "exchange", exchange, "operation", operation)
	if t.alerter == nil {
		return
	}
	if err := t.alerter.ExchangeRecovered(ctx, exchange, st.since); err != nil {
		t.log.Warnw("Recovery alert failed", "exchange", exchange, "error", err)
	}
}

// Down lists the exchange/operation keys currently alerted.
func (t *OutageTracker) Down() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for key, st := range t.state {
		if st.alerted {
			out = append(out, key)
		}
	}
	return out
}
