package retry

import (
	"context"
	"math"
	"net"
	"strings"
	"time"

	"exconnect/pkg/errors"
)

// Strategy defines the retry strategy
type Strategy string

const (
	// StrategyExponential uses exponential backoff
	StrategyExponential Strategy = "exponential"
	// StrategyLinear uses linear backoff
	StrategyLinear Strategy = "linear"
	// StrategyFixed uses fixed delay
	StrategyFixed Strategy = "fixed"
)

// Config contains retry configuration
type Config struct {
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialDelay time.Duration `envconfig:"INITIAL_DELAY" default:"250ms"`
	MaxDelay     time.Duration `envconfig:"MAX_DELAY" default:"5s"`
	Strategy     Strategy      `envconfig:"STRATEGY" default:"exponential"`
	Multiplier   float64       `envconfig:"MULTIPLIER" default:"2"` // For exponential backoff
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

// Middleware provides retry functionality with backoff
type Middleware struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a new retry middleware. A negative MaxRetries disables retries.
func New(config Config) *Middleware {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 250 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyExponential
	}

	return &Middleware{config: config, sleep: sleepContext}
}

// Config returns the effective configuration
func (m *Middleware) Config() Config {
	return m.config
}

// Do executes the function with retry logic
func (m *Middleware) Do(ctx context.Context, fn func() error) error {
	_, err := Do(ctx, m, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do executes fn with the middleware's policy and returns its result.
func Do[T any](ctx context.Context, m *Middleware, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after last attempt
		if attempt == m.config.MaxRetries {
			break
		}

		if err := m.sleep(ctx, m.calculateDelay(attempt)); err != nil {
			return zero, errors.Wrap(err, "retry cancelled")
		}
	}

	if m.config.MaxRetries == 0 {
		return zero, lastErr
	}
	return zero, errors.Wrapf(lastErr, "max retries (%d) exceeded", m.config.MaxRetries)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calculateDelay calculates the backoff delay based on the strategy
func (m *Middleware) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch m.config.Strategy {
	case StrategyExponential:
		delay = time.Duration(float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt)))
	case StrategyLinear:
		delay = m.config.InitialDelay * time.Duration(1+attempt)
	default:
		delay = m.config.InitialDelay
	}

	if delay > m.config.MaxDelay {
		delay = m.config.MaxDelay
	}

	return delay
}

// IsRetryable determines if an error is worth retrying. Categorized errors
// decide for themselves through a Retryable method.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var categorized interface{ Retryable() bool }
	if errors.As(err, &categorized) {
		return categorized.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	if errors.Is(err, errors.ErrRateLimitExceeded) || errors.Is(err, errors.ErrExchangeUnavailable) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, msg := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
	} {
		if strings.Contains(errStr, msg) {
			return true
		}
	}

	return false
}
