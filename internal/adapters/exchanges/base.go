package exchanges

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"exconnect/internal/adapters/exchanges/ratelimit"
	"exconnect/internal/adapters/exchanges/retry"
	"exconnect/internal/metrics"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Config configures one adapter instance.
type Config struct {
	Credentials Credentials
	// BaseURL replaces every host of the adapter, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	// RateLimit overrides the adapter's minimum interval between requests.
	RateLimit        time.Duration
	DisableRateLimit bool
	TimeDifference   time.Duration
	// Options carries adapter-specific settings such as recvWindow.
	Options     Params
	MarketStore MarketStore
	// Retry enables transport retries of transient failures.
	Retry  *retry.Config
	Now    func() time.Time
	Logger *logger.Logger
}

// Descriptor is the static identity of an adapter.
type Descriptor struct {
	ID        string
	Name      string
	BaseURL   string
	RateLimit time.Duration
}

// Hooks are the adapter-supplied parts of the dispatcher.
type Hooks struct {
	Signer  Signer
	Errors  ErrorHandler
	Markets func(ctx context.Context) ([]*Market, error)
}

// Base is the shared machinery embedded by every adapter: HTTP dispatch,
// market cache and clock.
type Base struct {
	desc    Descriptor
	baseURL string
	creds   Credentials
	options Params
	http    *http.Client
	limiter *ratelimit.Limiter
	retry   *retry.Middleware
	clock   *Clock
	store   MarketStore
	hooks   Hooks
	log     *logger.Logger

	mu      sync.RWMutex
	markets map[string]*Market
	byID    map[string]*Market
	loads   singleflight.Group
}

// NewBase wires an adapter's descriptor, configuration and hooks.
func NewBase(desc Descriptor, cfg Config, hooks Hooks) *Base {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	baseURL := desc.BaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	b := &Base{
		desc:    desc,
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   cfg.Credentials,
		options: cfg.Options.Clone(),
		http:    client,
		clock:   NewClock(cfg.Now),
		store:   cfg.MarketStore,
		hooks:   hooks,
		log:     log.With("component", "exchange", "exchange", desc.ID),
	}
	if !cfg.DisableRateLimit {
		interval := desc.RateLimit
		if cfg.RateLimit > 0 {
			interval = cfg.RateLimit
		}
		b.limiter = ratelimit.Every(desc.ID, interval)
	}
	if cfg.Retry != nil {
		b.retry = retry.New(*cfg.Retry)
	}
	b.clock.SetTimeDifference(cfg.TimeDifference)
	return b
}

// ID returns the adapter id.
func (b *Base) ID() string { return b.desc.ID }

// Name returns the display name.
func (b *Base) Name() string { return b.desc.Name }

// BaseURL returns the configured root URL without a trailing slash.
func (b *Base) BaseURL() string { return b.baseURL }

// Overridden reports whether the root URL was replaced by configuration.
func (b *Base) Overridden() bool { return b.baseURL != strings.TrimRight(b.desc.BaseURL, "/") }

// Credentials returns the configured credentials.
func (b *Base) Credentials() Credentials { return b.creds }

// Option returns an adapter option, or fallback when unset.
func (b *Base) Option(key string, fallback any) any {
	if v, ok := b.options[key]; ok {
		return v
	}
	return fallback
}

// Clock returns the instance clock.
func (b *Base) Clock() *Clock { return b.clock }

// SetTimeDifference stores the skew measured by CalibrateClock.
func (b *Base) SetTimeDifference(d time.Duration) { b.clock.SetTimeDifference(d) }

// TimeDifference returns the stored skew.
func (b *Base) TimeDifference() time.Duration { return b.clock.TimeDifference() }

// Logger returns the adapter logger.
func (b *Base) Logger() *logger.Logger { return b.log }

// RequireCredentials fails with AuthenticationError when keys are missing.
func (b *Base) RequireCredentials(fields ...string) error {
	missing := make([]string, 0, len(fields))
	for _, f := range fields {
		var v string
		switch f {
		case "apiKey":
			v = b.creds.APIKey
		case "secret":
			v = b.creds.Secret
		case "uid":
			v = b.creds.UID
		case "password":
			v = b.creds.Password
		}
		if v == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Errorf(KindAuthentication, b.desc.ID, "requires %s credential", strings.Join(missing, ", "))
	}
	return nil
}

// Fetch signs and sends one endpoint call and returns the raw body.
// Writes are sent once even when retries are configured.
func (b *Base) Fetch(ctx context.Context, op Operation, ep Endpoint, params Params) ([]byte, error) {
	if b.hooks.Signer == nil {
		return nil, Errorf(KindNotSupported, b.desc.ID, "no signer configured")
	}
	if ep.Access == Private {
		if err := b.RequireCredentials("apiKey", "secret"); err != nil {
			return nil, err
		}
	}
	path, rest := ImplodePath(ep.Path, params)

	attempt := func() ([]byte, error) {
		req, err := b.hooks.Signer.Sign(ep, path, rest)
		if err != nil {
			return nil, err
		}
		return b.send(ctx, op, req)
	}
	if b.retry == nil || !ep.Idempotent {
		return attempt()
	}
	return retry.Do(ctx, b.retry, attempt)
}

func (b *Base) send(ctx context.Context, op Operation, r *Request) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", b.desc.ID)
	}
	for k, values := range r.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	b.log.Debugw("exchange request", "op", op, "method", r.Method, "url", r.URL)

	resp, err := b.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "%s %s", b.desc.ID, op)
		}
		e := Errorf(KindNetwork, b.desc.ID, "%s %s: %v", r.Method, r.URL, err)
		e.Err = err
		b.record(op, start, e)
		return nil, e
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e := Errorf(KindNetwork, b.desc.ID, "read response: %v", err)
		e.Err = err
		b.record(op, start, e)
		return nil, e
	}

	if err := b.mapResponse(resp.StatusCode, raw); err != nil {
		b.record(op, start, err)
		b.log.Warnw("exchange error", "op", op, "status", resp.StatusCode, "kind", KindOf(err), "error", err)
		return nil, err
	}
	b.record(op, start, nil)
	return raw, nil
}

// mapResponse applies rate-limit detection, then the adapter hook, then
// the default HTTP status mapping.
func (b *Base) mapResponse(status int, body []byte) error {
	if kind, ok := HTTPStatusKind(status); ok && kind == KindDDoSProtection {
		return Errorf(kind, b.desc.ID, "HTTP %d", status).WithBody(string(body))
	}
	if b.hooks.Errors != nil {
		if err := b.hooks.Errors.HandleError(status, body); err != nil {
			var e *Error
			if errors.As(err, &e) && e.Exchange == "" {
				e.Exchange = b.desc.ID
			}
			return err
		}
	}
	if kind, ok := HTTPStatusKind(status); ok {
		return Errorf(kind, b.desc.ID, "HTTP %d", status).WithBody(string(body))
	}
	return nil
}

func (b *Base) record(op Operation, start time.Time, err error) {
	metrics.RecordExchangeAPICall(b.desc.ID, string(op), time.Since(start), string(KindOf(err)), err)
}

// LoadMarkets returns the cached markets, fetching them once. Concurrent
// callers share one fetch; reload forces a refresh skipping the store.
func (b *Base) LoadMarkets(ctx context.Context, reload bool) (map[string]*Market, error) {
	if !reload {
		if m := b.snapshot(); m != nil {
			return m, nil
		}
	}
	key := "load"
	if reload {
		key = "reload"
	}
	// The shared load outlives any single caller; each waiter still honours
	// its own ctx.
	loadCtx := context.WithoutCancel(ctx)
	ch := b.loads.DoChan(key, func() (interface{}, error) {
		ctx := loadCtx
		if !reload {
			if m := b.snapshot(); m != nil {
				return nil, nil
			}
			if b.store != nil {
				cached, err := b.store.LoadMarkets(ctx, b.desc.ID)
				if err != nil {
					b.log.Warnw("market store read failed", "error", err)
				} else if len(cached) > 0 {
					b.SetMarkets(cached)
					return nil, nil
				}
			}
		}
		if b.hooks.Markets == nil {
			return nil, Errorf(KindNotSupported, b.desc.ID, "fetchMarkets is not supported")
		}
		markets, err := b.hooks.Markets(ctx)
		if err != nil {
			return nil, err
		}
		b.SetMarkets(markets)
		if b.store != nil {
			if err := b.store.SaveMarkets(ctx, b.desc.ID, markets); err != nil {
				b.log.Warnw("market store write failed", "error", err)
			}
		}
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	return b.snapshot(), nil
}

// SetMarkets replaces the whole market set.
func (b *Base) SetMarkets(markets []*Market) {
	bySymbol := make(map[string]*Market, len(markets))
	byID := make(map[string]*Market, len(markets))
	for _, m := range markets {
		if m == nil {
			continue
		}
		bySymbol[m.Symbol] = m
		if _, dup := byID[m.ID]; !dup {
			byID[m.ID] = m
		}
	}
	b.mu.Lock()
	b.markets = bySymbol
	b.byID = byID
	b.mu.Unlock()
	metrics.RecordMarketsLoaded(b.desc.ID, len(bySymbol))
}

func (b *Base) snapshot() map[string]*Market {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.markets == nil {
		return nil
	}
	out := make(map[string]*Market, len(b.markets))
	for k, v := range b.markets {
		out[k] = v
	}
	return out
}

// Market returns the cached market for symbol.
func (b *Base) Market(symbol string) (*Market, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.markets == nil {
		return nil, Errorf(KindExchange, b.desc.ID, "markets not loaded")
	}
	if m, ok := b.markets[symbol]; ok {
		return m, nil
	}
	if m, ok := b.byID[symbol]; ok {
		return m, nil
	}
	return nil, Errorf(KindBadSymbol, b.desc.ID, "does not have market symbol %s", symbol)
}

// MarketByID looks a market up by exchange id.
func (b *Base) MarketByID(id string) (*Market, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.byID[id]
	return m, ok
}

// ResolveMarket loads markets when needed and returns the one for symbol.
func (b *Base) ResolveMarket(ctx context.Context, symbol string) (*Market, error) {
	if _, err := b.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	return b.Market(symbol)
}

// Markets returns the cached markets sorted by symbol.
func (b *Base) Markets() []*Market {
	b.mu.RLock()
	out := make([]*Market, 0, len(b.markets))
	for _, m := range b.markets {
		out = append(out, m)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns the cached symbols in ascending order.
func (b *Base) Symbols() []string {
	markets := b.Markets()
	out := make([]string, len(markets))
	for i, m := range markets {
		out[i] = m.Symbol
	}
	return out
}

// URL joins the root URL and a path.
func (b *Base) URL(path string) string {
	return b.baseURL + "/" + strings.TrimLeft(path, "/")
}
