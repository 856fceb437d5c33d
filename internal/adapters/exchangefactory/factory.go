package exchangefactory

import (
	"context"
	"sync"

	"exconnect/internal/adapters/config"
	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/retry"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

// Option customizes factory behavior.
type Option func(*Factory)

// WithTemplate sets the configuration every client starts from. Credentials
// in the template are ignored.
func WithTemplate(cfg exchanges.Config) Option {
	return func(f *Factory) {
		f.template = cfg
	}
}

// WithCredentialSource resolves credentials per exchange when a client is built.
func WithCredentialSource(src exchanges.CredentialSource) Option {
	return func(f *Factory) {
		f.creds = src
	}
}

// WithMarketStore shares a market cache across clients.
func WithMarketStore(store exchanges.MarketStore) Option {
	return func(f *Factory) {
		f.template.MarketStore = store
	}
}

// WithEnabled restricts the factory to ids. Unknown ids are rejected by New.
func WithEnabled(ids ...string) Option {
	return func(f *Factory) {
		f.enabled = append([]string(nil), ids...)
	}
}

// Factory hands out one cached client per exchange.
type Factory struct {
	template exchanges.Config
	creds    exchanges.CredentialSource
	enabled  []string

	mu      sync.RWMutex
	clients map[string]exchanges.Exchange
	log     *logger.Logger
}

var _ exchanges.Factory = (*Factory)(nil)

// New creates a factory over every registered adapter, or the enabled subset.
func New(opts ...Option) (*Factory, error) {
	f := &Factory{
		enabled: Supported(),
		clients: make(map[string]exchanges.Exchange),
		log:     logger.Get().Component("exchange_factory"),
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, id := range f.enabled {
		if _, ok := Lookup(id); !ok {
			return nil, errors.Wrapf(errors.ErrUnknownExchange, "%s", id)
		}
	}
	if f.template.Logger == nil {
		f.template.Logger = logger.Get()
	}
	return f, nil
}

// FromConfig builds a factory from application configuration. vault may be
// nil; environment credentials are consulted after it.
func FromConfig(cfg *config.Config, store exchanges.MarketStore, vault exchanges.CredentialSource) (*Factory, error) {
	template := exchanges.Config{
		Timeout:     cfg.Exchanges.Timeout,
		RateLimit:   cfg.Exchanges.RateLimit,
		MarketStore: store,
	}
	if cfg.Retry.Enabled {
		template.Retry = &retry.Config{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Strategy:     retry.StrategyExponential,
			Multiplier:   2,
		}
	}

	var sources ChainCredentials
	if vault != nil {
		sources = append(sources, vault)
	}
	sources = append(sources, EnvCredentials{})

	return New(
		WithTemplate(template),
		WithCredentialSource(sources),
		WithEnabled(cfg.Exchanges.Enabled...),
	)
}

// GetClient returns the cached client for exchange, building it on first use.
func (f *Factory) GetClient(ctx context.Context, exchange string) (exchanges.Exchange, error) {
	f.mu.RLock()
	if client, ok := f.clients[exchange]; ok {
		f.mu.RUnlock()
		return client, nil
	}
	f.mu.RUnlock()

	if !f.isEnabled(exchange) {
		return nil, errors.Wrapf(errors.ErrUnknownExchange, "%s", exchange)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring lock
	if client, ok := f.clients[exchange]; ok {
		return client, nil
	}

	cfg := f.template
	cfg.Credentials = exchanges.Credentials{}
	if f.creds != nil {
		creds, ok, err := f.creds.Credentials(ctx, exchange)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve credentials for %s", exchange)
		}
		if ok {
			cfg.Credentials = creds
		}
	}

	build, _ := Lookup(exchange)
	client, err := build(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s client", exchange)
	}

	f.clients[exchange] = client
	f.log.Infow("Created exchange client",
		"exchange", exchange,
		"authenticated", !cfg.Credentials.Empty(),
	)
	return client, nil
}

// Clients builds every enabled client. Failures are collected and the
// clients that could be built are still returned.
func (f *Factory) Clients(ctx context.Context) (map[string]exchanges.Exchange, error) {
	out := make(map[string]exchanges.Exchange, len(f.enabled))
	var errs errors.MultiError
	for _, id := range f.enabled {
		client, err := f.GetClient(ctx, id)
		if err != nil {
			errs.Add(err)
			continue
		}
		out[id] = client
	}
	return out, errs.ToError()
}

// Invalidate drops the cached client so the next GetClient picks up
// rotated credentials.
func (f *Factory) Invalidate(exchange string) {
	f.mu.Lock()
	delete(f.clients, exchange)
	f.mu.Unlock()
}

// ListExchanges returns the enabled exchange ids.
func (f *Factory) ListExchanges() []string {
	return append([]string(nil), f.enabled...)
}

func (f *Factory) isEnabled(exchange string) bool {
	for _, id := range f.enabled {
		if id == exchange {
			return true
		}
	}
	return false
}

// EnvCredentials reads EXCHANGE_<ID>_* environment variables.
type EnvCredentials struct{}

func (EnvCredentials) Credentials(_ context.Context, exchange string) (exchanges.Credentials, bool, error) {
	c, err := config.CredentialsFor(exchange)
	if err != nil {
		return exchanges.Credentials{}, false, err
	}
	if c.Empty() {
		return exchanges.Credentials{}, false, nil
	}
	return exchanges.Credentials{
		APIKey:   c.APIKey,
		Secret:   c.Secret,
		UID:      c.UID,
		Password: c.Password,
	}, true, nil
}

// ChainCredentials asks each source in order; the first hit wins.
type ChainCredentials []exchanges.CredentialSource

func (c ChainCredentials) Credentials(ctx context.Context, exchange string) (exchanges.Credentials, bool, error) {
	for _, src := range c {
		creds, ok, err := src.Credentials(ctx, exchange)
		if err != nil {
			return exchanges.Credentials{}, false, err
		}
		if ok {
			return creds, true, nil
		}
	}
	return exchanges.Credentials{}, false, nil
}

// StaticCredentials serves a fixed map, mainly for the CLI and tests.
type StaticCredentials map[string]exchanges.Credentials

func (s StaticCredentials) Credentials(_ context.Context, exchange string) (exchanges.Credentials, bool, error) {
	c, ok := s[exchange]
	return c, ok && !c.Empty(), nil
}
