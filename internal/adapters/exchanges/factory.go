package exchanges

import (
	"context"
)

// Constructor builds an adapter from configuration.
type Constructor func(cfg Config) (Exchange, error)

// Factory hands out shared adapter instances by exchange id.
type Factory interface {
	GetClient(ctx context.Context, exchange string) (Exchange, error)
	ListExchanges() []string
}

// CredentialSource resolves API credentials for an exchange. ok is false
// when none are stored.
type CredentialSource interface {
	Credentials(ctx context.Context, exchange string) (creds Credentials, ok bool, err error)
}
