package exchangefactory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

type credentialed interface {
	Credentials() exchanges.Credentials
}

type failingSource struct{}

func (failingSource) Credentials(context.Context, string) (exchanges.Credentials, bool, error) {
	return exchanges.Credentials{}, false, errors.ErrUnavailable
}

func TestRegistryBuildsEveryExchange(t *testing.T) {
	ids := Supported()
	require.Len(t, ids, 11)
	assert.Equal(t, "58coin", ids[0])

	f, err := New(WithTemplate(exchanges.Config{Logger: logger.Nop()}))
	require.NoError(t, err)

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			client, err := f.GetClient(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, id, client.ID())
		})
	}
}

func TestGetClientCaches(t *testing.T) {
	f, err := New(WithEnabled("bcio"))
	require.NoError(t, err)

	a, err := f.GetClient(context.Background(), "bcio")
	require.NoError(t, err)
	b, err := f.GetClient(context.Background(), "bcio")
	require.NoError(t, err)
	assert.Same(t, a, b)

	f.Invalidate("bcio")
	c, err := f.GetClient(context.Background(), "bcio")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestUnknownExchange(t *testing.T) {
	_, err := New(WithEnabled("kraken"))
	assert.True(t, errors.Is(err, errors.ErrUnknownExchange))

	f, err := New(WithEnabled("bcio"))
	require.NoError(t, err)
	_, err = f.GetClient(context.Background(), "tradeogre")
	assert.True(t, errors.Is(err, errors.ErrUnknownExchange))
	assert.Equal(t, []string{"bcio"}, f.ListExchanges())
}

func TestCredentialResolution(t *testing.T) {
	vault := StaticCredentials{"coinbene": {APIKey: "vault-key", Secret: "vault-secret"}}
	env := StaticCredentials{
		"coinbene":  {APIKey: "env-key", Secret: "env-secret"},
		"tradeogre": {APIKey: "ogre", Secret: "s"},
	}

	f, err := New(WithCredentialSource(ChainCredentials{vault, env}))
	require.NoError(t, err)

	tests := []struct {
		exchange string
		want     string
	}{
		{"coinbene", "vault-key"},
		{"tradeogre", "ogre"},
		{"felixo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.exchange, func(t *testing.T) {
			client, err := f.GetClient(context.Background(), tt.exchange)
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.(credentialed).Credentials().APIKey)
		})
	}
}

func TestCredentialSourceError(t *testing.T) {
	f, err := New(WithCredentialSource(failingSource{}))
	require.NoError(t, err)

	_, err = f.GetClient(context.Background(), "bcio")
	assert.True(t, errors.Is(err, errors.ErrUnavailable))

	clients, err := f.Clients(context.Background())
	assert.Empty(t, clients)
	var multi *errors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 11)
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("EXCHANGE_BITCLUDE_API_KEY", "id")
	t.Setenv("EXCHANGE_BITCLUDE_SECRET", "key")

	creds, ok, err := EnvCredentials{}.Credentials(context.Background(), "bitclude")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, exchanges.Credentials{APIKey: "id", Secret: "key"}, creds)

	_, ok, err = EnvCredentials{}.Credentials(context.Background(), "felixo")
	require.NoError(t, err)
	assert.False(t, ok)
}
