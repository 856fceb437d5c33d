package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/testsupport"
	"exconnect/pkg/crypto"
	"exconnect/pkg/errors"
)

func newTestRepository(t *testing.T) *CredentialRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	enc, err := crypto.NewEncryptor(strings.Repeat("k", 32))
	require.NoError(t, err)
	return NewCredentialRepository(testDB.Tx(), enc)
}

func TestCredentialRepository_SaveAndLoad(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, ok, err := repo.Credentials(ctx, "coinbene")
	require.NoError(t, err)
	assert.False(t, ok)

	want := exchanges.Credentials{APIKey: "key", Secret: "secret", UID: "7"}
	require.NoError(t, repo.Save(ctx, "coinbene", want))

	got, ok, err := repo.Credentials(ctx, "coinbene")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	rotated := exchanges.Credentials{APIKey: "key2", Secret: "secret2"}
	require.NoError(t, repo.Save(ctx, "coinbene", rotated))
	got, _, err = repo.Credentials(ctx, "coinbene")
	require.NoError(t, err)
	assert.Equal(t, rotated, got)

	ids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "coinbene")

	require.NoError(t, repo.Delete(ctx, "coinbene"))
	_, ok, err = repo.Credentials(ctx, "coinbene")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialRepository_SaveValidation(t *testing.T) {
	repo := NewCredentialRepository(nil, nil)

	tests := []struct {
		name     string
		exchange string
		creds    exchanges.Credentials
	}{
		{"no exchange", "", exchanges.Credentials{APIKey: "a", Secret: "b"}},
		{"no secret", "bcio", exchanges.Credentials{APIKey: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Save(context.Background(), tt.exchange, tt.creds)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}
