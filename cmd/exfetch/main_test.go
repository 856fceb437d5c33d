package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/exchangetest"
	"exconnect/internal/adapters/exchanges/tradeogre"
	"exconnect/pkg/errors"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"markets", []string{"-exchange", "bcio"}, nil},
		{"missing exchange", []string{"-op", "ticker"}, errors.ErrInvalidInput},
		{"unknown exchange", []string{"-exchange", "mtgox"}, errors.ErrUnknownExchange},
		{"ticker needs symbol", []string{"-exchange", "felixo", "-op", "ticker"}, errors.ErrInvalidInput},
		{"stream without exchange", []string{"-op", "stream"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestCallUnknownOp(t *testing.T) {
	srv := exchangetest.NewServer(t)
	ex, err := tradeogre.New(exchangetest.Config(srv, exchanges.Credentials{}))
	require.NoError(t, err)

	_, _, err = call(context.Background(), ex, options{op: "nope"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
