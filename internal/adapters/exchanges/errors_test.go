package exchanges

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"exconnect/pkg/errors"
)

func TestError_IsMatchesAncestors(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		target error
		want   bool
	}{
		{"same kind", KindOrderNotFound, ErrOrderNotFound, true},
		{"parent kind", KindOrderNotFound, ErrInvalidOrder, true},
		{"root kind", KindPermissionDenied, ErrExchange, true},
		{"auth parent", KindPermissionDenied, ErrAuthentication, true},
		{"network parent", KindDDoSProtection, ErrNetwork, true},
		{"sibling", KindDDoSProtection, ErrExchangeNotAvailable, false},
		{"child does not match parent error", KindInvalidOrder, ErrOrderNotFound, false},
		{"domain sentinel", KindInsufficientFunds, errors.ErrInsufficientBalance, true},
		{"domain sentinel via ancestor", KindPermissionDenied, errors.ErrUnauthorized, true},
		{"bad symbol domain", KindBadSymbol, errors.ErrInvalidSymbol, true},
		{"bad symbol also invalid input", KindBadSymbol, errors.ErrInvalidInput, true},
		{"unrelated sentinel", KindAuthentication, errors.ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewError(tt.kind, "test", "boom"))
			assert.Equal(t, tt.want, errors.Is(err, tt.target))
		})
	}
}

func TestError_Retryable(t *testing.T) {
	assert.True(t, NewError(KindDDoSProtection, "x", "").Retryable())
	assert.True(t, NewError(KindExchangeNotAvailable, "x", "").Retryable())
	assert.True(t, NewError(KindNetwork, "x", "").Retryable())
	assert.False(t, NewError(KindInvalidNonce, "x", "").Retryable())
	assert.False(t, NewError(KindInsufficientFunds, "x", "").Retryable())
}

func TestError_MessageAndKindOf(t *testing.T) {
	err := NewError(KindBadSymbol, "felixo", "no quote").WithBody(`{"error":"x"}`)
	assert.Equal(t, "BadSymbol: felixo no quote", err.Error())
	assert.Equal(t, `{"error":"x"}`, err.Body)
	assert.Equal(t, KindBadSymbol, KindOf(errors.Wrap(err, "ctx")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorTable_ExactBeatsBroad(t *testing.T) {
	table := ErrorTable{
		Exact: map[string]Kind{
			"Invalid API key": KindAuthentication,
		},
		Broad: []BroadRule{
			{Substring: "Invalid", Kind: KindBadRequest},
			{Substring: "API key", Kind: KindPermissionDenied},
		},
	}

	k, ok := table.Match("Invalid API key")
	assert.True(t, ok)
	assert.Equal(t, KindAuthentication, k)

	k, ok = table.Match("Invalid API key format")
	assert.True(t, ok)
	assert.Equal(t, KindBadRequest, k, "first broad rule in declaration order wins")

	_, ok = table.Match("something else")
	assert.False(t, ok)

	err := table.Raise("ex", `{"error":"something else"}`, "something else")
	assert.Equal(t, KindExchange, err.Kind)
	assert.Equal(t, "ex", err.Exchange)
	assert.Equal(t, `{"error":"something else"}`, err.Body)
}

func TestErrorTable_ExactOnAnyKeyBeforeBroad(t *testing.T) {
	table := ErrorTable{
		Exact: map[string]Kind{"3002": KindOrderNotFound},
		Broad: []BroadRule{{Substring: "order", Kind: KindInvalidOrder}},
	}
	k, ok := table.Match("order does not exist", "3002")
	assert.True(t, ok)
	assert.Equal(t, KindOrderNotFound, k)
}

func TestHTTPStatusKind(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
		ok     bool
	}{
		{http.StatusTooManyRequests, KindDDoSProtection, true},
		{http.StatusTeapot, KindDDoSProtection, true},
		{http.StatusUnauthorized, KindAuthentication, true},
		{http.StatusNetworkAuthenticationRequired, KindAuthentication, true},
		{http.StatusForbidden, KindPermissionDenied, true},
		{http.StatusNotFound, KindExchangeNotAvailable, true},
		{http.StatusBadGateway, KindExchangeNotAvailable, true},
		{522, KindExchangeNotAvailable, true},
		{http.StatusBadRequest, KindExchange, true},
		{http.StatusOK, "", false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			k, ok := HTTPStatusKind(tt.status)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestNestedMessage(t *testing.T) {
	assert.Equal(t, "Invalid symbol.", NestedMessage(`{"code":-1121,"msg":"Invalid symbol."}`))
	assert.Equal(t, "plain text", NestedMessage("plain text"))
	assert.Equal(t, "{broken", NestedMessage("{broken"))
}
