package exchanges

import (
	"encoding/json"
	"net/http"
	"strings"
)

// BroadRule maps a message substring to a kind.
type BroadRule struct {
	Substring string
	Kind      Kind
}

// ErrorTable is the two-tier lookup used to categorize exchange messages:
// exact string or code first, then substrings in declaration order.
type ErrorTable struct {
	Exact map[string]Kind
	Broad []BroadRule
}

// MatchExact returns the kind registered for the exact key.
func (t ErrorTable) MatchExact(key string) (Kind, bool) {
	if key == "" || t.Exact == nil {
		return "", false
	}
	k, ok := t.Exact[key]
	return k, ok
}

// MatchBroad returns the kind of the first rule whose substring occurs in message.
func (t ErrorTable) MatchBroad(message string) (Kind, bool) {
	if message == "" {
		return "", false
	}
	for _, rule := range t.Broad {
		if strings.Contains(message, rule.Substring) {
			return rule.Kind, true
		}
	}
	return "", false
}

// Match tries the exact tier, then the broad tier, on every key in order.
func (t ErrorTable) Match(keys ...string) (Kind, bool) {
	for _, key := range keys {
		if k, ok := t.MatchExact(key); ok {
			return k, true
		}
	}
	for _, key := range keys {
		if k, ok := t.MatchBroad(key); ok {
			return k, true
		}
	}
	return "", false
}

// Raise categorizes a reported failure, falling back to a generic
// ExchangeError. The raw body is always attached.
func (t ErrorTable) Raise(exchange, body string, keys ...string) *Error {
	kind, ok := t.Match(keys...)
	if !ok {
		kind = KindExchange
	}
	return NewError(kind, exchange, body).WithBody(body)
}

// HTTPStatusKind maps HTTP-level conditions. Rate limiting wins regardless of body.
func HTTPStatusKind(status int) (Kind, bool) {
	switch {
	case status == http.StatusTeapot || status == http.StatusTooManyRequests:
		return KindDDoSProtection, true
	case status == http.StatusUnauthorized || status == http.StatusNetworkAuthenticationRequired:
		return KindAuthentication, true
	case status == http.StatusForbidden:
		return KindPermissionDenied, true
	case status == http.StatusNotFound, status == http.StatusRequestTimeout,
		status >= 500 && status <= 504, status >= 520 && status <= 530:
		return KindExchangeNotAvailable, true
	case status >= 400:
		return KindExchange, true
	}
	return "", false
}

// NestedMessage returns the inner message when msg is itself a JSON object
// carrying "msg" or "message", otherwise msg unchanged.
func NestedMessage(msg string) string {
	trimmed := strings.TrimSpace(msg)
	if !strings.HasPrefix(trimmed, "{") {
		return msg
	}
	var inner struct {
		Msg     Text `json:"msg"`
		Message Text `json:"message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return msg
	}
	if inner.Msg != "" {
		return inner.Msg.String()
	}
	if inner.Message != "" {
		return inner.Message.String()
	}
	return msg
}
