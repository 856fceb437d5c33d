package exchanges

import (
	"fmt"

	"exconnect/pkg/errors"
)

// Kind is the category of an exchange failure.
type Kind string

const (
	KindExchange             Kind = "ExchangeError"
	KindAuthentication       Kind = "AuthenticationError"
	KindPermissionDenied     Kind = "PermissionDenied"
	KindInsufficientFunds    Kind = "InsufficientFunds"
	KindInvalidOrder         Kind = "InvalidOrder"
	KindOrderNotFound        Kind = "OrderNotFound"
	KindBadRequest           Kind = "BadRequest"
	KindBadSymbol            Kind = "BadSymbol"
	KindArgumentsRequired    Kind = "ArgumentsRequired"
	KindNotSupported         Kind = "NotSupported"
	KindInvalidAddress       Kind = "InvalidAddress"
	KindAddressPending       Kind = "AddressPending"
	KindNetwork              Kind = "NetworkError"
	KindDDoSProtection       Kind = "DDoSProtection"
	KindExchangeNotAvailable Kind = "ExchangeNotAvailable"
	KindInvalidNonce         Kind = "InvalidNonce"
)

// parents encodes the taxonomy tree; a kind matches every ancestor.
var parents = map[Kind]Kind{
	KindAuthentication:       KindExchange,
	KindPermissionDenied:     KindAuthentication,
	KindInsufficientFunds:    KindExchange,
	KindInvalidOrder:         KindExchange,
	KindOrderNotFound:        KindInvalidOrder,
	KindBadRequest:           KindExchange,
	KindBadSymbol:            KindBadRequest,
	KindArgumentsRequired:    KindExchange,
	KindNotSupported:         KindExchange,
	KindInvalidAddress:       KindExchange,
	KindAddressPending:       KindInvalidAddress,
	KindDDoSProtection:       KindNetwork,
	KindExchangeNotAvailable: KindNetwork,
	KindInvalidNonce:         KindNetwork,
}

// domain links kinds to the generic sentinels in pkg/errors.
var domain = map[Kind]error{
	KindAuthentication:       errors.ErrUnauthorized,
	KindPermissionDenied:     errors.ErrForbidden,
	KindInsufficientFunds:    errors.ErrInsufficientBalance,
	KindInvalidOrder:         errors.ErrOrderRejected,
	KindOrderNotFound:        errors.ErrNotFound,
	KindBadRequest:           errors.ErrInvalidInput,
	KindBadSymbol:            errors.ErrInvalidSymbol,
	KindArgumentsRequired:    errors.ErrInvalidInput,
	KindDDoSProtection:       errors.ErrRateLimitExceeded,
	KindExchangeNotAvailable: errors.ErrExchangeUnavailable,
}

// Sentinels for errors.Is checks against a category.
var (
	ErrExchange             = &Error{Kind: KindExchange}
	ErrAuthentication       = &Error{Kind: KindAuthentication}
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds}
	ErrInvalidOrder         = &Error{Kind: KindInvalidOrder}
	ErrOrderNotFound        = &Error{Kind: KindOrderNotFound}
	ErrBadRequest           = &Error{Kind: KindBadRequest}
	ErrBadSymbol            = &Error{Kind: KindBadSymbol}
	ErrArgumentsRequired    = &Error{Kind: KindArgumentsRequired}
	ErrNotSupported         = &Error{Kind: KindNotSupported}
	ErrInvalidAddress       = &Error{Kind: KindInvalidAddress}
	ErrAddressPending       = &Error{Kind: KindAddressPending}
	ErrNetwork              = &Error{Kind: KindNetwork}
	ErrDDoSProtection       = &Error{Kind: KindDDoSProtection}
	ErrExchangeNotAvailable = &Error{Kind: KindExchangeNotAvailable}
	ErrInvalidNonce         = &Error{Kind: KindInvalidNonce}
)

// Error is a categorized exchange failure. Body keeps the raw response for diagnosis.
type Error struct {
	Kind     Kind
	Exchange string
	Message  string
	Body     string
	Err      error
}

// NewError builds a categorized error.
func NewError(kind Kind, exchange, message string) *Error {
	return &Error{Kind: kind, Exchange: exchange, Message: message}
}

// Errorf builds a categorized error with a formatted message.
func Errorf(kind Kind, exchange, format string, args ...interface{}) *Error {
	return NewError(kind, exchange, fmt.Sprintf(format, args...))
}

// WithBody attaches the raw response body.
func (e *Error) WithBody(body string) *Error {
	e.Body = body
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Exchange == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Exchange, msg)
}

// Unwrap exposes the transport cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a sentinel of the same kind or of any ancestor kind, and the
// generic pkg/errors sentinel mapped to the kind or its ancestors.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind.Within(t.Kind)
	}
	for k := e.Kind; k != ""; k = parents[k] {
		if s, ok := domain[k]; ok && s == target {
			return true
		}
	}
	return false
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Kind.Within(KindNetwork) && e.Kind != KindInvalidNonce
}

// Within reports whether k equals ancestor or descends from it.
func (k Kind) Within(ancestor Kind) bool {
	for cur := k; cur != ""; cur = parents[cur] {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// KindOf extracts the category of err, or "" when err is not an exchange error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
