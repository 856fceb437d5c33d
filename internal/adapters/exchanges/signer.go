package exchanges

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/http"
)

// Request is a fully prepared HTTP request.
type Request struct {
	Method  string
	URL     string
	Body    string
	Headers http.Header
}

// Signer turns an endpoint call into a wire request. Public endpoints are
// prepared unauthenticated; private ones carry the exchange's signature.
type Signer interface {
	Sign(ep Endpoint, path string, params Params) (*Request, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ep Endpoint, path string, params Params) (*Request, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ep Endpoint, path string, params Params) (*Request, error) {
	return f(ep, path, params)
}

// ErrorHandler inspects a response and returns a categorized error, or nil
// to let default HTTP status mapping decide.
type ErrorHandler interface {
	HandleError(status int, body []byte) error
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(status int, body []byte) error

// HandleError implements ErrorHandler.
func (f ErrorHandlerFunc) HandleError(status int, body []byte) error {
	return f(status, body)
}

// NewRequest builds a request with an initialized header map.
func NewRequest(method, url string) *Request {
	return &Request{Method: method, URL: url, Headers: http.Header{}}
}

// HMACHex signs payload with secret and returns the hex digest.
func HMACHex(h func() hash.Hash, secret, payload string) string {
	mac := hmac.New(h, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACBase64 signs payload with secret and returns the base64 digest.
func HMACBase64(h func() hash.Hash, secret, payload string) string {
	mac := hmac.New(h, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// HMACSHA256 returns the hex HMAC-SHA256 of payload.
func HMACSHA256(secret, payload string) string {
	return HMACHex(sha256.New, secret, payload)
}

// HMACSHA512 returns the hex HMAC-SHA512 of payload.
func HMACSHA512(secret, payload string) string {
	return HMACHex(sha512.New, secret, payload)
}

// MD5Hex returns the hex MD5 digest of payload.
func MD5Hex(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// BasicAuth returns the value of an Authorization header for key:secret.
func BasicAuth(key, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
}
