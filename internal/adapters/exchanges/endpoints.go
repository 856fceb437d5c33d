package exchanges

import (
	"context"
	"encoding/json"
	"net/http"
)

// Access separates unauthenticated endpoints from signed ones.
type Access string

const (
	Public  Access = "public"
	Private Access = "private"
)

// Operation names one bound endpoint of an adapter.
type Operation string

// Operations shared by most adapters. Adapters declare their own for the rest.
const (
	OpFetchTime         Operation = "fetchTime"
	OpFetchMarkets      Operation = "fetchMarkets"
	OpFetchTicker       Operation = "fetchTicker"
	OpFetchTickers      Operation = "fetchTickers"
	OpFetchOrderBook    Operation = "fetchOrderBook"
	OpFetchTrades       Operation = "fetchTrades"
	OpFetchOHLCV        Operation = "fetchOHLCV"
	OpFetchBalance      Operation = "fetchBalance"
	OpCreateOrder       Operation = "createOrder"
	OpCancelOrder       Operation = "cancelOrder"
	OpFetchOrder        Operation = "fetchOrder"
	OpFetchOrders       Operation = "fetchOrders"
	OpFetchOpenOrders   Operation = "fetchOpenOrders"
	OpFetchClosedOrders Operation = "fetchClosedOrders"
	OpFetchMyTrades     Operation = "fetchMyTrades"
)

// Endpoint declares how an operation reaches the exchange. Group is an
// adapter-defined routing hint such as a host or path prefix. Only
// Idempotent endpoints are retried.
type Endpoint struct {
	Access     Access
	Method     string
	Path       string
	Group      string
	Idempotent bool
}

// Get declares a public GET endpoint.
func Get(path string) Endpoint {
	return Endpoint{Access: Public, Method: http.MethodGet, Path: path, Idempotent: true}
}

// PrivateGet declares a signed GET endpoint.
func PrivateGet(path string) Endpoint {
	return Endpoint{Access: Private, Method: http.MethodGet, Path: path, Idempotent: true}
}

// PrivatePost declares a signed POST endpoint.
func PrivatePost(path string) Endpoint {
	return Endpoint{Access: Private, Method: http.MethodPost, Path: path}
}

// PrivateDelete declares a signed DELETE endpoint.
func PrivateDelete(path string) Endpoint {
	return Endpoint{Access: Private, Method: http.MethodDelete, Path: path}
}

// ReadOnly marks a POST endpoint that only reads state, so a failed
// attempt may be sent again.
func (e Endpoint) ReadOnly() Endpoint {
	e.Idempotent = true
	return e
}

// In returns a copy of e routed to group.
func (e Endpoint) In(group string) Endpoint {
	e.Group = group
	return e
}

// Call is the bound function behind one operation.
type Call func(ctx context.Context, params Params) ([]byte, error)

// API holds the bound calls of one adapter instance.
type API struct {
	exchange  string
	endpoints map[Operation]Endpoint
	calls     map[Operation]Call
}

// BindEndpoints binds every declared endpoint to the dispatcher of b.
func BindEndpoints(b *Base, endpoints map[Operation]Endpoint) *API {
	api := &API{
		exchange:  b.ID(),
		endpoints: make(map[Operation]Endpoint, len(endpoints)),
		calls:     make(map[Operation]Call, len(endpoints)),
	}
	for op, ep := range endpoints {
		op, ep := op, ep
		api.endpoints[op] = ep
		api.calls[op] = func(ctx context.Context, params Params) ([]byte, error) {
			return b.Fetch(ctx, op, ep, params)
		}
	}
	return api
}

// Has reports whether the operation is bound.
func (a *API) Has(op Operation) bool {
	_, ok := a.calls[op]
	return ok
}

// Endpoint returns the declaration behind op.
func (a *API) Endpoint(op Operation) (Endpoint, bool) {
	ep, ok := a.endpoints[op]
	return ep, ok
}

// Operations lists the bound operations.
func (a *API) Operations() []Operation {
	ops := make([]Operation, 0, len(a.calls))
	for op := range a.calls {
		ops = append(ops, op)
	}
	return ops
}

// Call invokes op and returns the raw response body.
func (a *API) Call(ctx context.Context, op Operation, params Params) ([]byte, error) {
	call, ok := a.calls[op]
	if !ok {
		return nil, Errorf(KindNotSupported, a.exchange, "%s is not supported", op)
	}
	return call(ctx, params)
}

// CallJSON invokes op and decodes the response into target.
func (a *API) CallJSON(ctx context.Context, op Operation, params Params, target any) error {
	body, err := a.Call(ctx, op, params)
	if err != nil {
		return err
	}
	return a.Decode(body, target)
}

// Decode unmarshals body, reporting malformed payloads as ExchangeError.
func (a *API) Decode(body []byte, target any) error {
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		e := Errorf(KindExchange, a.exchange, "malformed response: %v", err).WithBody(string(body))
		e.Err = err
		return e
	}
	return nil
}
