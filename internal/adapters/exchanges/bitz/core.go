// Package bitz holds the request machinery shared by the Bit-Z family of
// adapters: host selection, the Market/Contract route prefixes, MD5 form
// signing and the {status, msg, data, microtime} envelope.
package bitz

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
)

// DefaultHostname is used unless the "hostname" option picks a mirror.
const DefaultHostname = "apiv2.bitz.com"

// HostTemplate is the descriptor base URL of every Bit-Z adapter.
const HostTemplate = "https://{hostname}"

// Route prefixes. Endpoints carry one of these as their group.
const (
	Market   = "Market"
	Contract = "Contract"
	Trade    = "Trade"
	Assets   = "Assets"
)

const statusOK = "200"

// Errors maps envelope status codes to failure kinds.
var Errors = exchanges.ErrorTable{
	Exact: map[string]exchanges.Kind{
		"-102":    exchanges.KindExchange,
		"-103":    exchanges.KindAuthentication,
		"-104":    exchanges.KindExchangeNotAvailable,
		"-105":    exchanges.KindAuthentication,
		"-106":    exchanges.KindExchangeNotAvailable,
		"-109":    exchanges.KindAuthentication,
		"-110":    exchanges.KindDDoSProtection,
		"-111":    exchanges.KindPermissionDenied,
		"-112":    exchanges.KindExchangeNotAvailable,
		"-114":    exchanges.KindDDoSProtection,
		"-117":    exchanges.KindAuthentication,
		"-100015": exchanges.KindAuthentication,
		"-100044": exchanges.KindExchange,
		"-100101": exchanges.KindBadSymbol,
		"-100201": exchanges.KindBadSymbol,
		"-100301": exchanges.KindBadSymbol,
		"-100401": exchanges.KindBadSymbol,
		"-100302": exchanges.KindBadRequest,
		"-100303": exchanges.KindBadRequest,
		"-200003": exchanges.KindAuthentication,
		"-200005": exchanges.KindPermissionDenied,
		"-200025": exchanges.KindExchangeNotAvailable,
		"-200027": exchanges.KindInvalidOrder,
		"-200028": exchanges.KindInvalidOrder,
		"-200029": exchanges.KindInvalidOrder,
		"-200030": exchanges.KindInvalidOrder,
		"-200031": exchanges.KindInsufficientFunds,
		"-200032": exchanges.KindExchange,
		"-200033": exchanges.KindExchange,
		"-200034": exchanges.KindOrderNotFound,
		"-200035": exchanges.KindOrderNotFound,
		"-200037": exchanges.KindInvalidOrder,
		"-200038": exchanges.KindExchange,
		"-200055": exchanges.KindOrderNotFound,
		"-300069": exchanges.KindAuthentication,
		"-300101": exchanges.KindExchange,
		"-300102": exchanges.KindInvalidOrder,
		"-300103": exchanges.KindAuthentication,
		"-301001": exchanges.KindExchangeNotAvailable,
	},
}

// Envelope is the wrapper around every Bit-Z response.
type Envelope struct {
	Status    exchanges.Text   `json:"status"`
	Msg       exchanges.Text   `json:"msg"`
	Data      json.RawMessage  `json:"data"`
	Time      exchanges.Number `json:"time"`
	Microtime exchanges.Text   `json:"microtime"`
}

// Timestamp is the server time of the response.
func (e *Envelope) Timestamp() time.Time {
	if t := ParseMicrotime(e.Microtime.String()); !t.IsZero() {
		return t
	}
	return exchanges.Seconds(e.Time.NullDecimal)
}

// ParseMicrotime reads "0.23065700 1532671288" (fraction, then seconds)
// into a millisecond timestamp. Malformed input yields the zero time.
func ParseMicrotime(s string) time.Time {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return time.Time{}
	}
	frac := exchanges.ParseDecimal(parts[0])
	secs := exchanges.ParseDecimal(parts[1])
	if !frac.Valid || !secs.Valid {
		return time.Time{}
	}
	ms := secs.Decimal.Add(frac.Decimal).Mul(decimal.NewFromInt(1000)).Floor()
	return time.UnixMilli(ms.IntPart()).UTC()
}

// Core is embedded by Bit-Z adapters in place of a bare exchanges.Base.
type Core struct {
	*exchanges.Base

	hostname string

	mu        sync.Mutex
	nonceSec  int64
	nonceLast int64
}

// NewCore builds the shared dispatcher. markets is the adapter's market
// loader.
func NewCore(desc exchanges.Descriptor, cfg exchanges.Config, markets func(ctx context.Context) ([]*exchanges.Market, error)) *Core {
	if desc.BaseURL == "" {
		desc.BaseURL = HostTemplate
	}
	core := &Core{hostname: DefaultHostname}
	if h, ok := cfg.Options["hostname"].(string); ok && h != "" {
		core.hostname = h
	}
	core.Base = exchanges.NewBase(desc, cfg, exchanges.Hooks{
		Signer:  exchanges.SignerFunc(core.Sign),
		Errors:  exchanges.ErrorHandlerFunc(core.HandleError),
		Markets: markets,
	})
	return core
}

// Hostname returns the API host in use.
func (c *Core) Hostname() string { return c.hostname }

// Host returns the scheme and host requests are sent to.
func (c *Core) Host() string {
	if c.Overridden() {
		return c.BaseURL()
	}
	return strings.ReplaceAll(HostTemplate, "{hostname}", c.hostname)
}

// nonce is a six-digit counter that restarts at 100000 every second.
func (c *Core) nonce() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec := c.Clock().Seconds()
	if sec > c.nonceSec {
		c.nonceSec = sec
		c.nonceLast = 100000
	}
	c.nonceLast++
	return c.nonceLast
}

// Sign routes the call to <host>/<group>/<path>. Public calls carry a
// query string. Private calls post the key-sorted form with apiKey,
// timeStamp and nonce, followed by sign=md5(form + secret).
func (c *Core) Sign(ep exchanges.Endpoint, path string, params exchanges.Params) (*exchanges.Request, error) {
	url := c.Host() + "/"
	if ep.Group != "" {
		url += ep.Group + "/"
	}
	url += strings.TrimLeft(path, "/")

	if ep.Access == exchanges.Public {
		if len(params) > 0 {
			url += "?" + params.Encode()
		}
		return exchanges.NewRequest(ep.Method, url), nil
	}

	creds := c.Credentials()
	body := exchanges.Params{
		"apiKey":    creds.APIKey,
		"timeStamp": c.Clock().Seconds(),
		"nonce":     c.nonce(),
	}.Extend(params).EncodeRaw()
	body += "&sign=" + exchanges.MD5Hex(body+creds.Secret)

	method := ep.Method
	if method == "" {
		method = http.MethodPost
	}
	req := exchanges.NewRequest(method, url)
	req.Body = body
	req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// HandleError raises on any envelope status other than 200.
func (c *Core) HandleError(status int, body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Status == "" || env.Status == statusOK {
		return nil
	}
	return Errors.Raise(c.ID(), string(body), env.Status.String())
}

// Call invokes op through api and unwraps the envelope.
func (c *Core) Call(ctx context.Context, api *exchanges.API, op exchanges.Operation, params exchanges.Params) (*Envelope, error) {
	var env Envelope
	if err := api.CallJSON(ctx, op, params, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ContractID converts a market id to the integer the API expects.
func (c *Core) ContractID(m *exchanges.Market) (int64, error) {
	id, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		return 0, exchanges.Errorf(exchanges.KindBadSymbol, c.ID(), "market id %q is not numeric", m.ID)
	}
	return id, nil
}

// List reads data that is either a bare array or an object holding the
// array under one of keys.
func List(data json.RawMessage, keys ...string) []json.RawMessage {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var rows []json.RawMessage
		if err := json.Unmarshal(data, &rows); err == nil {
			return rows
		}
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			var rows []json.RawMessage
			if err := json.Unmarshal(raw, &rows); err == nil {
				return rows
			}
		}
	}
	return nil
}
