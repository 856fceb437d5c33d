package exchanges

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// MarketType classifies the instrument behind a market.
type MarketType string

const (
	MarketTypeSpot   MarketType = "spot"
	MarketTypeSwap   MarketType = "swap"
	MarketTypeFuture MarketType = "future"
)

// PrecisionMode tells downstream rounding how to read Precision values.
type PrecisionMode string

const (
	// PrecisionDecimalPlaces means Amount/Price hold a count of decimal digits.
	PrecisionDecimalPlaces PrecisionMode = "decimal_places"
	// PrecisionTickSize means Amount/Price hold the smallest representable increment.
	PrecisionTickSize PrecisionMode = "tick_size"
)

// Side is the direction of a trade or order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType is the unified order type. Exchange types without a unified
// counterpart are passed through lower-cased.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus is the normalized order lifecycle state.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusCanceling OrderStatus = "canceling"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether no further transitions are expected.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusClosed, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Liquidity is the taker/maker role of a fill.
type Liquidity string

const (
	Taker Liquidity = "taker"
	Maker Liquidity = "maker"
)

// MinMax is an optional numeric range. Undefined bounds are unknown, not zero.
type MinMax struct {
	Min decimal.NullDecimal `json:"min"`
	Max decimal.NullDecimal `json:"max"`
}

// Limits groups trading bounds of a market.
type Limits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

// Precision holds amount/price precision tagged with its interpretation.
type Precision struct {
	Mode   PrecisionMode       `json:"mode"`
	Amount decimal.NullDecimal `json:"amount"`
	Price  decimal.NullDecimal `json:"price"`
}

// Market is a tradeable instrument on one exchange.
type Market struct {
	ID        string              `json:"id"`
	Symbol    string              `json:"symbol"`
	Base      string              `json:"base"`
	Quote     string              `json:"quote"`
	BaseID    string              `json:"baseId"`
	QuoteID   string              `json:"quoteId"`
	Active    bool                `json:"active"`
	Type      MarketType          `json:"type"`
	Settle    string              `json:"settle,omitempty"`
	SettleID  string              `json:"settleId,omitempty"`
	Precision Precision           `json:"precision"`
	Limits    Limits              `json:"limits"`
	Maker     decimal.NullDecimal `json:"maker"`
	Taker     decimal.NullDecimal `json:"taker"`
	Info      json.RawMessage     `json:"info,omitempty"`
}

// Ticker is a price/volume snapshot of a market.
type Ticker struct {
	Symbol        string              `json:"symbol"`
	Timestamp     time.Time           `json:"timestamp"`
	High          decimal.NullDecimal `json:"high"`
	Low           decimal.NullDecimal `json:"low"`
	Bid           decimal.NullDecimal `json:"bid"`
	BidVolume     decimal.NullDecimal `json:"bidVolume"`
	Ask           decimal.NullDecimal `json:"ask"`
	AskVolume     decimal.NullDecimal `json:"askVolume"`
	VWAP          decimal.NullDecimal `json:"vwap"`
	Open          decimal.NullDecimal `json:"open"`
	Close         decimal.NullDecimal `json:"close"`
	Last          decimal.NullDecimal `json:"last"`
	PreviousClose decimal.NullDecimal `json:"previousClose"`
	Change        decimal.NullDecimal `json:"change"`
	Percentage    decimal.NullDecimal `json:"percentage"`
	Average       decimal.NullDecimal `json:"average"`
	BaseVolume    decimal.NullDecimal `json:"baseVolume"`
	QuoteVolume   decimal.NullDecimal `json:"quoteVolume"`
	Info          json.RawMessage     `json:"info,omitempty"`
}

// PriceLevel is one [price, amount] entry of an order book side.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderBook holds both sides of a book in source order.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
	Nonce     int64        `json:"nonce,omitempty"`
}

// Fee is a charged or computed trading fee.
type Fee struct {
	Cost     decimal.NullDecimal `json:"cost"`
	Currency string              `json:"currency"`
	Rate     decimal.NullDecimal `json:"rate"`
}

// Trade is a single public trade or private fill.
type Trade struct {
	ID           string              `json:"id"`
	Order        string              `json:"order,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
	Symbol       string              `json:"symbol"`
	Type         OrderType           `json:"type,omitempty"`
	Side         Side                `json:"side,omitempty"`
	TakerOrMaker Liquidity           `json:"takerOrMaker,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	Amount       decimal.NullDecimal `json:"amount"`
	Cost         decimal.NullDecimal `json:"cost"`
	Fee          *Fee                `json:"fee,omitempty"`
	Info         json.RawMessage     `json:"info,omitempty"`
}

// Order is a standing or historical order.
type Order struct {
	ID                 string              `json:"id"`
	ClientOrderID      string              `json:"clientOrderId,omitempty"`
	Timestamp          time.Time           `json:"timestamp"`
	LastTradeTimestamp time.Time           `json:"lastTradeTimestamp"`
	Symbol             string              `json:"symbol"`
	Type               OrderType           `json:"type"`
	Side               Side                `json:"side"`
	Price              decimal.NullDecimal `json:"price"`
	Amount             decimal.NullDecimal `json:"amount"`
	Filled             decimal.NullDecimal `json:"filled"`
	Remaining          decimal.NullDecimal `json:"remaining"`
	Cost               decimal.NullDecimal `json:"cost"`
	Average            decimal.NullDecimal `json:"average"`
	Status             OrderStatus         `json:"status"`
	Fee                *Fee                `json:"fee,omitempty"`
	Trades             []*Trade            `json:"trades,omitempty"`
	Info               json.RawMessage     `json:"info,omitempty"`
}

// Balance is the holding of one currency.
type Balance struct {
	Free  decimal.NullDecimal `json:"free"`
	Used  decimal.NullDecimal `json:"used"`
	Total decimal.NullDecimal `json:"total"`
}

// Balances maps currency codes to holdings.
type Balances struct {
	Currencies map[string]Balance `json:"currencies"`
	Timestamp  time.Time          `json:"timestamp"`
	Info       json.RawMessage    `json:"info,omitempty"`
}

// OHLCV is one candle.
type OHLCV struct {
	Timestamp time.Time           `json:"timestamp"`
	Open      decimal.NullDecimal `json:"open"`
	High      decimal.NullDecimal `json:"high"`
	Low       decimal.NullDecimal `json:"low"`
	Close     decimal.NullDecimal `json:"close"`
	Volume    decimal.NullDecimal `json:"volume"`
}

// OrderRequest describes an order to place.
type OrderRequest struct {
	Symbol        string
	Type          OrderType
	Side          Side
	Amount        decimal.Decimal
	Price         decimal.NullDecimal
	StopPrice     decimal.NullDecimal
	ClientOrderID string
	TimeInForce   string
	// Params are merged into the exchange request verbatim.
	Params Params
}

// Credentials authenticate private endpoints.
type Credentials struct {
	APIKey   string
	Secret   string
	UID      string
	Password string
}

// Empty reports whether no credential material is set.
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.Secret == ""
}
