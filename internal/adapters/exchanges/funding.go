package exchanges

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tells deposits from withdrawals.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus is the unified state of a deposit or withdrawal.
// Unknown exchange states pass through verbatim.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionOK       TransactionStatus = "ok"
	TransactionFailed   TransactionStatus = "failed"
	TransactionCanceled TransactionStatus = "canceled"
)

// Transaction is one deposit or withdrawal.
type Transaction struct {
	ID        string              `json:"id"`
	TxID      string              `json:"txid,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Address   string              `json:"address,omitempty"`
	Tag       string              `json:"tag,omitempty"`
	Type      TransactionType     `json:"type,omitempty"`
	Amount    decimal.NullDecimal `json:"amount"`
	Currency  string              `json:"currency"`
	Status    TransactionStatus   `json:"status,omitempty"`
	Fee       *Fee                `json:"fee,omitempty"`
	Info      json.RawMessage     `json:"info,omitempty"`
}

// DepositAddress is where funds of one currency are sent.
type DepositAddress struct {
	Currency string          `json:"currency"`
	Address  string          `json:"address"`
	Tag      string          `json:"tag,omitempty"`
	Info     json.RawMessage `json:"info,omitempty"`
}

// FundingFees are the flat deposit and withdrawal fees per currency code.
type FundingFees struct {
	Withdraw map[string]decimal.NullDecimal `json:"withdraw"`
	Deposit  map[string]decimal.NullDecimal `json:"deposit"`
	Info     json.RawMessage                `json:"info,omitempty"`
}

// WithdrawRequest describes a withdrawal to an external address.
type WithdrawRequest struct {
	Currency string
	Amount   decimal.Decimal
	Address  string
	Tag      string
	Params   Params
}

// Withdrawal is the exchange's acknowledgement of a withdraw request.
type Withdrawal struct {
	ID   string          `json:"id"`
	Info json.RawMessage `json:"info,omitempty"`
}

// StatusKind is the operational state an exchange reports for itself.
type StatusKind string

const (
	StatusOK          StatusKind = "ok"
	StatusMaintenance StatusKind = "maintenance"
)

// Status is the exchange's self-reported health.
type Status struct {
	Status  StatusKind `json:"status"`
	Updated time.Time  `json:"updated"`
}

// DepositsFetcher lists deposits, optionally of one currency code.
type DepositsFetcher interface {
	FetchDeposits(ctx context.Context, code string, since time.Time, limit int) ([]*Transaction, error)
}

// WithdrawalsFetcher lists withdrawals, optionally of one currency code.
type WithdrawalsFetcher interface {
	FetchWithdrawals(ctx context.Context, code string, since time.Time, limit int) ([]*Transaction, error)
}

// DepositAddressFetcher fetches the deposit address of a currency.
type DepositAddressFetcher interface {
	FetchDepositAddress(ctx context.Context, code string) (*DepositAddress, error)
}

// FundingFeesFetcher fetches deposit and withdrawal fees.
type FundingFeesFetcher interface {
	FetchFundingFees(ctx context.Context) (*FundingFees, error)
}

// Withdrawer sends funds to an external address.
type Withdrawer interface {
	Withdraw(ctx context.Context, req WithdrawRequest) (*Withdrawal, error)
}

// StatusFetcher reads the exchange's operational status.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (*Status, error)
}

// CheckAddress rejects empty addresses and addresses containing whitespace.
func CheckAddress(exchange, address string) error {
	if address == "" {
		return Errorf(KindInvalidAddress, exchange, "address is empty")
	}
	if strings.ContainsAny(address, " \t\r\n") {
		return Errorf(KindInvalidAddress, exchange, "address %q contains whitespace", address)
	}
	return nil
}

// FilterTransactions keeps transactions at or after since and caps the
// result at limit when positive.
func FilterTransactions(txs []*Transaction, since time.Time, limit int) []*Transaction {
	out := txs[:0]
	for _, tx := range txs {
		if tx == nil || (!since.IsZero() && tx.Timestamp.Before(since)) {
			continue
		}
		out = append(out, tx)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
