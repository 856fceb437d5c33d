package bcio

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exconnect/internal/adapters/exchanges"
)

// wapi is the endpoint group served by the wallet API. Its paths end in
// .html and every signed call carries the query string, even on POST.
const wapi = "wapi"

// Wallet operations.
const (
	OpSystemStatus   exchanges.Operation = "systemStatus"
	OpDepositHistory exchanges.Operation = "depositHistory"
	OpWithdrawList   exchanges.Operation = "withdrawHistory"
	OpDepositAddress exchanges.Operation = "depositAddress"
	OpAssetDetail    exchanges.Operation = "assetDetail"
	OpWithdraw       exchanges.Operation = "withdraw"
	OpDustLog        exchanges.Operation = "userAssetDribbletLog"
)

var walletEndpoints = map[exchanges.Operation]exchanges.Endpoint{
	OpSystemStatus:   exchanges.Get("systemStatus.html").In(wapi),
	OpDepositHistory: exchanges.PrivateGet("depositHistory.html").In(wapi),
	OpWithdrawList:   exchanges.PrivateGet("withdrawHistory.html").In(wapi),
	OpDepositAddress: exchanges.PrivateGet("depositAddress.html").In(wapi),
	OpAssetDetail:    exchanges.PrivateGet("assetDetail.html").In(wapi),
	OpDustLog:        exchanges.PrivateGet("userAssetDribbletLog.html").In(wapi),
	OpWithdraw:       exchanges.PrivatePost("withdraw.html").In(wapi),
}

// dustCurrency is what small balances are converted into.
const dustCurrency = "BNB"

var transactionStatuses = map[exchanges.TransactionType]map[string]exchanges.TransactionStatus{
	exchanges.TransactionDeposit: {
		"0": exchanges.TransactionPending,
		"1": exchanges.TransactionOK,
	},
	exchanges.TransactionWithdrawal: {
		"0": exchanges.TransactionPending,
		"1": exchanges.TransactionCanceled,
		"2": exchanges.TransactionPending,
		"3": exchanges.TransactionFailed,
		"4": exchanges.TransactionPending,
		"5": exchanges.TransactionFailed,
		"6": exchanges.TransactionOK,
	},
}

// wapiURL derives the wallet API root from the REST root, so an overridden
// base URL moves both.
func (c *Client) wapiURL() string {
	return strings.TrimSuffix(c.BaseURL(), "/v1") + "/wapi/v3"
}

// currencyID maps a unified code back to the asset id the markets use.
func (c *Client) currencyID(code string) string {
	for _, m := range c.Markets() {
		if m.Base == code && m.BaseID != "" {
			return m.BaseID
		}
		if m.Quote == code && m.QuoteID != "" {
			return m.QuoteID
		}
	}
	return code
}

// FetchStatus reads systemStatus; status 0 means normal operation.
func (c *Client) FetchStatus(ctx context.Context) (*exchanges.Status, error) {
	var res struct {
		Status *exchanges.Number `json:"status"`
	}
	if err := c.call(ctx, OpSystemStatus, nil, &res); err != nil {
		return nil, err
	}
	if res.Status == nil || !res.Status.Valid {
		return nil, exchanges.NewError(exchanges.KindExchange, exchangeID, "systemStatus without status")
	}
	s := &exchanges.Status{Status: exchanges.StatusMaintenance, Updated: c.Clock().Now()}
	if res.Status.Decimal.IsZero() {
		s.Status = exchanges.StatusOK
	}
	return s, nil
}

type transactionRow struct {
	ID         exchanges.Text   `json:"id"`
	Address    exchanges.Text   `json:"address"`
	AddressTag exchanges.Text   `json:"addressTag"`
	TxID       exchanges.Text   `json:"txId"`
	Asset      exchanges.Text   `json:"asset"`
	InsertTime exchanges.Number `json:"insertTime"`
	ApplyTime  exchanges.Number `json:"applyTime"`
	Type       exchanges.Text   `json:"type"`
	Status     exchanges.Text   `json:"status"`
	Amount     exchanges.Number `json:"amount"`
}

func parseTransaction(raw json.RawMessage) *exchanges.Transaction {
	var row transactionRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	tx := &exchanges.Transaction{
		ID:       row.ID.String(),
		TxID:     row.TxID.String(),
		Address:  row.Address.String(),
		Tag:      row.AddressTag.String(),
		Type:     exchanges.TransactionType(row.Type.String()),
		Amount:   row.Amount.NullDecimal,
		Currency: exchanges.CurrencyCode(row.Asset.String(), nil),
		Info:     raw,
	}
	if tx.Type == "" {
		switch {
		case row.InsertTime.Valid && !row.ApplyTime.Valid:
			tx.Type = exchanges.TransactionDeposit
			tx.Timestamp = exchanges.Millis(row.InsertTime.NullDecimal)
		case !row.InsertTime.Valid && row.ApplyTime.Valid:
			tx.Type = exchanges.TransactionWithdrawal
			tx.Timestamp = exchanges.Millis(row.ApplyTime.NullDecimal)
		}
	}
	status := row.Status.String()
	if mapped, ok := transactionStatuses[tx.Type][status]; ok {
		tx.Status = mapped
	} else {
		tx.Status = exchanges.TransactionStatus(status)
	}
	return tx
}

func (c *Client) fetchTransactions(ctx context.Context, op exchanges.Operation, list, code string, since time.Time, limit int) ([]*exchanges.Transaction, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	params := exchanges.Params{}
	if code != "" {
		params["asset"] = c.currencyID(code)
	}
	if !since.IsZero() {
		params["startTime"] = since.UnixMilli()
	}
	var res map[string]json.RawMessage
	if err := c.call(ctx, op, params, &res); err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if raw, ok := res[list]; ok {
		if err := c.api.Decode(raw, &rows); err != nil {
			return nil, err
		}
	}
	txs := make([]*exchanges.Transaction, 0, len(rows))
	for _, raw := range rows {
		if tx := parseTransaction(raw); tx != nil {
			txs = append(txs, tx)
		}
	}
	return exchanges.FilterTransactions(txs, since, limit), nil
}

// FetchDeposits lists deposits, of one currency when code is set.
func (c *Client) FetchDeposits(ctx context.Context, code string, since time.Time, limit int) ([]*exchanges.Transaction, error) {
	return c.fetchTransactions(ctx, OpDepositHistory, "depositList", code, since, limit)
}

// FetchWithdrawals lists withdrawals, of one currency when code is set.
func (c *Client) FetchWithdrawals(ctx context.Context, code string, since time.Time, limit int) ([]*exchanges.Transaction, error) {
	return c.fetchTransactions(ctx, OpWithdrawList, "withdrawList", code, since, limit)
}

// FetchDepositAddress fails with InvalidAddress until an address has been
// created in the account settings, and with AddressPending while the
// venue is still generating one.
func (c *Client) FetchDepositAddress(ctx context.Context, code string) (*exchanges.DepositAddress, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.call(ctx, OpDepositAddress, exchanges.Params{"asset": c.currencyID(code)}, &raw); err != nil {
		return nil, err
	}
	var res struct {
		Success    *bool          `json:"success"`
		Address    exchanges.Text `json:"address"`
		AddressTag exchanges.Text `json:"addressTag"`
	}
	if err := c.api.Decode(raw, &res); err != nil {
		return nil, err
	}
	if res.Success == nil || !*res.Success {
		return nil, exchanges.Errorf(exchanges.KindInvalidAddress, exchangeID,
			"no deposit address for %s, create one in the account settings first", code).WithBody(string(raw))
	}
	if res.Address == "" {
		return nil, exchanges.Errorf(exchanges.KindAddressPending, exchangeID,
			"deposit address for %s is being generated", code).WithBody(string(raw))
	}
	if err := exchanges.CheckAddress(exchangeID, res.Address.String()); err != nil {
		return nil, err
	}
	return &exchanges.DepositAddress{
		Currency: code,
		Address:  res.Address.String(),
		Tag:      res.AddressTag.String(),
		Info:     raw,
	}, nil
}

// FetchFundingFees reads the withdraw fee of every asset. Deposits are free.
func (c *Client) FetchFundingFees(ctx context.Context) (*exchanges.FundingFees, error) {
	var raw json.RawMessage
	if err := c.call(ctx, OpAssetDetail, nil, &raw); err != nil {
		return nil, err
	}
	var res struct {
		AssetDetail map[string]struct {
			WithdrawFee exchanges.Number `json:"withdrawFee"`
		} `json:"assetDetail"`
	}
	if err := c.api.Decode(raw, &res); err != nil {
		return nil, err
	}
	fees := &exchanges.FundingFees{
		Withdraw: make(map[string]decimal.NullDecimal, len(res.AssetDetail)),
		Deposit:  map[string]decimal.NullDecimal{},
		Info:     raw,
	}
	for id, d := range res.AssetDetail {
		fees.Withdraw[exchanges.CurrencyCode(id, nil)] = d.WithdrawFee.NullDecimal
	}
	return fees, nil
}

// Withdraw sends funds to address. The withdrawal is labelled with the
// first 20 characters of the address.
func (c *Client) Withdraw(ctx context.Context, req exchanges.WithdrawRequest) (*exchanges.Withdrawal, error) {
	if err := exchanges.CheckAddress(exchangeID, req.Address); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, exchanges.Errorf(exchanges.KindBadRequest, exchangeID, "withdraw amount must be positive")
	}
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	name := req.Address
	if len(name) > 20 {
		name = name[:20]
	}
	params := exchanges.Params{
		"asset":   c.currencyID(req.Currency),
		"address": req.Address,
		"amount":  req.Amount,
		"name":    name,
	}
	if req.Tag != "" {
		params["addressTag"] = req.Tag
	}
	var raw json.RawMessage
	if err := c.call(ctx, OpWithdraw, params.Extend(req.Params), &raw); err != nil {
		return nil, err
	}
	var res struct {
		ID exchanges.Text `json:"id"`
	}
	if err := c.api.Decode(raw, &res); err != nil {
		return nil, err
	}
	return &exchanges.Withdrawal{ID: res.ID.String(), Info: raw}, nil
}

type dustRow struct {
	TranID              exchanges.Text   `json:"tranId"`
	OperateTime         exchanges.Text   `json:"operateTime"`
	FromAsset           exchanges.Text   `json:"fromAsset"`
	Amount              exchanges.Number `json:"amount"`
	TransferedAmount    exchanges.Number `json:"transferedAmount"`
	ServiceChargeAmount exchanges.Number `json:"serviceChargeAmount"`
}

// FetchMyDustTrades lists the conversions of small balances into BNB as
// trades against the BNB market of each converted asset.
func (c *Client) FetchMyDustTrades(ctx context.Context, since time.Time, limit int) ([]*exchanges.Trade, error) {
	if _, err := c.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	var res struct {
		Results struct {
			Rows []struct {
				Logs []json.RawMessage `json:"logs"`
			} `json:"rows"`
		} `json:"results"`
	}
	if err := c.call(ctx, OpDustLog, nil, &res); err != nil {
		return nil, err
	}
	var trades []*exchanges.Trade
	for _, row := range res.Results.Rows {
		for _, raw := range row.Logs {
			t := c.parseDustTrade(raw)
			if t == nil || (!since.IsZero() && t.Timestamp.Before(since)) {
				continue
			}
			trades = append(trades, t)
		}
	}
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

// parseDustTrade books the conversion as a buy on BNB/X when that market
// exists and as a sell on X/BNB otherwise. The service charge is paid in BNB.
func (c *Client) parseDustTrade(raw json.RawMessage) *exchanges.Trade {
	var row dustRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil
	}
	traded := exchanges.CurrencyCode(row.FromAsset.String(), nil)
	fee := &exchanges.Fee{Cost: row.ServiceChargeAmount.NullDecimal, Currency: dustCurrency}
	earned := exchanges.Add(row.TransferedAmount.NullDecimal, fee.Cost)

	t := &exchanges.Trade{
		Order:     row.TranID.String(),
		Timestamp: exchanges.ParseISO8601(row.OperateTime.String()),
		Fee:       fee,
		Info:      raw,
	}
	quoted := exchanges.Symbol(dustCurrency, traded)
	if _, err := c.Market(quoted); err == nil {
		t.Symbol = quoted
		t.Side = exchanges.SideBuy
		t.Amount = earned
		t.Cost = row.Amount.NullDecimal
	} else {
		t.Symbol = exchanges.Symbol(traded, dustCurrency)
		t.Side = exchanges.SideSell
		t.Amount = row.Amount.NullDecimal
		t.Cost = earned
	}
	t.Price = exchanges.Div(t.Cost, t.Amount)
	return t
}
