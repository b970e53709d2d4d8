package model

import "time"

// Account owns an ordered sequence of transactions. CurrentBalance is a
// derived cache of the last transaction's balance_after, or OpeningBalance
// when the account has no transactions.
type Account struct {
	ID             int64     `json:"id"`
	OwnerID        int64     `json:"owner_id"`
	Name           string    `json:"name"`
	OpeningBalance float64   `json:"opening_balance"`
	CurrentBalance float64   `json:"current_balance"`
	CreatedAt      time.Time `json:"created_at"`
}

// AccountSummary aggregates an account's activity with transfers excluded.
type AccountSummary struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
	Balance  float64 `json:"balance"`
}

// RecalculationResult reports what a running-balance pass touched.
type RecalculationResult struct {
	AccountID           int64   `json:"account_id"`
	TransactionsUpdated int     `json:"transactions_updated"`
	CurrentBalance      float64 `json:"current_balance"`
}

// BalanceVerification is the outcome of an independent consistency check
// of stored running balances against a fresh recomputation.
type BalanceVerification struct {
	AccountID       int64   `json:"account_id"`
	Accurate        bool    `json:"accurate"`
	ExpectedBalance float64 `json:"expected_balance"`
	CurrentBalance  float64 `json:"current_balance"`
	MismatchedRows  int     `json:"mismatched_rows"`
}
