package model

import (
	"encoding/json"
	"time"
)

// Transaction is an immutable financial fact once imported. Amount fields
// are never user-editable; balance_after is derived and rewritten by the
// ledger calculator.
type Transaction struct {
	ID                  int64     `json:"id"`
	AccountID           int64     `json:"account_id"`
	Date                time.Time `json:"date"`
	Description         string    `json:"description"`
	OriginalDescription string    `json:"original_description"`
	DebitAmount         float64   `json:"debit_amount"`
	CreditAmount        float64   `json:"credit_amount"`
	BalanceAfter        float64   `json:"balance_after"`
	CategoryID          int64     `json:"category_id"`
	IsTransfer          bool      `json:"is_transfer"`
	LinkedTransactionID *int64    `json:"linked_transaction_id,omitempty"`
	IsRecurring         bool      `json:"is_recurring"`
	RecurringPatternID  *string   `json:"recurring_pattern_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// Amount returns the transaction's magnitude regardless of direction.
// Exactly one of debit and credit is non-zero for money movements.
func (transaction *Transaction) Amount() float64 {
	if transaction.DebitAmount > 0 {
		return transaction.DebitAmount
	}
	return transaction.CreditAmount
}

// BalanceUpdate carries one recomputed running balance destined for a
// transaction row.
type BalanceUpdate struct {
	TransactionID int64   `json:"transaction_id"`
	BalanceAfter  float64 `json:"balance_after"`
}

// TransferCandidate is an unlinked debit/credit pair reported by transfer
// detection. Detection never mutates state; linking is a separate call.
type TransferCandidate struct {
	DebitTransaction  *Transaction `json:"debit_transaction"`
	CreditTransaction *Transaction `json:"credit_transaction"`
	Amount            float64      `json:"amount"`
	DaysApart         int          `json:"days_apart"`
}
