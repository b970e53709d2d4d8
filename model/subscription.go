package model

import (
	"encoding/json"
	"time"
)

// Subscription directions. Expense subscriptions are recurring charges,
// income subscriptions recurring deposits (salary, rental income).
const (
	DirectionExpense = "expense"
	DirectionIncome  = "income"
)

// Subscription is a user-facing billing agreement, kept in a catalog
// distinct from the raw recurring-pattern table. Deletion is soft via the
// Active flag.
type Subscription struct {
	ID              int64     `json:"-"`
	SubscriptionID  string    `json:"subscription_id"`
	OwnerID         int64     `json:"owner_id"`
	MerchantPattern string    `json:"merchant_pattern"`
	DisplayName     string    `json:"display_name"`
	ExpectedAmount  float64   `json:"expected_amount"`
	Frequency       Frequency `json:"frequency"`
	BillingDay      int       `json:"billing_day"`
	NextChargeDate  time.Time `json:"next_charge_date"`
	LastChargeDate  time.Time `json:"last_charge_date"`
	Direction       string    `json:"direction"`
	CategoryID      int64     `json:"category_id"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (subscription *Subscription) ToJSON() ([]byte, error) {
	return json.Marshal(subscription)
}

// SubscriptionCandidate is a detected billing agreement with a confidence
// score in [0,1]. Candidates are reported, not persisted; confirmation via
// CreateSubscription is a user decision.
type SubscriptionCandidate struct {
	MerchantPattern string    `json:"merchant_pattern"`
	DisplayName     string    `json:"display_name"`
	ExpectedAmount  float64   `json:"expected_amount"`
	Frequency       Frequency `json:"frequency"`
	BillingDay      int       `json:"billing_day"`
	LastChargeDate  time.Time `json:"last_charge_date"`
	NextChargeDate  time.Time `json:"next_charge_date"`
	Direction       string    `json:"direction"`
	Occurrences     int       `json:"occurrences"`
	Confidence      float64   `json:"confidence"`
}
