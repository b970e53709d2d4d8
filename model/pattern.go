package model

import (
	"encoding/json"
	"time"
)

// RecurringPattern is one row of the pattern catalog. Identity is the
// normalized description: repeated detection runs update the same row in
// place and never change PatternID.
type RecurringPattern struct {
	ID                    int64     `json:"-"`
	PatternID             string    `json:"pattern_id"`
	OwnerID               int64     `json:"owner_id"`
	NormalizedDescription string    `json:"normalized_description"`
	MerchantName          string    `json:"merchant_name"`
	TypicalAmount         float64   `json:"typical_amount"`
	TypicalDay            int       `json:"typical_day"`
	Frequency             Frequency `json:"frequency"`
	CategoryID            int64     `json:"category_id"`
	LastSeen              time.Time `json:"last_seen"`
	IsSubscription        bool      `json:"is_subscription"`
	Active                bool      `json:"active"`
	Occurrences           int       `json:"occurrences"`
	CreatedAt             time.Time `json:"created_at"`
}

func (pattern *RecurringPattern) ToJSON() ([]byte, error) {
	return json.Marshal(pattern)
}
