package model

import (
	"encoding/json"
	"time"
)

// Anomaly types produced by the detection passes.
const (
	AnomalyUnusualAmount      = "unusual_amount"
	AnomalyNewMerchantLarge   = "new_merchant_large"
	AnomalyPotentialDuplicate = "potential_duplicate"
	AnomalyCategorySpike      = "category_spike"
)

// Anomaly severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Anomaly is a flagged event. Dismissed and ConfirmedFraud are independent
// booleans, not mutually exclusive states. Rows are unique per
// (transaction_id, anomaly_type) so repeated detection is idempotent.
type Anomaly struct {
	ID             int64     `json:"-"`
	AnomalyID      string    `json:"anomaly_id"`
	TransactionID  *int64    `json:"transaction_id,omitempty"`
	AnomalyType    string    `json:"anomaly_type"`
	Severity       string    `json:"severity"`
	Description    string    `json:"description"`
	Dismissed      bool      `json:"dismissed"`
	ConfirmedFraud bool      `json:"confirmed_fraud"`
	DetectedAt     time.Time `json:"detected_at"`
}

func (anomaly *Anomaly) ToJSON() ([]byte, error) {
	return json.Marshal(anomaly)
}

// AnomalyStats summarizes the anomaly table. Pending counts rows that are
// neither dismissed nor confirmed fraud.
type AnomalyStats struct {
	Total          int64            `json:"total"`
	Dismissed      int64            `json:"dismissed"`
	ConfirmedFraud int64            `json:"confirmed_fraud"`
	Pending        int64            `json:"pending"`
	ByType         map[string]int64 `json:"by_type"`
	BySeverity     map[string]int64 `json:"by_severity"`
}
