package model

import "time"

// Category names used by engine operations. They are resolved against the
// categories table at runtime, with configured fallback ids when absent.
const (
	CategoryTransfer      = "Transfer"
	CategoryOther         = "Other"
	CategoryEntertainment = "Entertainment"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
