package models

import "time"

// Wallet is the per-user credit balance. Credits never go negative; the
// store enforces that on every balance change.
type Wallet struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Credits   int64     `json:"credits" db:"credits"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
