package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TransactionStatus is the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MetadataCreditsKey holds the credit override written at payment initiation.
// When present it wins over the charged amount; it is never recomputed from
// later gateway evidence.
const MetadataCreditsKey = "credits"

// Metadata is a string key/value bag stored as JSONB.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	return json.Unmarshal(data, m)
}

// Transaction represents a single payment attempt. The reference is shared
// with the client and the gateway and identifies the attempt everywhere.
type Transaction struct {
	ID               int64             `json:"id" db:"id"`
	Reference        string            `json:"reference" db:"reference"`
	UserID           string            `json:"user_id" db:"user_id"`
	Amount           int64             `json:"amount" db:"amount"` // minor units (kobo)
	CreditsRequested int64             `json:"credits_requested" db:"credits_requested"`
	Status           TransactionStatus `json:"status" db:"status"`
	Metadata         Metadata          `json:"metadata" db:"metadata"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// CreditsToAdd returns the number of credits a completed payment grants:
// the metadata override when present and positive, otherwise the amount.
func (t *Transaction) CreditsToAdd() int64 {
	if raw, ok := t.Metadata[MetadataCreditsKey]; ok {
		if credits, err := strconv.ParseInt(raw, 10, 64); err == nil && credits > 0 {
			return credits
		}
	}
	return t.Amount
}
