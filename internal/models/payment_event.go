package models

import "time"

// ObservedStatus is a gateway-side payment status as reported by a webhook
// delivery or a verify call. It is evidence, never authoritative on its own.
type ObservedStatus string

const (
	ObservedSuccess   ObservedStatus = "success"
	ObservedFailed    ObservedStatus = "failed"
	ObservedCancelled ObservedStatus = "cancelled"
	ObservedPending   ObservedStatus = "pending"
)

// NormalizeObservedStatus maps a raw gateway status string onto the known
// set. Anything unrecognized is treated as pending: it carries no authority
// to transition a transaction.
func NormalizeObservedStatus(raw string) ObservedStatus {
	switch ObservedStatus(raw) {
	case ObservedSuccess, ObservedFailed, ObservedCancelled:
		return ObservedStatus(raw)
	default:
		return ObservedPending
	}
}

// Customer is the payer information attached to a gateway event.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PaymentEvent is one observation of a payment attempt at the gateway. It is
// transient input to reconciliation and is never persisted as-is; the pieces
// worth keeping are patched into the transaction metadata.
type PaymentEvent struct {
	EventID   string         `json:"id,omitempty"`
	Reference string         `json:"reference"`
	Status    ObservedStatus `json:"status"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	PaidAt    *time.Time     `json:"paidAt,omitempty"`
	Customer  Customer       `json:"customer"`
	Channel   string         `json:"channel,omitempty"`
}
