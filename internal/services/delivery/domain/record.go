package domain

import "strings"

// UnknownInvoiceID is the sentinel used when a payload carries no invoice id.
const UnknownInvoiceID = "unknown"

// Status is the purchase lifecycle state reported by the commerce platform.
type Status string

const (
	// StatusCompleted marks a purchase as paid and eligible for delivery.
	StatusCompleted Status = "completed"
	// StatusOther covers every non-completed state; such purchases never
	// reach dispatch.
	StatusOther Status = "other"
)

// NormalizeStatus maps a raw platform status token onto the enumerated set.
func NormalizeStatus(raw string) Status {
	if strings.EqualFold(strings.TrimSpace(raw), string(StatusCompleted)) {
		return StatusCompleted
	}
	return StatusOther
}

// PurchaseRecord is one canonical purchase fact extracted from a raw
// notification payload, or from one line item of a multi-item payload.
// Records are consumed immediately by the processor and never persisted
// in this shape.
type PurchaseRecord struct {
	InvoiceID     string
	ProductID     string
	ProductName   string
	Quantity      int64
	RecipientName string
	Status        Status
}

// Command is one literal instruction destined for the game session.
type Command struct {
	Text string
}
