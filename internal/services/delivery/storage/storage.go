// Package storage defines the persistence boundary for the delivery ledger
// and operational telemetry.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
)

// DeliveryRecord stores one processed purchase outcome. The ledger is an
// audit trail; it does not enforce idempotency.
type DeliveryRecord struct {
	ID              string
	InvoiceID       string
	ProductID       string
	ProductName     string
	Quantity        int64
	RecipientName   string
	Outcome         string
	FormattedAmount string
	CreatedAt       time.Time
}

// DeliveryStore persists purchase outcomes.
type DeliveryStore interface {
	PutDelivery(ctx context.Context, record DeliveryRecord) error
	ListDeliveriesByInvoice(ctx context.Context, invoiceID string) ([]DeliveryRecord, error)
}

// TelemetryEvent records one operational event (dispatch, connection state).
type TelemetryEvent struct {
	ID          string
	Timestamp   time.Time
	Severity    string
	Event       string
	DetailsJSON string
}

// TelemetryStore appends operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}

// Store is the combined persistence surface the delivery service consumes.
type Store interface {
	DeliveryStore
	TelemetryStore
}
