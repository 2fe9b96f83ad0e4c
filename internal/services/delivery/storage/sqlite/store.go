// Package sqlite provides SQLite-backed persistence for the delivery ledger.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/platform/id"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/platform/storage/sqlitemigrate"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/storage"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for delivery state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a delivery SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutDelivery persists one delivery ledger row. A missing id is generated.
func (s *Store) PutDelivery(ctx context.Context, record storage.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.InvoiceID) == "" {
		return fmt.Errorf("invoice id is required")
	}
	if strings.TrimSpace(record.Outcome) == "" {
		return fmt.Errorf("outcome is required")
	}
	if record.ID == "" {
		newID, err := id.NewID()
		if err != nil {
			return fmt.Errorf("generate delivery id: %w", err)
		}
		record.ID = newID
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO deliveries (id, invoice_id, product_id, product_name, quantity, recipient_name, outcome, formatted_amount, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.InvoiceID,
		record.ProductID,
		record.ProductName,
		record.Quantity,
		record.RecipientName,
		record.Outcome,
		record.FormattedAmount,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert delivery row: %w", err)
	}
	return nil
}

// ListDeliveriesByInvoice loads ledger rows for one invoice in insertion order.
func (s *Store) ListDeliveriesByInvoice(ctx context.Context, invoiceID string) ([]storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, fmt.Errorf("invoice id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, invoice_id, product_id, product_name, quantity, recipient_name, outcome, formatted_amount, created_at
FROM deliveries
WHERE invoice_id = ?
ORDER BY created_at ASC, id ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var records []storage.DeliveryRecord
	for rows.Next() {
		var record storage.DeliveryRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.InvoiceID,
			&record.ProductID,
			&record.ProductName,
			&record.Quantity,
			&record.RecipientName,
			&record.Outcome,
			&record.FormattedAmount,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery rows: %w", err)
	}
	return records, nil
}

// AppendTelemetryEvent persists one operational telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if event.ID == "" {
		newID, err := id.NewID()
		if err != nil {
			return fmt.Errorf("generate telemetry id: %w", err)
		}
		event.ID = newID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_events (id, timestamp, severity, event, details_json)
VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		toMillis(event.Timestamp),
		event.Severity,
		event.Event,
		event.DetailsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}
