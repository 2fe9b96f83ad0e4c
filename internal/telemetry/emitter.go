package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/storage"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Emitter records operational telemetry events.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}

// EmitEvent records a named event with JSON-encoded details. Marshal and
// store failures are logged rather than returned so callers on hot paths
// never fail because of telemetry.
func (e *Emitter) EmitEvent(ctx context.Context, severity Severity, event string, details map[string]any) {
	if e == nil || e.store == nil {
		return
	}
	var encoded string
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			log.Printf("telemetry: marshal details for %s: %v", event, err)
		} else {
			encoded = string(raw)
		}
	}
	if err := e.Emit(ctx, storage.TelemetryEvent{
		Severity:    string(severity),
		Event:       event,
		DetailsJSON: encoded,
	}); err != nil {
		log.Printf("telemetry: append %s: %v", event, err)
	}
}
