// Package normalize turns heterogeneous shop notification payloads into
// canonical purchase records.
//
// Each payload shape has its own normalizer with an explicit applicability
// test, so unrecognized payloads are rejected up front instead of being
// silently misread by a fallthrough parser.
package normalize

import (
	"errors"
	"fmt"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/domain"
)

var (
	// ErrNotApplicable signals the payload does not match the shape a
	// normalizer handles. It is not a failure; callers try the next
	// variant or acknowledge and drop the payload.
	ErrNotApplicable = errors.New("payload not applicable")
	// ErrMissingRecipient signals a recognized purchase that carries no
	// resolvable in-game identity.
	ErrMissingRecipient = errors.New("purchase has no recipient name")
)

// MissingRecipientError carries the invoice identity of a recognized
// purchase that has no resolvable in-game name, so rejection reports keep
// the real invoice id. It matches ErrMissingRecipient under errors.Is.
type MissingRecipientError struct {
	InvoiceID string
}

func (e *MissingRecipientError) Error() string {
	return fmt.Sprintf("invoice %s: %v", e.InvoiceID, ErrMissingRecipient)
}

func (e *MissingRecipientError) Unwrap() error {
	return ErrMissingRecipient
}

// Normalizer extracts purchase records from one raw notification payload.
// Multi-item payloads yield one record per line item.
type Normalizer interface {
	Normalize(payload []byte) ([]domain.PurchaseRecord, error)
}

// Pipeline tries a fixed, ordered set of normalizers and returns records
// from the first applicable one.
type Pipeline struct {
	normalizers []Normalizer
}

// NewPipeline builds a pipeline over the given variants in priority order.
func NewPipeline(normalizers ...Normalizer) *Pipeline {
	return &Pipeline{normalizers: normalizers}
}

// Normalize runs the payload through each variant until one accepts it.
// ErrNotApplicable is returned only when every variant declines.
func (p *Pipeline) Normalize(payload []byte) ([]domain.PurchaseRecord, error) {
	if p == nil {
		return nil, ErrNotApplicable
	}
	for _, normalizer := range p.normalizers {
		records, err := normalizer.Normalize(payload)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		return records, err
	}
	return nil, ErrNotApplicable
}
