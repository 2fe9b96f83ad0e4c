package normalize

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/domain"
)

// invoiceEnvelope is the typed invoice payload sent by the commerce platform.
type invoiceEnvelope struct {
	InvoiceID    string          `json:"invoice_id"`
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Items        []invoiceItem   `json:"items"`
	CustomFields json.RawMessage `json:"custom_fields"`
}

type invoiceItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
}

// customFieldEntry is the array-shaped custom field representation.
type customFieldEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StructuredInvoiceParser normalizes typed invoice payloads with an explicit
// status, line items, and a custom-field collection carrying the buyer's
// in-game identity.
type StructuredInvoiceParser struct {
	customFieldName string
}

// NewStructuredInvoiceParser builds an invoice parser. customFieldName keys
// the custom field holding the recipient's in-game name.
func NewStructuredInvoiceParser(customFieldName string) *StructuredInvoiceParser {
	return &StructuredInvoiceParser{customFieldName: strings.TrimSpace(customFieldName)}
}

// Normalize yields one purchase record per invoice line item, each
// inheriting the invoice's id, status, and recipient. Invoices that are not
// completed yield zero records without error; invoices with no resolvable
// recipient are rejected with ErrMissingRecipient.
func (p *StructuredInvoiceParser) Normalize(payload []byte) ([]domain.PurchaseRecord, error) {
	var invoice invoiceEnvelope
	if err := json.Unmarshal(payload, &invoice); err != nil {
		return nil, ErrNotApplicable
	}
	if strings.TrimSpace(invoice.Status) == "" {
		// A payload without a status is not invoice-shaped.
		return nil, ErrNotApplicable
	}

	invoiceID := strings.TrimSpace(invoice.InvoiceID)
	if invoiceID == "" {
		invoiceID = strings.TrimSpace(invoice.ID)
	}
	if invoiceID == "" {
		invoiceID = domain.UnknownInvoiceID
	}

	if domain.NormalizeStatus(invoice.Status) != domain.StatusCompleted {
		log.Printf("ignoring invoice %s with status %q", invoiceID, invoice.Status)
		return nil, nil
	}

	recipient := p.resolveRecipient(invoice.CustomFields)
	if recipient == "" {
		log.Printf("invoice %s has no recipient custom field %q", invoiceID, p.customFieldName)
		return nil, &MissingRecipientError{InvoiceID: invoiceID}
	}

	records := make([]domain.PurchaseRecord, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			name = strings.TrimSpace(item.Name)
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		records = append(records, domain.PurchaseRecord{
			InvoiceID:     invoiceID,
			ProductID:     strings.TrimSpace(item.ProductID),
			ProductName:   name,
			Quantity:      quantity,
			RecipientName: recipient,
			Status:        domain.StatusCompleted,
		})
	}
	return records, nil
}

// resolveRecipient tries the map-shaped custom-field object first, then the
// array-shaped list matched by field name. The first successful lookup wins.
func (p *StructuredInvoiceParser) resolveRecipient(raw json.RawMessage) string {
	if len(raw) == 0 || p.customFieldName == "" {
		return ""
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err == nil {
		if value, ok := asMap[p.customFieldName].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}

	var asList []customFieldEntry
	if err := json.Unmarshal(raw, &asList); err == nil {
		for _, entry := range asList {
			if entry.Name == p.customFieldName {
				if trimmed := strings.TrimSpace(entry.Value); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return ""
}
