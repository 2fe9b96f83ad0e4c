package domain

import (
	"fmt"
	"strings"
)

// Outcome classifies the result of processing one purchase record.
type Outcome string

const (
	// OutcomeSuccess means commands were produced for dispatch.
	OutcomeSuccess Outcome = "success"
	// OutcomeMissingRecipient means the record carried no in-game identity.
	OutcomeMissingRecipient Outcome = "missing-recipient"
	// OutcomeUnknownProduct means no catalog entry matched the record.
	OutcomeUnknownProduct Outcome = "unknown-product"
)

// Result captures the commands and reporting facts for one processed record.
type Result struct {
	Outcome         Outcome
	Commands        []Command
	Product         Product
	TotalAmount     int64
	FormattedAmount string
}

// Processor matches purchase records against the catalog and emits the
// outbound commands for each matched purchase.
type Processor struct {
	catalog *Catalog
}

// NewProcessor builds a processor over an immutable catalog.
func NewProcessor(catalog *Catalog) *Processor {
	return &Processor{catalog: catalog}
}

// Process resolves the record's product and produces its commands. The
// reward command, when configured, always precedes the payment command so
// per-purchase intent ordering survives queueing.
func (p *Processor) Process(record PurchaseRecord) Result {
	recipient := strings.TrimSpace(record.RecipientName)
	if recipient == "" {
		return Result{Outcome: OutcomeMissingRecipient}
	}

	product, ok := p.catalog.Resolve(record.ProductID, record.ProductName)
	if !ok {
		return Result{Outcome: OutcomeUnknownProduct}
	}

	quantity := record.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	total := product.RewardPerUnit * quantity
	formatted := FormatAmount(total)

	var commands []Command
	if product.OnPurchaseCommand != "" {
		// Executed once per matched purchase regardless of quantity.
		commands = append(commands, Command{Text: product.OnPurchaseCommand})
	}
	commands = append(commands, Command{Text: fmt.Sprintf("/pay %s %s", recipient, formatted)})

	return Result{
		Outcome:         OutcomeSuccess,
		Commands:        commands,
		Product:         product,
		TotalAmount:     total,
		FormattedAmount: formatted,
	}
}
