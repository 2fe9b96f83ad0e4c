package normalize

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/domain"
)

// Labels recognized by the description-block strategy. Matching is exact
// after markup stripping; upstream formatting changes break extraction and
// that narrowness is deliberate.
const (
	labelInvoiceID  = "Invoice ID"
	labelProduct    = "Product"
	labelPrice      = "Price"
	labelInGameName = "In game name"
)

// quantityBeforeX extracts the leading integer of a "<qty> x <unit price>"
// price line. No alternate token orders are handled.
var quantityBeforeX = regexp.MustCompile(`^(\d+)\s*[xX]`)

// markupStripper drops the emphasis characters chat embeds decorate labels with.
var markupStripper = strings.NewReplacer("*", "", "_", "", "~", "", "`", "", ">", "")

// ChatEmbedParser normalizes rich-text embed payloads: a title plus either a
// name/value field list or a free-text multi-line description.
type ChatEmbedParser struct {
	customFieldName string
}

// NewChatEmbedParser builds an embed parser. customFieldName is the extra
// description label that carries the buyer's in-game identity, alongside the
// built-in "In game name" label.
func NewChatEmbedParser(customFieldName string) *ChatEmbedParser {
	return &ChatEmbedParser{customFieldName: strings.TrimSpace(customFieldName)}
}

// Normalize extracts one purchase record from an embed payload. Payloads
// whose title lacks a purchase keyword, and embeds that never name a
// recipient, are reported as not applicable rather than as errors.
func (p *ChatEmbedParser) Normalize(payload []byte) ([]domain.PurchaseRecord, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrNotApplicable
	}

	root := gjson.ParseBytes(payload)
	embed := root.Get("embeds.0")
	if !embed.Exists() {
		embed = root
	}

	title := strings.ToLower(embed.Get("title").String())
	if !strings.Contains(title, "purchase") && !strings.Contains(title, "sale") {
		return nil, ErrNotApplicable
	}

	record := domain.PurchaseRecord{
		InvoiceID: domain.UnknownInvoiceID,
		Quantity:  1,
		Status:    domain.StatusCompleted,
	}

	if fields := embed.Get("fields").Array(); len(fields) > 0 {
		p.scanFields(fields, &record)
	} else {
		p.scanDescription(embed.Get("description").String(), &record)
	}

	if strings.TrimSpace(record.RecipientName) == "" {
		log.Printf("embed payload missing recipient name, invoice %s", record.InvoiceID)
		return nil, ErrNotApplicable
	}
	return []domain.PurchaseRecord{record}, nil
}

// scanFields classifies name/value pairs by case-insensitive substring
// match. The first matching pair wins per category.
func (p *ChatEmbedParser) scanFields(fields []gjson.Result, record *domain.PurchaseRecord) {
	var haveInvoice, haveProductID, haveProduct, haveQuantity, haveRecipient bool

	for _, field := range fields {
		name := strings.ToLower(strings.TrimSpace(field.Get("name").String()))
		value := strings.TrimSpace(field.Get("value").String())
		if name == "" || value == "" {
			continue
		}

		switch {
		case !haveInvoice && strings.Contains(name, "invoice"):
			record.InvoiceID = value
			haveInvoice = true
		case !haveProductID && (strings.Contains(name, "product id") || strings.Contains(name, "product_id") || strings.Contains(name, "sku")):
			record.ProductID = value
			haveProductID = true
		case !haveQuantity && (strings.Contains(name, "quantity") || strings.Contains(name, "qty")):
			if quantity, err := strconv.ParseInt(value, 10, 64); err == nil {
				record.Quantity = quantity
			}
			haveQuantity = true
		case !haveProduct && strings.Contains(name, "product"):
			record.ProductName = value
			haveProduct = true
		case !haveRecipient && (strings.Contains(name, "ign") || strings.Contains(name, "in game") || strings.Contains(name, "in-game") || strings.Contains(name, "name") || strings.Contains(name, "user")):
			record.RecipientName = value
			haveRecipient = true
		}
	}
}

// scanDescription walks newline-separated label/value line pairs. Each
// recognized label takes its value from the line immediately following it;
// unrecognized lines are ignored.
func (p *ChatEmbedParser) scanDescription(description string, record *domain.PurchaseRecord) {
	lines := strings.Split(description, "\n")
	for i := 0; i < len(lines)-1; i++ {
		label := stripMarkup(lines[i])
		value := stripMarkup(lines[i+1])
		if value == "" {
			continue
		}

		switch label {
		case labelInvoiceID:
			record.InvoiceID = value
		case labelProduct:
			record.ProductName = value
		case labelPrice:
			if match := quantityBeforeX.FindStringSubmatch(value); match != nil {
				if quantity, err := strconv.ParseInt(match[1], 10, 64); err == nil {
					record.Quantity = quantity
				}
			}
		case labelInGameName:
			record.RecipientName = value
		default:
			if p.customFieldName != "" && label == p.customFieldName {
				record.RecipientName = value
			}
		}
	}
}

func stripMarkup(line string) string {
	return strings.TrimSpace(markupStripper.Replace(line))
}
