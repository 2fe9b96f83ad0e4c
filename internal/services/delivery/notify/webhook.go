// Package notify relays delivery status events to a team chat channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 5 * time.Second

// Embed colors for the status channel.
const (
	colorSuccess = 0x2ECC71
	colorError   = 0xE74C3C
	colorStatus  = 0x3498DB
)

// PurchaseEvent carries the facts reported for one processed purchase.
type PurchaseEvent struct {
	InvoiceID       string
	Product         string
	Quantity        int64
	RecipientName   string
	FormattedAmount string
	Reason          string
}

// Sink receives human-visible status events. Implementations must never
// block purchase processing on delivery problems.
type Sink interface {
	PurchaseSuccess(ctx context.Context, event PurchaseEvent)
	PurchaseError(ctx context.Context, event PurchaseEvent)
	ConnectionStatus(ctx context.Context, connected bool, detail string)
}

// WebhookSink posts embed-shaped status payloads to a chat webhook URL.
// Failures are logged and never escalated; a sink with no URL is a no-op.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a sink posting to url. A nil client gets a default
// with a short timeout.
func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &WebhookSink{url: strings.TrimSpace(url), client: client}
}

type webhookEmbed struct {
	Title  string              `json:"title"`
	Color  int                 `json:"color"`
	Fields []webhookEmbedField `json:"fields,omitempty"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookMessage struct {
	Embeds []webhookEmbed `json:"embeds"`
}

// PurchaseSuccess reports a delivered purchase.
func (s *WebhookSink) PurchaseSuccess(ctx context.Context, event PurchaseEvent) {
	s.post(ctx, webhookEmbed{
		Title:  "Purchase delivered",
		Color:  colorSuccess,
		Fields: purchaseFields(event),
	})
}

// PurchaseError reports a purchase that could not be delivered.
func (s *WebhookSink) PurchaseError(ctx context.Context, event PurchaseEvent) {
	fields := purchaseFields(event)
	if event.Reason != "" {
		fields = append(fields, webhookEmbedField{Name: "Reason", Value: event.Reason})
	}
	s.post(ctx, webhookEmbed{
		Title:  "Purchase failed",
		Color:  colorError,
		Fields: fields,
	})
}

// ConnectionStatus reports a game session state transition.
func (s *WebhookSink) ConnectionStatus(ctx context.Context, connected bool, detail string) {
	title := "Game session disconnected"
	if connected {
		title = "Game session connected"
	}
	embed := webhookEmbed{Title: title, Color: colorStatus}
	if detail != "" {
		embed.Fields = append(embed.Fields, webhookEmbedField{Name: "Detail", Value: detail})
	}
	s.post(ctx, embed)
}

func purchaseFields(event PurchaseEvent) []webhookEmbedField {
	fields := []webhookEmbedField{
		{Name: "Invoice", Value: valueOrDash(event.InvoiceID), Inline: true},
		{Name: "Product", Value: valueOrDash(event.Product), Inline: true},
		{Name: "Quantity", Value: fmt.Sprintf("%d", event.Quantity), Inline: true},
	}
	if event.RecipientName != "" {
		fields = append(fields, webhookEmbedField{Name: "Recipient", Value: event.RecipientName, Inline: true})
	}
	if event.FormattedAmount != "" {
		fields = append(fields, webhookEmbedField{Name: "Amount", Value: event.FormattedAmount, Inline: true})
	}
	return fields
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func (s *WebhookSink) post(ctx context.Context, embed webhookEmbed) {
	if s == nil || s.url == "" {
		return
	}

	body, err := json.Marshal(webhookMessage{Embeds: []webhookEmbed{embed}})
	if err != nil {
		log.Printf("marshal status webhook payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("build status webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("post status webhook: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		log.Printf("status webhook rejected with %d", resp.StatusCode)
	}
}
