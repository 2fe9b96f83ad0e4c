// Package app hosts the delivery service HTTP process: webhook ingestion,
// manual triggers, and the wiring between normalization, catalog matching,
// command dispatch, and status reporting.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/l0lusurname/DonutShopAutoDeliver/internal/platform/errors"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/dispatch"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/domain"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/normalize"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/notify"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/session"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/storage"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/storage/sqlite"
	"github.com/l0lusurname/DonutShopAutoDeliver/internal/telemetry"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultDialTimeout       = 10 * time.Second

	maxPayloadBytes = 1 << 20
)

// Config defines the inputs for the delivery transport boundary.
type Config struct {
	HTTPAddr          string
	GameAddr          string
	StatusWebhookURL  string
	CatalogPath       string
	CustomFieldName   string
	StoragePath       string
	CommandDelay      time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	TriggerGrant      TriggerGrantConfig
}

// Server hosts the delivery HTTP process and the game session supervisor.
//
// Webhook handlers acknowledge every recognized-but-undeliverable payload
// with 200 so the shop does not retry purchases the catalog or payload can
// never satisfy; only transport-level failures surface as 5xx.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	session         *session.Session
	sessionStop     context.CancelFunc
	sessionDone     chan struct{}
	store           *sqlite.Store
}

// service holds the processing dependencies shared by all handlers.
type service struct {
	pipeline      *normalize.Pipeline
	embedParser   normalize.Normalizer
	invoiceParser normalize.Normalizer
	processor     *domain.Processor
	queue         *dispatch.Queue
	sink          notify.Sink
	ledger        storage.DeliveryStore
	emitter       *telemetry.Emitter
	triggerGrant  TriggerGrantConfig
}

// sessionRelay fans session state transitions out to the dispatch queue,
// the status sink, and telemetry.
type sessionRelay struct {
	queue   *dispatch.Queue
	sink    notify.Sink
	emitter *telemetry.Emitter
	detail  string
}

func (r *sessionRelay) OnConnected() {
	r.queue.OnConnected()
	if r.sink != nil {
		r.sink.ConnectionStatus(context.Background(), true, r.detail)
	}
	r.emitter.EmitEvent(context.Background(), telemetry.SeverityInfo, "session.connected", map[string]any{"addr": r.detail})
}

func (r *sessionRelay) OnDisconnected() {
	r.queue.OnDisconnected()
	if r.sink != nil {
		r.sink.ConnectionStatus(context.Background(), false, r.detail)
	}
	r.emitter.EmitEvent(context.Background(), telemetry.SeverityWarn, "session.disconnected", map[string]any{"addr": r.detail, "pending": r.queue.Pending()})
}

// ingestStatus summarizes how one webhook payload was handled.
type ingestStatus struct {
	Status    string `json:"status"`
	Queued    int    `json:"queued_commands,omitempty"`
	Delivered int    `json:"delivered,omitempty"`
	Rejected  int    `json:"rejected,omitempty"`
}

// NewServer builds a configured delivery server.
func NewServer(config Config) (*Server, error) {
	return NewServerWithContext(context.Background(), config)
}

// NewServerWithContext builds a configured delivery server with an explicit
// context governing the game session supervisor.
func NewServerWithContext(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	catalog, err := domain.LoadCatalogFile(config.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var store *sqlite.Store
	var ledger storage.DeliveryStore
	var telemetryStore storage.TelemetryStore
	if strings.TrimSpace(config.StoragePath) != "" {
		store, err = sqlite.Open(config.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open delivery store: %w", err)
		}
		ledger = store
		telemetryStore = store
	}
	emitter := telemetry.NewEmitter(telemetryStore)

	var sink notify.Sink
	if strings.TrimSpace(config.StatusWebhookURL) != "" {
		sink = notify.NewWebhookSink(config.StatusWebhookURL, nil)
	}

	gameAddr := strings.TrimSpace(config.GameAddr)
	var gameSession *session.Session
	var sender dispatch.Sender
	if gameAddr != "" {
		gameSession = session.New(session.TCPDialer{Addr: gameAddr, Timeout: defaultDialTimeout})
		sender = gameSession
	} else {
		log.Printf("delivery: no game address configured, commands will queue without draining")
	}

	queue := dispatch.NewQueue(sender, config.CommandDelay, func(command domain.Command) {
		emitter.EmitEvent(context.Background(), telemetry.SeverityInfo, "command.delivered", map[string]any{"command": command.Text})
	})

	svc := &service{
		embedParser:   normalize.NewChatEmbedParser(config.CustomFieldName),
		invoiceParser: normalize.NewStructuredInvoiceParser(config.CustomFieldName),
		processor:     domain.NewProcessor(catalog),
		queue:         queue,
		sink:          sink,
		ledger:        ledger,
		emitter:       emitter,
		triggerGrant:  config.TriggerGrant,
	}
	svc.pipeline = normalize.NewPipeline(svc.invoiceParser, svc.embedParser)

	server := &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		session:         gameSession,
		store:           store,
	}
	server.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(svc),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	if gameSession != nil {
		gameSession.Subscribe(&sessionRelay{queue: queue, sink: sink, emitter: emitter, detail: gameAddr})
		sessionCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		server.sessionStop = cancel
		server.sessionDone = done
		go func() {
			defer close(done)
			if err := gameSession.Run(sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("delivery: game session supervisor stopped: %v", err)
			}
		}()
	}

	return server, nil
}

// Run creates and serves a delivery server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServerWithContext(ctx, config)
	if err != nil {
		return fmt.Errorf("init delivery server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve delivery: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("delivery server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("delivery server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.sessionStop != nil {
		s.sessionStop()
	}
	if s.sessionDone != nil {
		<-s.sessionDone
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close delivery store: %v", err)
		}
	}
}

// newHandler creates the delivery routes.
func newHandler(svc *service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/webhooks", requirePost(svc.handleWebhook(nil)))
	mux.HandleFunc("/webhooks/embed", requirePost(svc.handleWebhook(func(s *service) normalize.Normalizer { return s.embedParser })))
	mux.HandleFunc("/webhooks/invoice", requirePost(svc.handleWebhook(func(s *service) normalize.Normalizer { return s.invoiceParser })))
	mux.HandleFunc("/deliveries", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			svc.handleManualTrigger(w, r)
		case http.MethodGet:
			svc.handleListDeliveries(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func requirePost(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// handleWebhook ingests one shop notification payload. A nil selector runs
// the full variant pipeline; otherwise only the selected normalizer is
// consulted.
func (s *service) handleWebhook(selector func(*service) normalize.Normalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			http.Error(w, "read payload", http.StatusInternalServerError)
			return
		}

		var normalizer normalize.Normalizer = s.pipeline
		if selector != nil {
			normalizer = selector(s)
		}

		status := s.ingest(r.Context(), normalizer, payload)
		writeJSON(w, http.StatusOK, status)
	}
}

// ingest normalizes one payload and processes every extracted record.
// Rejections are acknowledged, reported, and recorded; they never bubble
// back to the shop as retryable failures.
func (s *service) ingest(ctx context.Context, normalizer normalize.Normalizer, payload []byte) ingestStatus {
	records, err := normalizer.Normalize(payload)
	if errors.Is(err, normalize.ErrNotApplicable) {
		log.Printf("delivery: ignoring unrecognized payload (%d bytes)", len(payload))
		s.emitter.EmitEvent(ctx, telemetry.SeverityWarn, "payload.ignored", map[string]any{"bytes": len(payload)})
		return ingestStatus{Status: "ignored"}
	}
	if errors.Is(err, normalize.ErrMissingRecipient) {
		invoiceID := domain.UnknownInvoiceID
		var missing *normalize.MissingRecipientError
		if errors.As(err, &missing) && strings.TrimSpace(missing.InvoiceID) != "" {
			invoiceID = missing.InvoiceID
		}
		s.reject(ctx, domain.PurchaseRecord{InvoiceID: invoiceID}, domain.OutcomeMissingRecipient, "purchase carries no in-game name")
		return ingestStatus{Status: "rejected", Rejected: 1}
	}
	if err != nil {
		log.Printf("delivery: normalize payload: %v", err)
		s.emitter.EmitEvent(ctx, telemetry.SeverityError, "payload.error", map[string]any{"error": err.Error()})
		return ingestStatus{Status: "ignored"}
	}
	if len(records) == 0 {
		return ingestStatus{Status: "ignored"}
	}

	var status ingestStatus
	status.Status = "ok"
	for _, record := range records {
		result := s.process(ctx, record)
		switch result.Outcome {
		case domain.OutcomeSuccess:
			status.Delivered++
			status.Queued += len(result.Commands)
		default:
			status.Rejected++
		}
	}
	if status.Delivered == 0 {
		status.Status = "rejected"
	}
	return status
}

// process runs one purchase record through catalog matching, queues its
// commands, and fans the outcome out to the sink and the ledger.
func (s *service) process(ctx context.Context, record domain.PurchaseRecord) domain.Result {
	result := s.processor.Process(record)
	switch result.Outcome {
	case domain.OutcomeSuccess:
		for _, command := range result.Commands {
			s.queue.Enqueue(command)
		}
		if s.sink != nil {
			s.sink.PurchaseSuccess(ctx, notify.PurchaseEvent{
				InvoiceID:       record.InvoiceID,
				Product:         result.Product.DisplayName,
				Quantity:        record.Quantity,
				RecipientName:   record.RecipientName,
				FormattedAmount: result.FormattedAmount,
			})
		}
		s.record(ctx, record, result)
		s.emitter.EmitEvent(ctx, telemetry.SeverityInfo, "purchase.delivered", map[string]any{
			"invoice":  record.InvoiceID,
			"product":  result.Product.ID,
			"commands": len(result.Commands),
		})
	case domain.OutcomeMissingRecipient:
		s.reject(ctx, record, result.Outcome, "purchase carries no in-game name")
	case domain.OutcomeUnknownProduct:
		s.reject(ctx, record, result.Outcome, fmt.Sprintf("no catalog entry matches %q", recordProductLabel(record)))
	}
	return result
}

// reject reports and records one undeliverable purchase.
func (s *service) reject(ctx context.Context, record domain.PurchaseRecord, outcome domain.Outcome, reason string) {
	log.Printf("delivery: rejecting purchase invoice=%s outcome=%s: %s", record.InvoiceID, outcome, reason)
	if s.sink != nil {
		s.sink.PurchaseError(ctx, notify.PurchaseEvent{
			InvoiceID:     record.InvoiceID,
			Product:       recordProductLabel(record),
			Quantity:      record.Quantity,
			RecipientName: record.RecipientName,
			Reason:        reason,
		})
	}
	s.record(ctx, record, domain.Result{Outcome: outcome})
	s.emitter.EmitEvent(ctx, telemetry.SeverityWarn, "purchase.rejected", map[string]any{
		"invoice": record.InvoiceID,
		"outcome": string(outcome),
		"reason":  reason,
	})
}

// record writes one processed purchase to the ledger. Ledger failures are
// logged; the shop already received its acknowledgment.
func (s *service) record(ctx context.Context, record domain.PurchaseRecord, result domain.Result) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.PutDelivery(ctx, storage.DeliveryRecord{
		InvoiceID:       record.InvoiceID,
		ProductID:       record.ProductID,
		ProductName:     recordProductLabel(record),
		Quantity:        record.Quantity,
		RecipientName:   record.RecipientName,
		Outcome:         string(result.Outcome),
		FormattedAmount: result.FormattedAmount,
	})
	if err != nil {
		log.Printf("delivery: write ledger for invoice %s: %v", record.InvoiceID, err)
	}
}

func recordProductLabel(record domain.PurchaseRecord) string {
	if strings.TrimSpace(record.ProductName) != "" {
		return record.ProductName
	}
	return record.ProductID
}

// manualTriggerRequest is the body of POST /deliveries.
type manualTriggerRequest struct {
	InvoiceID     string `json:"invoice_id"`
	Product       string `json:"product"`
	Quantity      int64  `json:"quantity"`
	RecipientName string `json:"recipient_name"`
	Grant         string `json:"grant"`
}

// manualTriggerResponse reports the outcome of a manual delivery.
type manualTriggerResponse struct {
	Outcome         string `json:"outcome"`
	InvoiceID       string `json:"invoice_id"`
	QueuedCommands  int    `json:"queued_commands"`
	FormattedAmount string `json:"formatted_amount,omitempty"`
}

// handleManualTrigger replays a delivery on operator request, bypassing
// payload normalization.
func (s *service) handleManualTrigger(w http.ResponseWriter, r *http.Request) {
	var req manualTriggerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPayloadBytes)).Decode(&req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodePayloadInvalidJSON, "decode trigger request", err))
		return
	}

	if s.triggerGrant.Enabled() {
		grant := req.Grant
		if grant == "" {
			grant = bearerToken(r)
		}
		if _, err := ValidateTriggerGrant(grant, req.RecipientName, s.triggerGrant); err != nil {
			log.Printf("delivery: manual trigger rejected: %v", err)
			writeError(w, err)
			return
		}
	}

	invoiceID := strings.TrimSpace(req.InvoiceID)
	if invoiceID == "" {
		invoiceID = domain.UnknownInvoiceID
	}
	record := domain.PurchaseRecord{
		InvoiceID:     invoiceID,
		ProductID:     strings.TrimSpace(req.Product),
		ProductName:   strings.TrimSpace(req.Product),
		Quantity:      req.Quantity,
		RecipientName: req.RecipientName,
		Status:        domain.StatusCompleted,
	}
	result := s.process(r.Context(), record)

	writeJSON(w, http.StatusOK, manualTriggerResponse{
		Outcome:         string(result.Outcome),
		InvoiceID:       invoiceID,
		QueuedCommands:  len(result.Commands),
		FormattedAmount: result.FormattedAmount,
	})
}

// handleListDeliveries returns the ledger entries for one invoice.
func (s *service) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, apperrors.New(apperrors.CodeStorageUnavailable, "delivery ledger is not configured"))
		return
	}
	invoiceID := strings.TrimSpace(r.URL.Query().Get("invoice_id"))
	if invoiceID == "" {
		writeError(w, apperrors.New(apperrors.CodePayloadInvalidJSON, "invoice_id is required"))
		return
	}
	records, err := s.ledger.ListDeliveriesByInvoice(r.Context(), invoiceID)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeStorageUnavailable, "list deliveries", err))
		return
	}

	type deliveryItem struct {
		ID              string `json:"id"`
		InvoiceID       string `json:"invoice_id"`
		Product         string `json:"product"`
		Quantity        int64  `json:"quantity"`
		RecipientName   string `json:"recipient_name,omitempty"`
		Outcome         string `json:"outcome"`
		FormattedAmount string `json:"formatted_amount,omitempty"`
		CreatedAt       string `json:"created_at"`
	}
	items := make([]deliveryItem, 0, len(records))
	for _, record := range records {
		items = append(items, deliveryItem{
			ID:              record.ID,
			InvoiceID:       record.InvoiceID,
			Product:         record.ProductName,
			Quantity:        record.Quantity,
			RecipientName:   record.RecipientName,
			Outcome:         record.Outcome,
			FormattedAmount: record.FormattedAmount,
			CreatedAt:       record.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": items})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("delivery: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    string(apperrors.GetCode(err)),
			"message": err.Error(),
		},
	})
}
