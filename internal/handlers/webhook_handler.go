package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
	"github.com/automart/backend/internal/services"
	"github.com/spf13/viper"
)

// SignatureHeader carries the provider's HMAC-SHA512 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// Reconciler is the engine surface webhook deliveries feed into.
type Reconciler interface {
	Reconcile(ctx context.Context, reference string, observed models.ObservedStatus, event *models.PaymentEvent) (services.Outcome, error)
}

// DeliveryLog answers whether an event ID was already fully processed, so
// duplicate deliveries can be acknowledged without reprocessing. It is an
// optimization; the engine stays safe against duplicates on its own.
type DeliveryLog interface {
	Seen(ctx context.Context, eventID string) bool
	MarkProcessed(ctx context.Context, eventID string)
}

// WebhookHandler receives async push events from the payment gateway. It
// authenticates the sender, validates and normalizes the payload, and maps
// engine outcomes back to the responses the gateway's redelivery logic
// expects: anything but 2xx/4xx gets redelivered.
type WebhookHandler struct {
	engine     Reconciler
	deliveries DeliveryLog
	secret     []byte
}

func NewWebhookHandler(engine Reconciler, deliveries DeliveryLog) *WebhookHandler {
	return &WebhookHandler{
		engine:     engine,
		deliveries: deliveries,
		secret:     []byte(viper.GetString("gateway.webhook_secret")),
	}
}

type webhookPayload struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"`
	PaidAt    string          `json:"paidAt"`
	Customer  models.Customer `json:"customer"`
}

// HandleWebhook processes one delivery. Duplicate deliveries are success,
// not an error: the gateway retries until it sees 200.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		sendError(w, "Unreadable request body", http.StatusBadRequest, nil)
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Printf("[WEBHOOK] Rejected delivery with bad signature from IP: %s", r.RemoteAddr)
		sendError(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		sendError(w, "Invalid JSON payload", http.StatusBadRequest, nil)
		return
	}

	if payload.Reference == "" {
		sendError(w, "reference is required", http.StatusBadRequest, nil)
		return
	}

	if payload.ID != "" && h.deliveries.Seen(r.Context(), payload.ID) {
		log.Printf("[WEBHOOK] Event %s already processed, acknowledging", payload.ID)
		h.respondOK(w)
		return
	}

	event := &models.PaymentEvent{
		EventID:   payload.ID,
		Reference: payload.Reference,
		Status:    models.NormalizeObservedStatus(payload.Status),
		Amount:    payload.Amount,
		Currency:  payload.Currency,
		Channel:   payload.Channel,
		Customer:  payload.Customer,
	}
	if payload.PaidAt != "" {
		if paidAt, parseErr := time.Parse(time.RFC3339, payload.PaidAt); parseErr == nil {
			event.PaidAt = &paidAt
		}
	}

	outcome, err := h.engine.Reconcile(r.Context(), payload.Reference, event.Status, event)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[WEBHOOK] Unknown reference: %s", payload.Reference)
			sendError(w, "Unknown reference", http.StatusNotFound, nil)
			return
		}
		log.Printf("[WEBHOOK] Reconcile failed for %s: %v", payload.Reference, err)
		sendError(w, "Failed to process event", http.StatusInternalServerError, nil)
		return
	}

	if outcome.AlreadyTerminal {
		log.Printf("[WEBHOOK] Duplicate delivery for %s, status already %s", payload.Reference, outcome.Status)
	}
	if payload.ID != "" {
		h.deliveries.MarkProcessed(r.Context(), payload.ID)
	}

	h.respondOK(w)
}

func (h *WebhookHandler) respondOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
