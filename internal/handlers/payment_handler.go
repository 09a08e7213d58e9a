package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/services"
	"github.com/go-playground/validator/v10"
)

// PaymentHandler exposes the authenticated payment surface: initiation,
// client-triggered verification and the wallet balance read.
type PaymentHandler struct {
	payments  *services.PaymentService
	gateway   services.Gateway
	engine    Reconciler
	validator *validator.Validate
}

func NewPaymentHandler(payments *services.PaymentService, gw services.Gateway, engine Reconciler) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		gateway:   gw,
		engine:    engine,
		validator: validator.New(),
	}
}

type initiateRequest struct {
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Credits int64  `json:"credits" validate:"omitempty,gt=0"`
	Email   string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// InitiatePayment creates the pending transaction and returns the provider
// checkout URL the client is redirected to.
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req initiateRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, checkout, err := h.payments.Initiate(r.Context(), userID, req.Email, req.Amount, req.Credits)
	if err != nil {
		var gwErr *apperrors.GatewayError
		if errors.As(err, &gwErr) {
			h.sendGatewayError(w, gwErr)
			return
		}
		log.Printf("[PAYMENT] Initiate failed for user %s: %v", userID, err)
		sendError(w, "Failed to initiate payment", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": map[string]any{
			"reference":         tx.Reference,
			"credits_requested": tx.CreditsRequested,
			"authorization_url": checkout.AuthorizationURL,
			"access_code":       checkout.AccessCode,
		},
	})
}

// VerifyPayment asks the gateway for the reference's current status and
// feeds the observation into the reconciliation engine. Racing against a
// webhook delivery for the same reference is safe; at most one of them
// credits the wallet.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	event, err := h.gateway.Verify(r.Context(), req.Reference)
	if err != nil {
		var gwErr *apperrors.GatewayError
		if errors.As(err, &gwErr) {
			h.sendGatewayError(w, gwErr)
			return
		}
		log.Printf("[PAYMENT] Verify failed for %s: %v", req.Reference, err)
		sendError(w, "Verification failed", http.StatusInternalServerError, nil)
		return
	}

	outcome, err := h.engine.Reconcile(r.Context(), req.Reference, event.Status, event)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			sendError(w, "Unknown reference", http.StatusNotFound, nil)
			return
		}
		log.Printf("[PAYMENT] Reconcile failed for %s: %v", req.Reference, err)
		sendError(w, "Verification failed, please retry", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data": map[string]any{
			"reference": outcome.Reference,
			"status":    outcome.Status,
			"gateway":   event,
		},
	})
}

// GetWallet returns the caller's current credit balance.
func (h *PaymentHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	wallet, err := h.payments.WalletBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[WALLET] Balance read failed for user %s: %v", userID, err)
		sendError(w, "Failed to fetch wallet", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": wallet})
}

func (h *PaymentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		sendError(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		sendError(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *PaymentHandler) sendGatewayError(w http.ResponseWriter, gwErr *apperrors.GatewayError) {
	status := gwErr.StatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errorBody{Message: gwErr.Message, Code: gwErr.Code},
	})
}
