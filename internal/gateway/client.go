// Package gateway is the HTTP adapter for the external payment provider.
// The provider is the authoritative source of payment status; this client
// only observes it and never mutates local state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
	"github.com/spf13/viper"
)

const (
	defaultProductionURL = "https://api.gateway.example.com"
	defaultSandboxURL    = "https://sandbox.gateway.example.com"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewClient builds the provider client from configuration. The environment
// flag selects the sandbox or production base URL; credentials are the
// provider secret key sent as a bearer token.
func NewClient() *Client {
	viper.SetDefault("gateway.environment", "sandbox")
	viper.SetDefault("gateway.production_url", defaultProductionURL)
	viper.SetDefault("gateway.sandbox_url", defaultSandboxURL)
	viper.SetDefault("gateway.timeout", 15*time.Second)

	baseURL := viper.GetString("gateway.sandbox_url")
	if viper.GetString("gateway.environment") == "production" {
		baseURL = viper.GetString("gateway.production_url")
	}

	return &Client{
		httpClient: &http.Client{Timeout: viper.GetDuration("gateway.timeout")},
		baseURL:    baseURL,
		secretKey:  viper.GetString("gateway.secret_key"),
	}
}

// envelope is the provider's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type eventData struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    string          `json:"paidAt"`
	Channel   string          `json:"channel"`
	Customer  models.Customer `json:"customer"`
}

// Verify asks the provider for the current status of a payment reference.
// Timeouts and 5xx responses come back as transient gateway errors so the
// caller may retry; 4xx (including unknown reference) is permanent.
func (c *Client) Verify(ctx context.Context, reference string) (*models.PaymentEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, apperrors.GatewayPermanent("bad_request", "build verify request", 0)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.GatewayTransient("verify request failed", 0, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return nil, apperrors.GatewayTransient(fmt.Sprintf("provider returned %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.GatewayTransient("unparseable provider response", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 || !env.Status {
		code := env.Code
		if code == "" {
			code = "transaction_not_found"
		}
		message := env.Message
		if message == "" {
			message = "verification rejected by provider"
		}
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadRequest
		}
		return nil, apperrors.GatewayPermanent(code, message, status)
	}

	var data eventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, apperrors.GatewayTransient("unparseable provider data", resp.StatusCode, err)
	}

	event := &models.PaymentEvent{
		EventID:   data.ID,
		Reference: data.Reference,
		Status:    models.NormalizeObservedStatus(data.Status),
		Amount:    data.Amount,
		Currency:  data.Currency,
		Channel:   data.Channel,
		Customer:  data.Customer,
	}
	if event.Reference == "" {
		event.Reference = reference
	}
	if data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			event.PaidAt = &paidAt
		}
	}
	return event, nil
}

// Checkout is the provider-side handle for a newly initialized payment.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize registers a payment attempt with the provider and returns the
// checkout URL the client is redirected to. Same error taxonomy as Verify.
func (c *Client) Initialize(ctx context.Context, reference, email string, amount int64, currency string) (*Checkout, error) {
	payload, _ := json.Marshal(map[string]any{
		"reference": reference,
		"email":     email,
		"amount":    amount,
		"currency":  currency,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.GatewayPermanent("bad_request", "build initialize request", 0)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.GatewayTransient("initialize request failed", 0, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return nil, apperrors.GatewayTransient(fmt.Sprintf("provider returned %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.GatewayTransient("unparseable provider response", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		code := env.Code
		if code == "" {
			code = "initialize_failed"
		}
		return nil, apperrors.GatewayPermanent(code, env.Message, resp.StatusCode)
	}

	var checkout Checkout
	if err := json.Unmarshal(env.Data, &checkout); err != nil {
		return nil, apperrors.GatewayTransient("unparseable provider data", resp.StatusCode, err)
	}
	return &checkout, nil
}
