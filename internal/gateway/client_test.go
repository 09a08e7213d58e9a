package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/automart/backend/internal/apperrors"
	"github.com/automart/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(serverURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    serverURL,
		secretKey:  "sk_test_secret",
	}
}

func TestClient_Verify(t *testing.T) {
	t.Run("maps a successful verification", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/transaction/verify/ref-1", r.URL.Path)
			assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"status": true,
				"message": "Verification successful",
				"data": {
					"id": "evt_9",
					"reference": "ref-1",
					"status": "success",
					"amount": 150000,
					"currency": "NGN",
					"paidAt": "2024-06-01T12:30:00Z",
					"channel": "card",
					"customer": {"email": "buyer@example.com"}
				}
			}`))
		}))
		defer server.Close()

		event, err := testClient(server.URL).Verify(context.Background(), "ref-1")
		require.NoError(t, err)
		assert.Equal(t, "ref-1", event.Reference)
		assert.Equal(t, models.ObservedSuccess, event.Status)
		assert.Equal(t, int64(150000), event.Amount)
		assert.Equal(t, "card", event.Channel)
		assert.Equal(t, "buyer@example.com", event.Customer.Email)
		require.NotNil(t, event.PaidAt)
		assert.Equal(t, "2024-06-01T12:30:00Z", event.PaidAt.UTC().Format(time.RFC3339))
	})

	t.Run("unknown provider status normalizes to pending", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": true, "data": {"reference": "ref-1", "status": "ongoing"}}`))
		}))
		defer server.Close()

		event, err := testClient(server.URL).Verify(context.Background(), "ref-1")
		require.NoError(t, err)
		assert.Equal(t, models.ObservedPending, event.Status)
	})

	t.Run("unknown reference is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
		}))
		defer server.Close()

		_, err := testClient(server.URL).Verify(context.Background(), "missing")
		var gwErr *apperrors.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.False(t, gwErr.Transient)
		assert.Equal(t, "transaction_not_found", gwErr.Code)
		assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	})

	t.Run("provider 5xx is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := testClient(server.URL).Verify(context.Background(), "ref-1")
		var gwErr *apperrors.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.True(t, gwErr.Transient)
		assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
	})

	t.Run("unreachable provider is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := testClient(server.URL).Verify(context.Background(), "ref-1")
		var gwErr *apperrors.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.True(t, gwErr.Transient)
	})

	t.Run("unparseable body is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>maintenance</html>"))
		}))
		defer server.Close()

		_, err := testClient(server.URL).Verify(context.Background(), "ref-1")
		var gwErr *apperrors.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.True(t, gwErr.Transient)
	})
}

func TestClient_Initialize(t *testing.T) {
	t.Run("returns the checkout handle", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/transaction/initialize", r.URL.Path)
			w.Write([]byte(`{
				"status": true,
				"data": {
					"authorization_url": "https://checkout.example.com/abc123",
					"access_code": "abc123",
					"reference": "ref-1"
				}
			}`))
		}))
		defer server.Close()

		checkout, err := testClient(server.URL).Initialize(context.Background(), "ref-1", "buyer@example.com", 150000, "NGN")
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.example.com/abc123", checkout.AuthorizationURL)
		assert.Equal(t, "abc123", checkout.AccessCode)
	})

	t.Run("provider rejection is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status": false, "code": "invalid_amount", "message": "Amount too low"}`))
		}))
		defer server.Close()

		_, err := testClient(server.URL).Initialize(context.Background(), "ref-1", "buyer@example.com", 1, "NGN")
		var gwErr *apperrors.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.False(t, gwErr.Transient)
		assert.Equal(t, "invalid_amount", gwErr.Code)
	})
}
