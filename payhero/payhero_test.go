package payhero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPromptSendsCredentialedRequest(t *testing.T) {
	var got promptRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/payments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "api-user", username)
		assert.Equal(t, "api-pass", password)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"status":            "QUEUED",
			"reference":         "PH-001",
			"CheckoutRequestID": "ws_CO_1",
		})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "api-user", "api-pass", 1234, "https://api.villebiz.com/callback")

	prompt, err := client.RequestPrompt(context.Background(), "ORD-1", 1500, "254712345678")
	require.NoError(t, err)
	require.NotNil(t, prompt)
	assert.True(t, prompt.Success)
	assert.Equal(t, "QUEUED", prompt.Status)
	assert.Equal(t, "ws_CO_1", prompt.CheckoutRequestID)
	assert.NotEmpty(t, prompt.Raw)

	assert.Equal(t, int64(1500), got.Amount)
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, int64(1234), got.ChannelID)
	assert.Equal(t, "m-pesa", got.Provider)
	assert.Equal(t, "ORD-1", got.ExternalReference)
	assert.Equal(t, "https://api.villebiz.com/callback", got.CallbackURL)
}

func TestRequestPromptGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"status":  "FAILED",
		})
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "u", "p", 1, "https://example.com/callback")

	prompt, err := client.RequestPrompt(context.Background(), "ORD-1", 100, "254700000000")
	require.Error(t, err)
	require.NotNil(t, prompt)
	assert.False(t, prompt.Success)
}

func TestRequestPromptTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(nil, server.URL, "u", "p", 1, "https://example.com/callback")

	prompt, err := client.RequestPrompt(context.Background(), "ORD-1", 100, "254700000000")
	assert.Error(t, err)
	assert.Nil(t, prompt)
}
