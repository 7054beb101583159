// Package payhero talks to the PayHero payments API to raise M-Pesa STK push
// prompts on a payer's phone.
//
// The external_reference given to the gateway is always the order reference
// of the order being paid for. The /callback webhook echoes it back, and the
// reconciler depends on that equality to match a confirmation to its order —
// it is a contract of this client, not a coincidence.
package payhero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const defaultBaseURL = "https://backend.payhero.co.ke"

type Client struct {
	httpClient  *http.Client
	baseURL     string
	username    string
	password    string
	channelID   int64
	callbackURL string
}

// NewClientFromEnv builds a client from PAYHERO_USERNAME, PAYHERO_PASSWORD,
// PAYHERO_CHANNEL_ID, CALLBACK_URL and optionally PAYHERO_API_URL.
func NewClientFromEnv() *Client {
	channelID, _ := strconv.ParseInt(os.Getenv("PAYHERO_CHANNEL_ID"), 10, 64)
	baseURL := os.Getenv("PAYHERO_API_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		username:    os.Getenv("PAYHERO_USERNAME"),
		password:    os.Getenv("PAYHERO_PASSWORD"),
		channelID:   channelID,
		callbackURL: os.Getenv("CALLBACK_URL"),
	}
}

// NewClient is used by tests to point the client at a stub server.
func NewClient(httpClient *http.Client, baseURL, username, password string, channelID int64, callbackURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		username:    username,
		password:    password,
		channelID:   channelID,
		callbackURL: callbackURL,
	}
}

type promptRequest struct {
	Amount            int64  `json:"amount"`
	PhoneNumber       string `json:"phone_number"`
	ChannelID         int64  `json:"channel_id"`
	Provider          string `json:"provider"`
	ExternalReference string `json:"external_reference"`
	CallbackURL       string `json:"callback_url"`
}

// PromptResponse is the provider's acknowledgment of a prompt request.
// Success means the prompt reached the payer's device, not that they paid.
type PromptResponse struct {
	Success           bool            `json:"success"`
	Status            string          `json:"status"`
	Reference         string          `json:"reference"`
	CheckoutRequestID string          `json:"CheckoutRequestID"`
	Raw               json.RawMessage `json:"-"`
}

// RequestPrompt asks the gateway to push a payment prompt for the given order
// reference. It never mutates local order state; confirmation, if it comes,
// arrives later on the callback webhook. Safe to call again with the same
// reference if the payer dismissed or missed the first prompt.
func (c *Client) RequestPrompt(ctx context.Context, externalReference string, amount int64, phoneNumber string) (*PromptResponse, error) {
	body, err := json.Marshal(promptRequest{
		Amount:            amount,
		PhoneNumber:       phoneNumber,
		ChannelID:         c.channelID,
		Provider:          "m-pesa",
		ExternalReference: externalReference,
		CallbackURL:       c.callbackURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payhero request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("payhero response read failed: %w", err)
	}

	var prompt PromptResponse
	if err := json.Unmarshal(raw, &prompt); err != nil {
		return nil, fmt.Errorf("payhero response decode failed: %w", err)
	}
	prompt.Raw = raw

	if resp.StatusCode >= http.StatusBadRequest {
		return &prompt, fmt.Errorf("payhero returned status %d", resp.StatusCode)
	}
	return &prompt, nil
}
