package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// WhatsAppChannel delivers buyer-facing messages through a Wati session
// message endpoint.
type WhatsAppChannel struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

func NewWhatsAppChannelFromEnv() *WhatsAppChannel {
	return NewWhatsAppChannel(nil, os.Getenv("WATI_URL"), os.Getenv("WATI_API_KEY"))
}

func NewWhatsAppChannel(httpClient *http.Client, url, apiKey string) *WhatsAppChannel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &WhatsAppChannel{httpClient: httpClient, url: url, apiKey: apiKey}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

type watiMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (c *WhatsAppChannel) Send(ctx context.Context, event Event) error {
	if event.BuyerPhone == "" {
		return fmt.Errorf("order %s has no buyer phone number", event.OrderReference)
	}

	payload, err := json.Marshal(watiMessage{
		Phone:   event.BuyerPhone,
		Message: fmt.Sprintf("%s\n\n%s", event.Title, event.Body),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v1/sendSessionMessage", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wati returned status %d", resp.StatusCode)
	}
	return nil
}
