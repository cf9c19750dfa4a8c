package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRejected marks a notification the provider refused outright (4xx).
// Retrying it will not help.
var ErrRejected = errors.New("notification rejected by provider")

// Client sends notifications to the provider webhook (push/SMS fan-out).
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	stubMode   bool
	now        func() time.Time
}

// NewClient creates a new webhook client with the given configuration
func NewClient(baseURL, secret string, stubMode bool) *Client {
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stubMode:   stubMode,
		now:        time.Now,
	}
}

// Send delivers n to the provider and returns its receipt.
func (c *Client) Send(ctx context.Context, n Notification) (*Receipt, error) {
	if c.stubMode {
		// development: accept everything without a network call
		return &Receipt{
			ProviderMessageID: "stub-" + n.DispatchID,
			AcceptedAt:        c.now().UTC(),
		}, nil
	}

	jsonData, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Notify-Secret", c.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.DispatchID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if receipt.AcceptedAt.IsZero() {
		receipt.AcceptedAt = c.now().UTC()
	}

	return &receipt, nil
}
