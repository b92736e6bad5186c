package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nichewatch/internal/model"
)

// Client hands finalized opportunities to the external alert-delivery
// service (which owns templating and email/webhook fan-out). The pipeline
// only cares about the delivered bit.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a delivery client. endpoint is the full alert intake URL.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: timeout},
	}
}

type deliverResponse struct {
	Delivered bool `json:"delivered"`
}

// Deliver posts the opportunity to the delivery service.
func (c *Client) Deliver(ctx context.Context, opp model.Opportunity) (bool, error) {
	if c == nil || c.endpoint == "" {
		return false, errors.New("delivery: no endpoint configured")
	}
	body, err := json.Marshal(opp)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("delivery: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out deliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Delivered, nil
}
