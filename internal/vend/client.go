// Package vend wraps the third-party airtime/data vending provider. The
// provider is an opaque HTTP service; this client only shapes requests,
// bounds their duration and surfaces failures as errors for the caller
// to handle.
package vend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no provider base URL was supplied.
var ErrNotConfigured = errors.New("vend: provider not configured")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// PurchaseRequest describes one vending order.
type PurchaseRequest struct {
	ServiceID string `json:"serviceID"`         // e.g. mtn, glo, mtn-data
	Phone     string `json:"phone"`             // recipient MSISDN
	Amount    int64  `json:"amount"`            // amount in naira
	Variation string `json:"variation_code,omitempty"` // data plan code
	RequestID string `json:"request_id"`
}

// PurchaseResult is the subset of the provider response the platform
// records: the provider's own reference and delivery status.
type PurchaseResult struct {
	Reference string `json:"transactionId"`
	Status    string `json:"status"`
}

// Purchase submits an order and decodes the provider reply. The request
// carries a fresh request id so retries upstream stay idempotent on the
// provider side.
func (c *Client) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	if c == nil || c.baseURL == "" {
		return PurchaseResult{}, ErrNotConfigured
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return PurchaseResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/pay", bytes.NewReader(body))
	if err != nil {
		return PurchaseResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("vend: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("vend: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return PurchaseResult{}, fmt.Errorf("vend: provider returned %d", resp.StatusCode)
	}
	var out PurchaseResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return PurchaseResult{}, fmt.Errorf("vend: decode response: %w", err)
	}
	return out, nil
}
