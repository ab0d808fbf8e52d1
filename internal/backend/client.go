// Package backend is the HTTP client for the retail backend the agent syncs
// with. The backend is an external collaborator: the agent only assumes an
// idempotent sale-creation endpoint (keyed on the client-generated sale ID), a
// paginated product listing, and a health endpoint for connectivity probes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tillbridge-pos-agent/internal/model"
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// Config holds backend client settings.
type Config struct {
	BaseURL  string
	APIToken string
	PingPath string
	Timeout  time.Duration
}

// Client talks to the retail backend.
type Client struct {
	baseURL  string
	apiToken string
	pingPath string
	http     *http.Client
}

// New creates a backend client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pingPath := cfg.PingPath
	if pingPath == "" {
		pingPath = "/api/v1/health"
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		pingPath: pingPath,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("X-API-Key", c.apiToken)
	}
	return req, nil
}

// Do delivers one queued operation: any transport error or non-2xx response is
// a delivery failure.
func (c *Client) Do(ctx context.Context, method, endpoint string, payload []byte) error {
	req, err := c.newRequest(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// CreateSale posts a sale to the backend. The payload carries the
// client-generated sale ID; the backend must accept redelivery of the same ID
// without creating a second sale.
func (c *Client) CreateSale(ctx context.Context, storeID string, payload *model.SalePayload) (*model.SaleAck, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sale payload: %w", err)
	}

	endpoint := SaleEndpoint(storeID)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var ack model.SaleAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("failed to decode sale ack: %w", err)
	}
	if ack.ID == "" {
		ack.ID = payload.ID
	}
	return &ack, nil
}

// ListProducts fetches one page of the backend's product listing.
func (c *Client) ListProducts(ctx context.Context, storeID string, page, pageSize int) (*model.ProductPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	endpoint := fmt.Sprintf("/api/stores/%s/products?%s", url.PathEscape(storeID), query.Encode())

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var out model.ProductPage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode product page: %w", err)
	}
	return &out, nil
}

// Ping probes the backend health endpoint. A nil return means the WAN link
// and the backend are both up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.pingPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// SaleEndpoint returns the backend path sales are posted to, used both for
// direct calls and for queued operations.
func SaleEndpoint(storeID string) string {
	return fmt.Sprintf("/api/stores/%s/sales", url.PathEscape(storeID))
}
