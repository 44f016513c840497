// Package api is the client for the credit backend: order registration,
// inclusion reporting, credit estimation and user/balance lookups.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/availops/creditflow/internal/core/domain"
)

// Client talks to the credit backend over HTTP. All calls carry the bearer
// auth token; failures map to the purchase failure taxonomy so callers
// never see raw transport errors.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// Config holds backend connection configuration.
type Config struct {
	URL       string        `yaml:"url" validate:"required,url"`
	AuthToken string        `yaml:"auth_token" validate:"required"`
	Timeout   time.Duration `yaml:"timeout"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   cfg.URL,
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// apiError is the backend's error envelope.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e *apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do performs one request and decodes a 2xx body into out. Non-2xx
// responses surface the backend's own message; transport failures are
// classified as network errors. Nothing here retries.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Fail(domain.FailureNetwork, "Failed to reach the credit service", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Fail(domain.FailureNetwork, "Failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed apiError
		_ = json.Unmarshal(raw, &parsed)
		msg := parsed.text()
		if msg == "" {
			msg = fmt.Sprintf("backend returned http %d", resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response from %s: %w", path, err)
	}
	return nil
}
