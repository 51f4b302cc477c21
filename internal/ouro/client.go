// Package ouro is a typed client for the conversation backend's REST API.
package ouro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxResponseBody = 8 << 20

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the root URL for API requests, e.g. "https://api.ouro.foundation".
	BaseURL string

	// APIKey authenticates the agent account. Required.
	APIKey string

	// HTTPClient is used for all requests. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to the backend on behalf of the agent account.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ouro: base URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("ouro: base URL must be http or https (got %q)", baseURL)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ouro: API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger.With("component", "ouro"),
	}, nil
}

// envelope is the {data, error} wrapper every endpoint responds with.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

// do executes an authenticated request and decodes the data field of the
// response envelope into out (which may be nil). Non-2xx responses and
// envelopes with a non-null error return an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ouro: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ouro: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ouro: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("ouro: read response: %w", err)
	}

	var env envelope
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(method, path, resp.StatusCode, env.Error, raw)
	}
	if decodeErr != nil {
		return fmt.Errorf("ouro: decode %s %s response: %w", method, path, decodeErr)
	}
	if hasValue(env.Error) {
		return newAPIError(method, path, resp.StatusCode, env.Error, raw)
	}

	c.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode)

	if out == nil || !hasValue(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("ouro: decode %s %s data: %w", method, path, err)
	}
	return nil
}

func hasValue(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}
