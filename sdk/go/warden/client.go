package warden

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
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the warden daemon (e.g. "http://127.0.0.1:7399").
	BaseURL string

	// PairingKey is the shared key configured as WARDEN_PAIRING_KEY.
	// Optional: leave empty when the daemon runs without pairing.
	PairingKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 10-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 10 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the warden local API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	pairingKey string
	client     *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("warden: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pairingKey: cfg.PairingKey,
		client:     httpClient,
	}, nil
}

// SaveSettings saves the onboarding profile and returns the generated
// persona. Saving also resets today's intervention counters.
func (c *Client) SaveSettings(ctx context.Context, settings Settings) (*Persona, error) {
	var persona Persona
	if err := c.do(ctx, http.MethodPut, "/v1/settings", settings, &persona); err != nil {
		return nil, err
	}
	return &persona, nil
}

// GetSettings reads the saved profile. Returns a 404 Error (IsNotFound)
// when onboarding has not completed.
func (c *Client) GetSettings(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/v1/settings", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Stats returns today's intervention counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// History returns recent interventions, most recent first.
func (c *Client) History(ctx context.Context, limit int) ([]Intervention, error) {
	path := "/v1/history"
	if limit > 0 {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		path += "?" + params.Encode()
	}

	var resp struct {
		Interventions []Intervention `json:"interventions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Interventions, nil
}

// ActivityToday returns today's committed time per domain.
func (c *Client) ActivityToday(ctx context.Context) (*Activity, error) {
	var activity Activity
	if err := c.do(ctx, http.MethodGet, "/v1/activity/today", nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// Reset wipes settings, persona, activity, stats, and history.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/reset", nil, nil)
}

// Health checks the daemon's health. This endpoint does not require the
// pairing key and works even when the client has the wrong one.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiErrorEnvelope is the daemon's standard error response.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("warden: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("warden: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.pairingKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.pairingKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("warden: %s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("warden: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	return json.Unmarshal(bodyBytes, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
