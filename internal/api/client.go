// Package api is the HTTP client for the contest backend.
package api

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

	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/logger"
)

// Endpoint paths.
const (
	SaveDataPath     = "/api/save-data"
	StartContestPath = "/api/start-contest"
	CSRFHeader       = "X-CSRFToken"
)

// ErrEmptyToken is returned when start-contest succeeds without a token.
var ErrEmptyToken = errors.New("start-contest response carried no token")

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Client talks to the contest backend. It implements gateway.Backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the client timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying client, shared with cookie credentials.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// SaveData persists the contest draft. Success is signalled by status only.
func (c *Client) SaveData(ctx context.Context, req gateway.SaveDataRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = c.doRequest(ctx, http.MethodPost, SaveDataPath, bytes.NewReader(body), nil)
	return err
}

type startContestRequest struct {
	ContestID string `json:"contestId"`
}

type startContestResponse struct {
	Token string `json:"token"`
}

// StartContest asks the backend for an access token for contestID.
func (c *Client) StartContest(ctx context.Context, contestID, csrfToken string) (string, error) {
	body, err := json.Marshal(startContestRequest{ContestID: contestID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := http.Header{}
	if csrfToken != "" {
		headers.Set(CSRFHeader, csrfToken)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, StartContestPath, bytes.NewReader(body), headers)
	if err != nil {
		return "", err
	}

	var result startContestResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Token == "" {
		return "", ErrEmptyToken
	}

	return result.Token, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, headers http.Header) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}

	logger.Debug("api: %s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}
