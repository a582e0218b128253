package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// CSRFCookie is the cookie the backend uses to hand out anti-forgery tokens.
const CSRFCookie = "csrftoken"

// DefaultCSRFPath is fetched to obtain the cookie when the jar has none.
const DefaultCSRFPath = "/api/csrf"

// ErrNoCSRFCookie is returned when the backend never set the cookie.
var ErrNoCSRFCookie = errors.New("backend did not set a csrftoken cookie")

// StaticCredentials sends a fixed token.
type StaticCredentials string

// CSRFToken returns the configured token.
func (s StaticCredentials) CSRFToken(context.Context) (string, error) {
	return string(s), nil
}

// NoCredentials sends no token.
type NoCredentials struct{}

// CSRFToken returns an empty token.
func (NoCredentials) CSRFToken(context.Context) (string, error) {
	return "", nil
}

// CookieCredentials reads the token from the csrftoken cookie held in the
// client's cookie jar, fetching a bootstrap path once when it is missing.
type CookieCredentials struct {
	httpClient *http.Client
	base       *url.URL
	path       string
}

// NewCookieCredentials attaches a cookie jar to the client if it has none, so
// cookies set by the backend travel with every later request.
func NewCookieCredentials(c *Client, path string) (*CookieCredentials, error) {
	base, err := url.Parse(c.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	if path == "" {
		path = DefaultCSRFPath
	}
	return &CookieCredentials{httpClient: c.httpClient, base: base, path: path}, nil
}

// CSRFToken returns the cookie value.
func (cc *CookieCredentials) CSRFToken(ctx context.Context) (string, error) {
	if token := cc.lookup(); token != "" {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cc.base.String()+cc.path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := cc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching csrf cookie: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Method: http.MethodGet, Path: cc.path, StatusCode: resp.StatusCode}
	}

	if token := cc.lookup(); token != "" {
		return token, nil
	}
	return "", ErrNoCSRFCookie
}

func (cc *CookieCredentials) lookup() string {
	for _, cookie := range cc.httpClient.Jar.Cookies(cc.base) {
		if cookie.Name == CSRFCookie {
			return cookie.Value
		}
	}
	return ""
}
