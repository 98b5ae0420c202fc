// Package pihole implements a session-based client for the Pi-hole v6
// REST admin API. Authentication uses SID tokens obtained from /api/auth;
// the password itself is sent exactly once per session and never copied
// into errors or log output.
package pihole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/gravityctl/pkg/httputil"
)

// Client talks to a single Pi-hole v6 instance.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	// Session management
	mu             sync.RWMutex
	sid            string
	sessionExpires time.Time
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a new Pi-hole v6 API client.
func New(baseURL, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		password:   password,
		httpClient: httputil.DefaultClient(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the configured instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sessionResponse represents the auth response from Pi-hole v6.
type sessionResponse struct {
	Session struct {
		Valid    bool   `json:"valid"`
		SID      string `json:"sid"`
		CSRF     string `json:"csrf"`
		Validity int    `json:"validity"` // Seconds until expiration
		Message  string `json:"message"`
	} `json:"session"`
}

// authenticate obtains a session ID from Pi-hole v6.
func (c *Client) authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if we have a valid session
	if c.sid != "" && time.Now().Before(c.sessionExpires) {
		return nil
	}

	authURL := c.baseURL + "/api/auth"

	payload := struct {
		Password string `json:"password"`
	}{
		Password: c.password,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var session sessionResponse
	if err := json.Unmarshal(respBody, &session); err != nil {
		return fmt.Errorf("parsing auth response: %w", err)
	}

	if !session.Session.Valid {
		msg := session.Session.Message
		if msg == "" {
			msg = "invalid credentials"
		}
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}

	c.sid = session.Session.SID
	// Expire 30 seconds early to avoid race conditions
	validity := time.Duration(session.Session.Validity-30) * time.Second
	if validity < 30*time.Second {
		validity = 30 * time.Second
	}
	c.sessionExpires = time.Now().Add(validity)

	c.logger.Debug("authenticated with Pi-hole v6",
		slog.Duration("validity", validity))

	return nil
}

// getSID returns the current SID, refreshing if necessary.
func (c *Client) getSID(ctx context.Context) (string, error) {
	if err := c.authenticate(ctx); err != nil {
		return "", err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sid, nil
}

// Close ends the API session. The remote session slot is released so
// repeated runs do not exhaust the appliance's session limit. Close is
// best-effort: callers log the returned error rather than failing on it.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	sid := c.sid
	c.sid = ""
	c.sessionExpires = time.Time{}
	c.mu.Unlock()

	if sid == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/auth", nil)
	if err != nil {
		return fmt.Errorf("creating logout request: %w", err)
	}
	req.Header.Set("X-FTL-SID", sid)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Pi-hole session closed")
	return nil
}

// doRequest performs an authenticated request to the Pi-hole v6 API and
// returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	sid, err := c.getSID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if reqBody != nil {
		reqBodyBytes, marshalErr := json.Marshal(reqBody)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling request: %w", marshalErr)
		}
		bodyReader = bytes.NewReader(reqBodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-FTL-SID", sid)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Session may have expired server-side; drop it so the next
		// call re-authenticates.
		c.mu.Lock()
		c.sid = ""
		c.sessionExpires = time.Time{}
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: session rejected", ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusConflict:
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody), Err: ErrConflict}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// getJSON performs a GET and unmarshals the response into a generic map.
// Most read endpoints return free-form documents that are passed through
// to the caller verbatim.
func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody(body)
}

// postJSON performs a POST with an optional JSON body and decodes the reply.
func (c *Client) postJSON(ctx context.Context, path string, reqBody any) (map[string]any, error) {
	body, err := c.doRequest(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return nil, err
	}
	return decodeBody(body)
}

// decodeBody unmarshals a response body into a map. Empty bodies (204
// responses) decode to an empty map.
func decodeBody(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return out, nil
}

// pathEscape escapes a value for use as a single URL path segment.
func pathEscape(v string) string {
	return url.PathEscape(v)
}
