// Package mattermost implements the StatusClient port against the Mattermost
// HTTP API v4, authenticating with session identifiers captured from a browser.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
	"github.com/ericfisherdev/mmpresence/internal/domain/port/driven"
)

const (
	// DefaultRateLimit is the default outbound request rate (requests per second).
	DefaultRateLimit = 5

	// maxErrorBody caps how much of a failed response body is kept in APIError.
	maxErrorBody = 512
)

// Compile-time interface satisfaction check.
var _ driven.StatusClient = (*Client)(nil)

// Client implements the driven.StatusClient port over plain HTTP.
type Client struct {
	httpClient *http.Client
	scheme     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithScheme overrides the URL scheme ("https" in production).
func WithScheme(scheme string) Option {
	return func(c *Client) {
		c.scheme = scheme
	}
}

// WithRateLimit sets a custom outbound rate limit. Zero or negative disables limiting.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Mattermost status client. The default http.Client
// has no timeout; callers bound requests through the context.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		scheme:     "https",
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned for non-2xx responses and malformed bodies.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mattermost API error: %s %s: %s (status %d)", e.Method, e.URL, e.Message, e.StatusCode)
}

// Unwrap lets errors.Is match driven.ErrRemoteCall.
func (e *APIError) Unwrap() error {
	return driven.ErrRemoteCall
}

// statusResponse is the subset of the Mattermost status payload we read.
type statusResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// statusRequest is the PUT body for a status update.
type statusRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// ReadStatus fetches the user's current status. Success requires a 2xx
// response with a JSON body carrying a non-empty "status" field.
func (c *Client) ReadStatus(ctx context.Context, target model.Target) (model.Status, error) {
	resp, reqURL, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.MethodGet, reqURL); err != nil {
		return "", err
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return "", &APIError{
			Method:     http.MethodGet,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")),
		}
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &APIError{
			Method:     http.MethodGet,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode body: %v", err),
		}
	}
	if body.Status == "" {
		return "", &APIError{
			Method:     http.MethodGet,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Message:    "response has no status field",
		}
	}

	c.logger.Debug("status read", "domain", target.Domain, "user_id", target.UserID, "status", body.Status)
	return model.Status(body.Status), nil
}

// WriteStatus sets the user's status. Success requires a 2xx response; the
// body is not inspected.
func (c *Client) WriteStatus(ctx context.Context, target model.Target, status model.Status) error {
	payload, err := json.Marshal(statusRequest{UserID: target.UserID, Status: string(status)})
	if err != nil {
		return fmt.Errorf("encode status request: %w", err)
	}

	resp, reqURL, err := c.do(ctx, http.MethodPut, target, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.MethodPut, reqURL); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("status updated", "domain", target.Domain, "user_id", target.UserID, "status", string(status))
	return nil
}

// StatusURL returns the status endpoint of the target's user.
func (c *Client) StatusURL(target model.Target) string {
	return fmt.Sprintf("%s://%s/api/v4/users/%s/status", c.scheme, target.Domain, url.PathEscape(target.UserID))
}

// do builds, authenticates and sends one request. Transport failures are
// wrapped with driven.ErrRemoteCall.
func (c *Client) do(ctx context.Context, method string, target model.Target, body []byte) (*http.Response, string, error) {
	reqURL := c.StatusURL(target)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, reqURL, fmt.Errorf("%w: rate limit wait: %w", driven.ErrRemoteCall, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, reqURL, fmt.Errorf("create %s request: %w", method, err)
	}

	for key, values := range RequestHeaders(target.Identifiers) {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for _, cookie := range SessionCookies(target.Identifiers) {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, reqURL, fmt.Errorf("%w: %s %s: %w", driven.ErrRemoteCall, method, reqURL, err)
	}

	return resp, reqURL, nil
}

// RequestHeaders returns the fixed header set the web app sends on API calls.
func RequestHeaders(ids model.Identifiers) http.Header {
	h := make(http.Header, 4)
	h.Set("Content-Type", "application/json")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("X-CSRF-Token", ids.CSRFToken)
	h.Set("X-Request-Id", ids.AuthToken)
	return h
}

// SessionCookies returns the session cookies a browser would attach to a
// same-origin request.
func SessionCookies(ids model.Identifiers) []*http.Cookie {
	return []*http.Cookie{
		{Name: model.CookieAuthToken, Value: ids.AuthToken},
		{Name: model.CookieUserID, Value: ids.UserID},
		{Name: model.CookieCSRF, Value: ids.CSRFToken},
	}
}

func checkStatus(resp *http.Response, method, reqURL string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := resp.Status
	if len(msg) > 0 {
		message = string(bytes.TrimSpace(msg))
	}

	return &APIError{
		Method:     method,
		URL:        reqURL,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
