// Package slack is the wire client for Slack incoming webhooks and the
// Slack Web API. It knows nothing about rules or events.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAPIBaseURL is the Web API root.
	DefaultAPIBaseURL = "https://slack.com/api"

	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 10 * time.Second

	// maxResponseBody caps how much of a response body is read.
	maxResponseBody = 64 * 1024

	// defaultRetryAfter is used when a 429 carries no usable Retry-After.
	defaultRetryAfter = 5 * time.Second
)

// Config contains configuration for the Slack client.
type Config struct {
	// APIBaseURL is the Web API root (overridden in tests)
	APIBaseURL string

	// Token is the bot/OAuth token used for Web API calls
	Token string

	// Timeout is the HTTP request timeout for every call
	Timeout time.Duration

	// RequestsPerSecond and Burst configure the outbound rate limiter
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the client defaults: 10s timeout, 1 req/s with burst 5.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:        DefaultAPIBaseURL,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: 1.0,
		Burst:             5,
	}
}

// APIResponse is the envelope every Web API method returns.
type APIResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// Client posts to incoming webhooks and calls Web API methods.
// It is safe for concurrent use.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a client with the given configuration.
func NewClient(config Config) *Client {
	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultAPIBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(config.RequestsPerSecond, config.Burst),
	}
}

// HasToken reports whether Web API calls are possible.
func (c *Client) HasToken() bool {
	return c.config.Token != ""
}

// PostWebhook posts msg to a legacy incoming webhook as a single
// form-encoded field named "payload".
func (c *Client) PostWebhook(ctx context.Context, webhookURL string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	form := url.Values{"payload": {string(body)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create http request: %s", c.Redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err = c.do(req)
	return err
}

// PushIncomingWebhook posts msg as JSON to a response_url or webhook.
// Slash-command and interactive replies use it.
func (c *Client) PushIncomingWebhook(ctx context.Context, responseURL string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal response payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %s", c.Redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

// Call invokes a Web API method with args encoded as a JSON body and the
// bot token as a bearer credential.
func (c *Client) Call(ctx context.Context, method string, args any) (*APIResponse, error) {
	if c.config.Token == "" {
		return nil, ErrNoToken
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s arguments: %w", method, err)
	}

	endpoint := strings.TrimRight(c.config.APIBaseURL, "/") + "/" + url.PathEscape(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp APIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !resp.OK {
		if authErrorCodes[resp.Error] {
			return &resp, &AuthError{Method: method, Code: resp.Error}
		}
		return &resp, &APIError{Method: method, Code: resp.Error}
	}
	if resp.Warning != "" {
		slog.Debug("Slack API warning",
			slog.String("method", method),
			slog.String("warning", resp.Warning))
	}
	return &resp, nil
}

// do applies rate limiting, executes req and maps the status code.
//
// Error types:
//   - 429: *RateLimitError (retryable, contains retry_after duration)
//   - 4xx (non-429): *ClientError (non-retryable)
//   - 5xx: *ServerError (retryable)
//   - Network error: wrapped transport error (retryable)
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{msg: c.Redact(err.Error()), err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Message:    "Slack rate limit exceeded",
			RetryAfter: extractRetryAfter(resp),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack client error %d: %s", resp.StatusCode, c.Redact(string(body))),
		}
	case resp.StatusCode >= 500:
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack server error %d: %s", resp.StatusCode, c.Redact(string(body))),
		}
	default:
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}

// transportError wraps a network failure with a redacted message while
// keeping the original error reachable for errors.Is/As.
type transportError struct {
	msg string
	err error
}

func (e *transportError) Error() string { return "execute http request: " + e.msg }
func (e *transportError) Unwrap() error { return e.err }

// extractRetryAfter reads the Retry-After header (seconds).
func extractRetryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}

// webhookSecretPath matches the secret part of an incoming-webhook URL.
var webhookSecretPath = regexp.MustCompile(`(hooks\.slack\.com/(?:services|workflows|triggers)/)[^\s"']+`)

// Redact removes the bot token and webhook secrets from s.
func (c *Client) Redact(s string) string {
	return Redact(s, c.config.Token)
}

// Redact removes secrets (and webhook URL paths) from s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	return webhookSecretPath.ReplaceAllString(s, "${1}[REDACTED]")
}
