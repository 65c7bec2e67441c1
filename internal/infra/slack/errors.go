package slack

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoDestination is returned when neither the rule nor its namespace names
// a webhook URL or Web API method.
var ErrNoDestination = errors.New("slack: no destination configured")

// ErrNoToken is returned by Call when the client has no bot token.
var ErrNoToken = errors.New("slack: web api token not configured")

// RateLimitError represents a 429 response.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx response other than 429.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// APIError is a Web API response with ok=false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack api %s: %s", e.Method, e.Code)
}

// AuthError is a Web API rejection of the bot token (invalid, revoked or
// belonging to a deactivated workspace).
type AuthError struct {
	Method string
	Code   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("slack api %s: token rejected (%s)", e.Method, e.Code)
}

// authErrorCodes are the Web API error codes that mean the token is unusable.
var authErrorCodes = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
	"missing_scope":    true,
}

// IsAuthError reports whether err is an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRetryable reports whether a failed call is worth retrying:
// server errors, rate limits and network failures are; client, API and
// auth errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var clientErr *ClientError
	var apiErr *APIError
	var authErr *AuthError
	if errors.As(err, &clientErr) || errors.As(err, &apiErr) || errors.As(err, &authErr) {
		return false
	}

	if errors.Is(err, ErrNoDestination) || errors.Is(err, ErrNoToken) {
		return false
	}

	// Network errors, timeouts and the like.
	return true
}

// RetryAfter extracts the wait requested by a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter, true
	}
	return 0, false
}
