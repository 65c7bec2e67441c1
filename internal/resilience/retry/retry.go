// Package retry re-runs an operation after transient failures, waiting a
// growing, jittered delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// ErrExhausted wraps the last failure once every attempt has been used.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config controls one retried operation.
type Config struct {
	// MaxAttempts counts the first call. Values below 1 mean a single call.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFraction adds up to this share of the delay at random (0 to 1).
	JitterFraction float64

	// Retryable classifies failures. IsRetryable is used when nil.
	Retryable func(error) bool

	// DelayHint lets a failure choose the next wait, e.g. Slack's
	// Retry-After on a 429. Hints are capped by MaxDelay.
	DelayHint func(error) (time.Duration, bool)

	// OnRetry is called before each wait. The default logs a warning.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// SlackDeliveryConfig is the policy for one Slack send: a few quick
// attempts that fit inside a rule timeout.
func SlackDeliveryConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// schedule yields the wait before each retry.
type schedule struct {
	next time.Duration
	cfg  Config
}

func (s *schedule) wait(err error) time.Duration {
	d := s.next
	if s.cfg.DelayHint != nil {
		if hint, ok := s.cfg.DelayHint(err); ok && hint > 0 {
			d = hint
		}
	}
	if s.cfg.MaxDelay > 0 && d > s.cfg.MaxDelay {
		d = s.cfg.MaxDelay
	}

	grown := time.Duration(float64(s.next) * s.cfg.Multiplier)
	if s.cfg.MaxDelay > 0 && grown > s.cfg.MaxDelay {
		grown = s.cfg.MaxDelay
	}
	s.next = jitter(grown, s.cfg.JitterFraction)
	return d
}

// WithBackoff calls fn until it succeeds, returns a permanent error, the
// attempts run out, or ctx is done. Context errors are never retried.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	onRetry := cfg.OnRetry
	if onRetry == nil {
		onRetry = logRetry(attempts)
	}

	sched := &schedule{next: cfg.InitialDelay, cfg: cfg}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if isContextErr(err) || !retryable(err) {
			return err
		}
		if attempt == attempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
		}

		wait := sched.wait(err)
		onRetry(attempt, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, ctx.Err())
		}
	}
}

func logRetry(attempts int) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", wait),
			slog.Any("error", err))
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable retries network timeouts and connection-level syscall errors.
func IsRetryable(err error) bool {
	if err == nil || isContextErr(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- jitter does not need a secure source.
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
