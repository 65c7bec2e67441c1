package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
		Retryable:    func(err error) bool { return errors.Is(err, errTransient) },
		OnRetry:      func(int, time.Duration, error) {},
	}
}

func TestWithBackoff(t *testing.T) {
	t.Run("TC-1: first success makes one call", func(t *testing.T) {
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("TC-2: succeeds on the last attempt", func(t *testing.T) {
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("TC-3: exhausted attempts wrap the last error", func(t *testing.T) {
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("TC-4: permanent error returned unchanged", func(t *testing.T) {
		permanent := errors.New("permanent")
		calls := 0
		err := WithBackoff(context.Background(), fastConfig(), func() error {
			calls++
			return permanent
		})
		assert.Same(t, permanent, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("TC-5: zero attempts still calls once", func(t *testing.T) {
		cfg := fastConfig()
		cfg.MaxAttempts = 0
		calls := 0
		err := WithBackoff(context.Background(), cfg, func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, calls)
	})

	t.Run("TC-6: cancellation stops the wait", func(t *testing.T) {
		cfg := fastConfig()
		cfg.InitialDelay = time.Second
		cfg.MaxDelay = time.Second

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := WithBackoff(ctx, cfg, func() error { return errTransient })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("TC-7: context errors from fn are not retried", func(t *testing.T) {
		cfg := fastConfig()
		cfg.Retryable = func(error) bool { return true }
		calls := 0
		err := WithBackoff(context.Background(), cfg, func() error {
			calls++
			return context.DeadlineExceeded
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, calls)
	})
}

func TestWithBackoff_Waits(t *testing.T) {
	t.Run("TC-1: delays grow and stay capped", func(t *testing.T) {
		cfg := fastConfig()
		cfg.MaxAttempts = 4
		var waits []time.Duration
		cfg.OnRetry = func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) }

		_ = WithBackoff(context.Background(), cfg, func() error { return errTransient })
		assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}, waits)
	})

	t.Run("TC-2: delay hint is used and capped", func(t *testing.T) {
		cfg := fastConfig()
		cfg.MaxAttempts = 2
		cfg.DelayHint = func(error) (time.Duration, bool) { return time.Hour, true }
		var waits []time.Duration
		cfg.OnRetry = func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) }

		_ = WithBackoff(context.Background(), cfg, func() error { return errTransient })
		assert.Equal(t, []time.Duration{cfg.MaxDelay}, waits)
	})

	t.Run("TC-3: attempt numbers start at one", func(t *testing.T) {
		cfg := fastConfig()
		var attempts []int
		cfg.OnRetry = func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) }

		_ = WithBackoff(context.Background(), cfg, func() error { return errTransient })
		assert.Equal(t, []int{1, 2}, attempts)
	})
}

func TestJitter(t *testing.T) {
	d := 100 * time.Millisecond
	for range 50 {
		got := jitter(d, 0.1)
		assert.GreaterOrEqual(t, got, d)
		assert.LessOrEqual(t, got, d+10*time.Millisecond)
	}
	assert.Equal(t, d, jitter(d, 0))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
