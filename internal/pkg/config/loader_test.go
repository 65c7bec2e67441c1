package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvWithFallback(t *testing.T) {
	t.Run("TC-1: unset uses default silently", func(t *testing.T) {
		got := LoadEnvWithFallback("BRIDGE_TEST_SCHEDULE", "*/5 * * * *", ValidateCronSchedule)
		assert.Equal(t, "*/5 * * * *", got.Value)
		assert.False(t, got.FallbackApplied)
		assert.Empty(t, got.Warnings)
	})

	t.Run("TC-2: valid value", func(t *testing.T) {
		t.Setenv("BRIDGE_TEST_SCHEDULE", "0 * * * *")
		got := LoadEnvWithFallback("BRIDGE_TEST_SCHEDULE", "*/5 * * * *", ValidateCronSchedule)
		assert.Equal(t, "0 * * * *", got.Value)
		assert.False(t, got.FallbackApplied)
	})

	t.Run("TC-3: invalid value falls back with a warning", func(t *testing.T) {
		t.Setenv("BRIDGE_TEST_SCHEDULE", "every minute")
		got := LoadEnvWithFallback("BRIDGE_TEST_SCHEDULE", "*/5 * * * *", ValidateCronSchedule)
		assert.Equal(t, "*/5 * * * *", got.Value)
		assert.True(t, got.FallbackApplied)
		assert.Len(t, got.Warnings, 1)
		assert.Contains(t, got.Warnings[0], "BRIDGE_TEST_SCHEDULE")
	})

	t.Run("TC-4: blank counts as unset", func(t *testing.T) {
		t.Setenv("BRIDGE_TEST_SCHEDULE", "   ")
		got := LoadEnvWithFallback("BRIDGE_TEST_SCHEDULE", "x", nil)
		assert.Equal(t, "x", got.Value)
		assert.False(t, got.FallbackApplied)
	})
}

func TestLoadEnvDuration(t *testing.T) {
	within := func(d time.Duration) error { return ValidateDuration(d, time.Second, time.Minute) }

	tests := []struct {
		name     string
		env      string
		want     time.Duration
		fallback bool
	}{
		{"TC-1: valid", "45s", 45 * time.Second, false},
		{"TC-2: unparsable", "soon", 30 * time.Second, true},
		{"TC-3: out of range", "2h", 30 * time.Second, true},
		{"TC-4: compound", "1m0s", time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BRIDGE_TEST_TIMEOUT", tt.env)
			got := LoadEnvDuration("BRIDGE_TEST_TIMEOUT", 30*time.Second, within)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.fallback, got.FallbackApplied)
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	positive := func(v int) error { return ValidateIntRange(v, 1, 64) }

	t.Setenv("BRIDGE_TEST_WORKERS", "8")
	assert.Equal(t, 8, LoadEnvInt("BRIDGE_TEST_WORKERS", 4, positive).Value)

	t.Setenv("BRIDGE_TEST_WORKERS", "4.5")
	got := LoadEnvInt("BRIDGE_TEST_WORKERS", 4, positive)
	assert.Equal(t, 4, got.Value)
	assert.True(t, got.FallbackApplied)

	t.Setenv("BRIDGE_TEST_WORKERS", "0")
	assert.True(t, LoadEnvInt("BRIDGE_TEST_WORKERS", 4, positive).FallbackApplied)
}
