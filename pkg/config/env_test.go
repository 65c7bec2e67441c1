package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	assert.Equal(t, "def", GetEnvString("BRIDGE_TEST_STR", "def"))
	t.Setenv("BRIDGE_TEST_STR", "set")
	assert.Equal(t, "set", GetEnvString("BRIDGE_TEST_STR", "def"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("BRIDGE_TEST_INT", "12")
	assert.Equal(t, 12, GetEnvInt("BRIDGE_TEST_INT", 4))

	t.Setenv("BRIDGE_TEST_INT", "12abc")
	assert.Equal(t, 4, GetEnvInt("BRIDGE_TEST_INT", 4))
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("BRIDGE_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, GetEnvFloat("BRIDGE_TEST_FLOAT", 1))

	t.Setenv("BRIDGE_TEST_FLOAT", "fast")
	assert.Equal(t, 1.0, GetEnvFloat("BRIDGE_TEST_FLOAT", 1))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"FALSE", false},
		{"yes", true}, // unparsable, default kept
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("BRIDGE_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, GetEnvBool("BRIDGE_TEST_BOOL", true))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("BRIDGE_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, GetEnvDuration("BRIDGE_TEST_DUR", time.Second))

	t.Setenv("BRIDGE_TEST_DUR", "90")
	assert.Equal(t, time.Second, GetEnvDuration("BRIDGE_TEST_DUR", time.Second))
}

func TestGetEnvStringList(t *testing.T) {
	def := []string{"rbm"}
	assert.Equal(t, def, GetEnvStringList("BRIDGE_TEST_LIST", def))

	t.Setenv("BRIDGE_TEST_LIST", " rbm , shop,,")
	assert.Equal(t, []string{"rbm", "shop"}, GetEnvStringList("BRIDGE_TEST_LIST", def))

	t.Setenv("BRIDGE_TEST_LIST", " , ")
	assert.Equal(t, def, GetEnvStringList("BRIDGE_TEST_LIST", def))
}
