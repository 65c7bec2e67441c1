package rulefile

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	t.Run("TC-1: a write to the rule file triggers one reload", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("namespaces: {}\n"), 0o600))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changed := make(chan struct{}, 4)
		done := make(chan error, 1)
		go func() {
			done <- Watch(ctx, path, 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)), func() {
				changed <- struct{}{}
			})
		}()

		// give the watcher time to register
		time.Sleep(100 * time.Millisecond)
		for range 3 {
			require.NoError(t, os.WriteFile(path, []byte("namespaces: {rbm: []}\n"), 0o600))
		}

		select {
		case <-changed:
		case <-time.After(2 * time.Second):
			t.Fatal("no reload after write")
		}
		select {
		case <-changed:
			t.Fatal("writes inside the debounce window must collapse")
		case <-time.After(200 * time.Millisecond):
		}

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("TC-2: missing path fails", func(t *testing.T) {
		err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), time.Millisecond,
			slog.New(slog.NewTextHandler(io.Discard, nil)), func() {})
		assert.Error(t, err)
	})
}

func TestRelevant(t *testing.T) {
	match := func(name string) bool { return filepath.Base(name) == "rules.yaml" }

	assert.True(t, relevant(fsnotify.Event{Name: "/etc/bridge/rules.yaml", Op: fsnotify.Write}, match))
	assert.True(t, relevant(fsnotify.Event{Name: "/etc/bridge/rules.yaml", Op: fsnotify.Rename}, match))
	assert.False(t, relevant(fsnotify.Event{Name: "/etc/bridge/rules.yaml", Op: fsnotify.Chmod}, match))
	assert.False(t, relevant(fsnotify.Event{Name: "/etc/bridge/other.yaml", Op: fsnotify.Write}, match))

	assert.True(t, isRuleFile("a.yml"))
	assert.False(t, isRuleFile("a.yaml.swp"))
}
