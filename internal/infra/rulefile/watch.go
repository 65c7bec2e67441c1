package rulefile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls onChange after YAML rule files under path change, at most
// once per debounce window. path may be a file or a directory. The parent
// directory of a file is watched so atomic renames are seen. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating rule watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir, match, err := watchTarget(path)
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Info("watching rule files", slog.String("path", path))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, match) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("rule watcher error", slog.Any("error", err))
		}
	}
}

// watchTarget returns the directory to watch and a filter for the names
// inside it.
func watchTarget(path string) (string, func(string) bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading rules: %w", err)
	}
	if info.IsDir() {
		return path, isRuleFile, nil
	}
	base := filepath.Base(path)
	return filepath.Dir(path), func(name string) bool { return filepath.Base(name) == base }, nil
}

func isRuleFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func relevant(ev fsnotify.Event, match func(string) bool) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return match(ev.Name)
}
