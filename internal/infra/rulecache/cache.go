// Package rulecache keeps an in-memory snapshot of the rule store and
// refreshes it on a cron schedule, so dispatch never waits on the database.
package rulecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"slack-bridge/internal/domain/entity"
)

// Source lists the rules of one namespace.
type Source interface {
	List(ctx context.Context, namespace string) ([]entity.Rule, error)
}

// Reloader is implemented by sources that must re-read their backing data
// before List reflects changes.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Cache serves FindByTrigger and List from the last successful snapshot.
// Namespaces not yet loaded are read through to the source.
type Cache struct {
	src        Source
	namespaces []string
	logger     *slog.Logger
	metrics    *Metrics

	mu       sync.RWMutex
	snapshot map[string][]entity.Rule
	loadedAt time.Time
}

// New returns an empty cache over src for namespaces.
func New(src Source, namespaces []string, logger *slog.Logger, metrics *Metrics) *Cache {
	return &Cache{
		src:        src,
		namespaces: namespaces,
		logger:     logger,
		metrics:    metrics,
		snapshot:   make(map[string][]entity.Rule),
	}
}

// Refresh reloads every namespace concurrently. The snapshot is swapped
// only when all namespaces loaded; on error the previous snapshot stays.
func (c *Cache) Refresh(ctx context.Context) error {
	start := time.Now()

	if r, ok := c.src.(Reloader); ok {
		if err := r.Reload(ctx); err != nil {
			c.metrics.recordRun("failure", time.Since(start).Seconds())
			return fmt.Errorf("reload rules: %w", err)
		}
	}

	results := make([][]entity.Rule, len(c.namespaces))
	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range c.namespaces {
		g.Go(func() error {
			rules, err := c.src.List(gctx, ns)
			if err != nil {
				return fmt.Errorf("list %s: %w", ns, err)
			}
			results[i] = rules
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.metrics.recordRun("failure", time.Since(start).Seconds())
		return err
	}

	next := make(map[string][]entity.Rule, len(c.namespaces))
	for i, ns := range c.namespaces {
		next[ns] = results[i]
		c.metrics.setRules(ns, len(results[i]))
	}

	c.mu.Lock()
	c.snapshot = next
	c.loadedAt = time.Now()
	c.mu.Unlock()

	c.metrics.recordRun("success", time.Since(start).Seconds())
	c.logger.Debug("rule snapshot refreshed",
		slog.Int("namespaces", len(next)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// LoadedAt returns when the current snapshot was taken; zero before the
// first successful refresh.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Cache) rules(ctx context.Context, namespace string) ([]entity.Rule, error) {
	c.mu.RLock()
	rules, ok := c.snapshot[namespace]
	c.mu.RUnlock()
	if ok {
		return rules, nil
	}
	return c.src.List(ctx, namespace)
}

// FindByTrigger returns the rules of namespace bound to trigger in store order.
func (c *Cache) FindByTrigger(ctx context.Context, namespace string, trigger entity.Trigger) ([]entity.Rule, error) {
	rules, err := c.rules(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Trigger == trigger {
			out = append(out, r)
		}
	}
	return out, nil
}

// List returns a copy of the namespace's rules.
func (c *Cache) List(ctx context.Context, namespace string) ([]entity.Rule, error) {
	rules, err := c.rules(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Rule, len(rules))
	copy(out, rules)
	return out, nil
}

// Start schedules Refresh according to cfg and returns the running
// scheduler. Stop it with Stop().
func (c *Cache) Start(cfg Config) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	sched := cron.New(cron.WithLocation(loc))
	_, err = sched.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("rule refresh failed, keeping previous snapshot",
				slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule rule refresh: %w", err)
	}

	sched.Start()
	c.logger.Info("rule refresh scheduled",
		slog.String("schedule", cfg.Schedule),
		slog.String("timezone", cfg.Timezone))
	return sched, nil
}
