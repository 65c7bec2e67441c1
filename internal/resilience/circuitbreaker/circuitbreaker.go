// Package circuitbreaker wraps github.com/sony/gobreaker with the trip
// policy and bookkeeping the bridge uses for Slack destinations and the
// rule store.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config describes one breaker.
type Config struct {
	// Name appears in logs and is the key a Group stores the breaker under.
	Name string

	// HalfOpenRequests are let through after Cooldown to probe recovery.
	HalfOpenRequests uint32

	// Window resets the closed-state counters. Zero never resets them.
	Window time.Duration

	// Cooldown is how long an open breaker rejects calls.
	Cooldown time.Duration

	// TripRatio is the failure share that opens the breaker once
	// MinRequests calls were seen in the window. 1.0 means every call failed.
	TripRatio   float64
	MinRequests uint32

	// IsSuccessful decides which errors leave the counters alone.
	IsSuccessful func(err error) bool

	// OnStateChange runs after the transition is logged.
	OnStateChange func(name string, from, to gobreaker.State)
}

// SlackDestinationConfig opens a destination after five straight failures
// and probes it again after five minutes.
func SlackDestinationConfig(name string) Config {
	return Config{
		Name:             name,
		HalfOpenRequests: 1,
		Window:           time.Minute,
		Cooldown:         5 * time.Minute,
		TripRatio:        1.0,
		MinRequests:      5,
	}
}

func (c Config) settings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        c.Name,
		MaxRequests: c.HalfOpenRequests,
		Interval:    c.Window,
		Timeout:     c.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < c.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= c.TripRatio
		},
		IsSuccessful: c.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			slog.Log(context.Background(), level, "circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if c.OnStateChange != nil {
				c.OnStateChange(name, from, to)
			}
		},
	}
}

// CircuitBreaker is a named gobreaker instance.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// New builds a breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{name: cfg.Name, breaker: gobreaker.NewCircuitBreaker(cfg.settings())}
}

// Do runs fn through cb and returns its typed result. An open breaker
// returns gobreaker.ErrOpenState without calling fn.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.breaker.Execute(func() (any, error) {
		return fn()
	})
	v, _ := out.(T)
	return v, err
}

// Run is Do for calls without a result.
func (cb *CircuitBreaker) Run(fn func() error) error {
	_, err := cb.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == gobreaker.StateOpen }

// IsRejection reports whether err means a breaker refused the call.
func IsRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Group holds one breaker per destination key, created on first use.
type Group struct {
	mu       sync.Mutex
	newCfg   func(name string) Config
	breakers map[string]*CircuitBreaker
}

// NewGroup returns a group whose breakers are configured by newCfg.
func NewGroup(newCfg func(name string) Config) *Group {
	return &Group{newCfg: newCfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for key.
func (g *Group) Get(key string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[key]; ok {
		return cb
	}
	cb := New(g.newCfg(key))
	g.breakers[key] = cb
	return cb
}

// Snapshot returns the state of every breaker created so far.
func (g *Group) Snapshot() map[string]gobreaker.State {
	g.mu.Lock()
	breakers := maps.Clone(g.breakers)
	g.mu.Unlock()

	out := make(map[string]gobreaker.State, len(breakers))
	for k, cb := range breakers {
		out[k] = cb.State()
	}
	return out
}
