package circuitbreaker

import (
	"context"
	"database/sql"
	"time"
)

// RuleStoreConfig opens the rule store breaker after five straight query
// failures and probes the database again after thirty seconds.
func RuleStoreConfig() Config {
	return Config{
		Name:             "rule-store",
		HalfOpenRequests: 3,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		TripRatio:        1.0,
		MinRequests:      5,
	}
}

// DB puts every rule store query behind one breaker, so a database outage
// fails dispatches at once instead of waiting out a connect timeout per
// event.
type DB struct {
	*CircuitBreaker
	db *sql.DB
}

// NewDBCircuitBreaker wraps db with RuleStoreConfig.
func NewDBCircuitBreaker(db *sql.DB) *DB {
	return WrapDB(db, RuleStoreConfig())
}

// WrapDB wraps db with a breaker built from cfg.
func WrapDB(db *sql.DB, cfg Config) *DB {
	return &DB{CircuitBreaker: New(cfg), db: db}
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return Do(d.CircuitBreaker, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return Do(d.CircuitBreaker, func() (sql.Result, error) {
		return d.db.ExecContext(ctx, query, args...)
	})
}
