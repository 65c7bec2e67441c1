package db

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	env "slack-bridge/pkg/config"
)

// Dialect selects the SQL flavour of the rule store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var drivers = map[Dialect]string{
	Postgres: "pgx",
	SQLite:   "sqlite",
}

// driverName returns the database/sql driver registered for d.
func (d Dialect) driverName() (string, error) {
	driver, ok := drivers[d]
	if !ok {
		return "", fmt.Errorf("unsupported database dialect %q", d)
	}
	return driver, nil
}

// pingTimeout bounds the connectivity check in Open.
const pingTimeout = 5 * time.Second

// Pool is the database/sql pool tuning.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPool suits a bridge that only reads rules and appends deliveries.
func DefaultPool() Pool {
	return Pool{
		MaxOpen:     10,
		MaxIdle:     5,
		MaxLifetime: time.Hour,
		MaxIdleTime: 30 * time.Minute,
	}
}

// PoolFromEnv overlays DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME on DefaultPool.
// Non-positive values keep the default.
func PoolFromEnv() Pool {
	def := DefaultPool()
	return Pool{
		MaxOpen:     positive(env.GetEnvInt("DB_MAX_OPEN_CONNS", def.MaxOpen), def.MaxOpen),
		MaxIdle:     positive(env.GetEnvInt("DB_MAX_IDLE_CONNS", def.MaxIdle), def.MaxIdle),
		MaxLifetime: positive(env.GetEnvDuration("DB_CONN_MAX_LIFETIME", def.MaxLifetime), def.MaxLifetime),
		MaxIdleTime: positive(env.GetEnvDuration("DB_CONN_MAX_IDLE_TIME", def.MaxIdleTime), def.MaxIdleTime),
	}
}

func positive[T cmp.Ordered](v, def T) T {
	var zero T
	if v <= zero {
		return def
	}
	return v
}

func (p Pool) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}

// Open connects to dsn with the pool from PoolFromEnv and pings it.
// SQLite is held to one connection so delivery inserts never hit
// SQLITE_BUSY.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("open %s: empty DSN", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	pool := PoolFromEnv()
	if dialect == SQLite {
		pool.MaxOpen, pool.MaxIdle = 1, 1
	}
	pool.apply(db)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	slog.Info("rule store connected",
		slog.String("dialect", string(dialect)),
		slog.Int("max_open_conns", pool.MaxOpen),
		slog.Int("max_idle_conns", pool.MaxIdle),
		slog.Duration("conn_max_lifetime", pool.MaxLifetime))
	return db, nil
}
