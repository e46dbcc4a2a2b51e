// Package repository handles database connections and data access.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB holds the database handle shared by all repositories. Postgres is
// reached through a pgx pool bridged to database/sql so both drivers run
// the same queries.
type DB struct {
	SQL    *sql.DB
	Driver string

	pool *pgxpool.Pool
}

// PoolConfig tunes the Postgres connection pool.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Open connects to the store selected by driver.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*DB, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres:
		return ConnectPostgres(ctx, dsn, pool)
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ConnectPostgres establishes a connection to PostgreSQL using the provided database URL.
func ConnectPostgres(ctx context.Context, dbURL string, pool PoolConfig) (*DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 30
	config.MinConns = 5
	if pool.MaxConns > 0 {
		config.MaxConns = pool.MaxConns
	}
	if pool.MinConns > 0 {
		config.MinConns = min(pool.MinConns, config.MaxConns)
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("db connected",
		slog.String("driver", DriverPostgres),
		slog.String("max_conns", fmt.Sprintf("%d", config.MaxConns)),
		slog.String("min_conns", fmt.Sprintf("%d", config.MinConns)),
	)

	return &DB{SQL: stdlib.OpenDBFromPool(p), Driver: DriverPostgres, pool: p}, nil
}

// OpenSQLite opens an embedded SQLite store at path (":memory:" for a
// throwaway database).
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite has a single writer, and every :memory: connection is its own
	// database, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	slog.Info("db connected", slog.String("driver", DriverSQLite), slog.String("path", path))

	return &DB{SQL: db, Driver: DriverSQLite}, nil
}

// Close closes the database handle and the underlying pool.
func (db *DB) Close() {
	if db.SQL != nil {
		_ = db.SQL.Close()
	}
	if db.pool != nil {
		db.pool.Close()
	}
	slog.Info("db connection closed", slog.String("driver", db.Driver))
}

// Health checks if the database connection is healthy.
func (db *DB) Health(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}
