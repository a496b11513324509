// Package core provides the transaction provider: pooled Postgres
// connectivity and per-request transactions exposing typed query
// capabilities.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/io7m-com/idstore-sub007/internal/core/domain"
	"github.com/io7m-com/idstore-sub007/internal/core/repository"
)

// Database wraps the connection pool and opens transactions for requests.
type Database struct {
	pool *pgxpool.Pool
}

// Connect establishes the connection pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Int32("max_conns", pool.Config().MaxConns).
		Msg("Database connection pool established")
	return &Database{pool: pool}, nil
}

// Begin opens a transaction bound to the given privilege role. The caller
// must commit or roll back; the Transaction owns no other resources.
func (d *Database) Begin(ctx context.Context, role domain.Role) (domain.Transaction, error) {
	return repository.Begin(ctx, d.pool, role)
}

// Close closes the connection pool.
func (d *Database) Close() {
	d.pool.Close()
}
