// internal/common/database/postgres.go

// Package database holds the infrastructure clients the engine speaks
// through: postgres for authoritative workflow state, redis for the
// directory caches, elasticsearch for the audit mirror. Wrappers stay thin;
// the layers above work against the underlying handles.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"poultry-review-engine/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient owns the connection pool. The store layer works on DB
// directly; the wrapper exists for lifecycle and connectivity checks in the
// binary.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping verifies the pool can reach the server, bounded so a dead host fails
// fast during startup retries.
func (c *PostgresClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
