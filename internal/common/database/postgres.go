// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"loan-workers/internal/common/config"
)

// PostgresClient holds the pool backing the application and verdict tables.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool. No connection is made until first use or Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	lifetime := config.GetDuration(cfg.ConnLifetime)
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(lifetime)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
