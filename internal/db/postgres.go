package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnConfig carries the pieces of a PostgreSQL DSN. Values come from the
// caller; this package never reads the environment.
type ConnConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c ConnConfig) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// NewPool opens a connection pool and verifies it with a ping before handing
// it out. Callers own the pool and close it when done.
func NewPool(ctx context.Context, cfg ConnConfig) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	slog.Info("[DB] Connected to PostgreSQL successfully")
	return pool, nil
}
