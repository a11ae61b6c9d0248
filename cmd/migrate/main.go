package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tidewave/threadflow/config"
	"github.com/tidewave/threadflow/internal/db"
	"github.com/tidewave/threadflow/internal/logging"
)

// Schema for self-hosted deployments. The REST upserts expect exactly these
// shapes; date stays jsonb because it is an opaque passthrough value.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		text_ref TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT 'anonymous',
		date JSONB,
		url TEXT,
		comment_count INTEGER NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		cluster_id TEXT NOT NULL DEFAULT 'general',
		ai_relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0.5
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL,
		text_ref TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT 'anonymous',
		date JSONB,
		url TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_cluster_id ON posts (cluster_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments (post_id)`,
}

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.ConnConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	})
	if err != nil {
		slog.Error("[Migrate] Unable to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			slog.Error("[Migrate] Statement failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	slog.Info("[Migrate] Schema is up to date", slog.Int("statements", len(statements)))
}
