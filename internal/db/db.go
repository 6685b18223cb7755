package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Connect открывает пул и проверяет соединение
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse database url")
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "create pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS match_results (
		match_id     TEXT PRIMARY KEY,
		room_id      TEXT NOT NULL,
		mode         TEXT NOT NULL,
		winner_id    TEXT,
		draw         BOOLEAN NOT NULL DEFAULT FALSE,
		reason       TEXT NOT NULL,
		rounds       INT NOT NULL,
		participants JSONB NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS player_progress (
		participant_id TEXT PRIMARY KEY,
		experience     BIGINT NOT NULL DEFAULT 0,
		level          INT NOT NULL DEFAULT 1,
		matches_played INT NOT NULL DEFAULT 0,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id             BIGSERIAL PRIMARY KEY,
		participant_id TEXT,
		action         TEXT NOT NULL,
		category       TEXT NOT NULL,
		details        JSONB NOT NULL DEFAULT '{}',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_participant ON audit_logs (participant_id, created_at DESC)`,
}

// Migrate создает таблицы, если их нет
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "migrate")
		}
	}
	return nil
}
