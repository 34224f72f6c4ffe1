// Package repository stores round reports in PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"github.com/fortresslogs/ctfround/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewDB opens a connection pool and verifies it with a ping.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("database connection established",
			zap.String("host", poolCfg.ConnConfig.Host),
			zap.String("database", poolCfg.ConnConfig.Database),
			zap.Int32("max_conns", poolCfg.MaxConns),
		)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id               UUID PRIMARY KEY,
	map_name         TEXT NOT NULL,
	round_end        INTEGER NOT NULL,
	analyzed_at      TIMESTAMPTZ NOT NULL,
	points_per_cap   DOUBLE PRECISION NOT NULL,
	points_per_bonus DOUBLE PRECISION NOT NULL,
	scored_by_replay BOOLEAN NOT NULL,
	winner           TEXT NOT NULL,
	checksum         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS round_scores (
	round_id UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	team     TEXT NOT NULL,
	score    INTEGER NOT NULL,
	PRIMARY KEY (round_id, team)
);

CREATE TABLE IF NOT EXISTS flag_movements (
	round_id      UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	team          TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	movement      TEXT NOT NULL,
	carrier       TEXT NOT NULL,
	fragger       TEXT NOT NULL,
	current_score DOUBLE PRECISION NOT NULL,
	game_time     INTEGER NOT NULL,
	PRIMARY KEY (round_id, team, seq)
);

CREATE TABLE IF NOT EXISTS player_flag_stats (
	round_id        UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	player_id       TEXT NOT NULL,
	player_name     TEXT NOT NULL,
	team            TEXT NOT NULL,
	carries         INTEGER NOT NULL,
	initial_touches INTEGER NOT NULL,
	throws          INTEGER NOT NULL,
	captures        INTEGER NOT NULL,
	carry_seconds   INTEGER NOT NULL
);
`

// Migrate creates the report tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
