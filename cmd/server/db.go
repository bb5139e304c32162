package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actuallystonmai/availability-service/internal/config"
	"github.com/actuallystonmai/availability-service/internal/logging"
)

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.PoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := waitForDB(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logging.Info().Msg("connected to PostgreSQL")
	return pool, nil
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		logging.Info().Int("attempt", i+1).Msg("waiting for database")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func migrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("migrations/create_tables.down.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	logging.Info().Msg("migrations dropped successfully")
	return nil
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("migrations/create_tables.up.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	logging.Info().Msg("migrations applied successfully")
	return nil
}
