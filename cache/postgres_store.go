// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements PersistentStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and ensures the cache table exists.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create cache tables: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS ai_result_cache (
		cache_key VARCHAR(200) PRIMARY KEY,
		workflow_name VARCHAR(100) NOT NULL,
		workflow_version VARCHAR(20) NOT NULL,
		input_hash VARCHAR(64) NOT NULL,
		result JSONB NOT NULL,
		tokens_used BIGINT NOT NULL DEFAULT 0,
		hit_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ai_result_cache_workflow ON ai_result_cache(workflow_name);
	CREATE INDEX IF NOT EXISTS idx_ai_result_cache_expires ON ai_result_cache(expires_at);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Result, error) {
	query := `
		SELECT result, tokens_used, hit_count, created_at, expires_at
		FROM ai_result_cache
		WHERE cache_key = $1 AND expires_at > NOW()`

	var r Result
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&r.Output, &r.TokensUsed, &r.HitCount, &r.CachedAt, &r.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, workflow, version, inputHash string, r *Result) error {
	query := `
		INSERT INTO ai_result_cache (cache_key, workflow_name, workflow_version, input_hash,
			result, tokens_used, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cache_key) DO UPDATE
		SET result = EXCLUDED.result,
		    tokens_used = EXCLUDED.tokens_used,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at`

	_, err := s.db.ExecContext(ctx, query, key, workflow, version, inputHash,
		[]byte(r.Output), r.TokensUsed, r.CachedAt, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementHit(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ai_result_cache SET hit_count = hit_count + 1 WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to increment hit count: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByWorkflow(ctx context.Context, workflow string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_result_cache WHERE workflow_name = $1`, workflow)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_result_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE expires_at > $1),
		       COALESCE(SUM(hit_count), 0),
		       COALESCE(AVG(hit_count), 0),
		       COUNT(*) FILTER (WHERE expires_at <= $1)
		FROM ai_result_cache`

	var st Stats
	err := s.db.QueryRowContext(ctx, query, now).Scan(
		&st.Entries, &st.TotalHits, &st.AvgHitCount, &st.Expired)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return &st, nil
}
