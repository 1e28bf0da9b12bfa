// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"greenchainz/gateway/entitlements"
)

// Store is the durable backing for workflow definitions.
type Store interface {
	List(ctx context.Context, includeInactive bool) ([]*Workflow, error)
	Get(ctx context.Context, name, version string) (*Workflow, error)
	// GetLatest returns the active workflow with the highest version
	// for the name.
	GetLatest(ctx context.Context, name string) (*Workflow, error)
	Insert(ctx context.Context, w *Workflow) (int64, error)
	Update(ctx context.Context, w *Workflow) error
	Deactivate(ctx context.Context, name, version string) error
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and ensures the workflow table
// exists.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create workflow tables: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS ai_workflows (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		version VARCHAR(20) NOT NULL,
		type VARCHAR(50) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		deployment VARCHAR(100) NOT NULL DEFAULT '',
		max_tokens INT NOT NULL DEFAULT 1024,
		minimum_tier VARCHAR(20) NOT NULL DEFAULT 'free',
		required_feature VARCHAR(50) NOT NULL DEFAULT 'canUseAI',
		cacheable BOOLEAN NOT NULL DEFAULT FALSE,
		cache_ttl_seconds INT NOT NULL DEFAULT 0,
		rate_limit_free INT NOT NULL DEFAULT 0,
		rate_limit_pro INT NOT NULL DEFAULT 0,
		rate_limit_enterprise INT NOT NULL DEFAULT -1,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ai_workflows_name_version
		ON ai_workflows(LOWER(name), version);
	`
	_, err := s.db.Exec(query)
	return err
}

const workflowColumns = `id, name, version, type, description, deployment, max_tokens,
	minimum_tier, required_feature, cacheable, cache_ttl_seconds,
	rate_limit_free, rate_limit_pro, rate_limit_enterprise,
	is_active, created_at, updated_at`

func (s *PostgresStore) List(ctx context.Context, includeInactive bool) ([]*Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM ai_workflows`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name, version`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, name, version string) (*Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM ai_workflows
		WHERE LOWER(name) = LOWER($1) AND version = $2`

	w, err := scanWorkflow(s.db.QueryRowContext(ctx, query, name, version))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) GetLatest(ctx context.Context, name string) (*Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM ai_workflows
		WHERE LOWER(name) = LOWER($1) AND is_active = TRUE
		ORDER BY string_to_array(version, '.')::int[] DESC
		LIMIT 1`

	w, err := scanWorkflow(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest workflow: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) Insert(ctx context.Context, w *Workflow) (int64, error) {
	query := `
		INSERT INTO ai_workflows (name, version, type, description, deployment, max_tokens,
			minimum_tier, required_feature, cacheable, cache_ttl_seconds,
			rate_limit_free, rate_limit_pro, rate_limit_enterprise, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (LOWER(name), version) DO NOTHING
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		w.Name, w.Version, w.Type, w.Description, w.Deployment, w.MaxTokens,
		string(w.MinimumTier), w.RequiredFeature, w.Cacheable, int(w.CacheTTL.Seconds()),
		w.RateLimits.Free, w.RateLimits.Pro, w.RateLimits.Enterprise, w.IsActive,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert workflow: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, w *Workflow) error {
	query := `
		UPDATE ai_workflows
		SET type = $3, description = $4, deployment = $5, max_tokens = $6,
		    minimum_tier = $7, required_feature = $8, cacheable = $9,
		    cache_ttl_seconds = $10, rate_limit_free = $11, rate_limit_pro = $12,
		    rate_limit_enterprise = $13, is_active = $14, updated_at = NOW()
		WHERE LOWER(name) = LOWER($1) AND version = $2`

	res, err := s.db.ExecContext(ctx, query,
		w.Name, w.Version, w.Type, w.Description, w.Deployment, w.MaxTokens,
		string(w.MinimumTier), w.RequiredFeature, w.Cacheable, int(w.CacheTTL.Seconds()),
		w.RateLimits.Free, w.RateLimits.Pro, w.RateLimits.Enterprise, w.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, name, version string) error {
	query := `
		UPDATE ai_workflows
		SET is_active = FALSE, updated_at = NOW()
		WHERE LOWER(name) = LOWER($1) AND version = $2`

	res, err := s.db.ExecContext(ctx, query, name, version)
	if err != nil {
		return fmt.Errorf("failed to deactivate workflow: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var w Workflow
	var tier string
	var ttlSeconds int
	err := row.Scan(&w.ID, &w.Name, &w.Version, &w.Type, &w.Description,
		&w.Deployment, &w.MaxTokens, &tier, &w.RequiredFeature,
		&w.Cacheable, &ttlSeconds,
		&w.RateLimits.Free, &w.RateLimits.Pro, &w.RateLimits.Enterprise,
		&w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.MinimumTier = entitlements.ParseTier(tier)
	w.CacheTTL = time.Duration(ttlSeconds) * time.Second
	return &w, nil
}
