// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package entitlements

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository and ensures
// the quota table exists.
func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	r := &PostgresRepository{db: db}
	if err := r.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create entitlement tables: %w", err)
	}
	return r, nil
}

func (r *PostgresRepository) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS ai_usage_quotas (
		user_id BIGINT PRIMARY KEY,
		tier VARCHAR(20) NOT NULL DEFAULT 'free',
		period_start TIMESTAMPTZ NOT NULL DEFAULT date_trunc('month', NOW()),
		period_end TIMESTAMPTZ NOT NULL DEFAULT date_trunc('month', NOW()) + INTERVAL '1 month',
		calls_used BIGINT NOT NULL DEFAULT 0,
		tokens_used BIGINT NOT NULL DEFAULT 0,
		custom_call_limit BIGINT,
		custom_token_limit BIGINT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_ai_usage_quotas_period_end ON ai_usage_quotas(period_end);
	`
	_, err := r.db.Exec(query)
	return err
}

// GetUserTier reads the subscription plan and role for a user. An active
// subscription wins over the role; callers map role 'admin' to the admin
// tier.
func (r *PostgresRepository) GetUserTier(ctx context.Context, userID int64) (string, string, error) {
	query := `
		SELECT COALESCE(s.plan, ''), u.role
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id AND s.status = 'active'
		WHERE u.id = $1`

	var plan, role string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&plan, &role)
	if err == sql.ErrNoRows {
		return "", "", ErrUserNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get user tier: %w", err)
	}
	return plan, role, nil
}

func (r *PostgresRepository) EnsureQuota(ctx context.Context, userID int64, tier Tier) error {
	query := `
		INSERT INTO ai_usage_quotas (user_id, tier)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, string(tier)); err != nil {
		return fmt.Errorf("failed to ensure quota row: %w", err)
	}
	return nil
}

// RolloverIfExpired advances the window in a single guarded UPDATE so
// concurrent callers cannot double-reset.
func (r *PostgresRepository) RolloverIfExpired(ctx context.Context, userID int64, now time.Time) error {
	query := `
		UPDATE ai_usage_quotas
		SET period_start = date_trunc('month', $2::timestamptz),
		    period_end = date_trunc('month', $2::timestamptz) + INTERVAL '1 month',
		    calls_used = 0,
		    tokens_used = 0,
		    updated_at = NOW()
		WHERE user_id = $1 AND period_end <= $2`

	if _, err := r.db.ExecContext(ctx, query, userID, now); err != nil {
		return fmt.Errorf("failed to roll over quota period: %w", err)
	}
	return nil
}

// ReserveCall performs the check and the increment in one statement. The
// row lock taken by UPDATE serializes concurrent reservations, so the
// guard can never be satisfied by a stale read.
func (r *PostgresRepository) ReserveCall(ctx context.Context, userID int64, estTokens, callLimit, tokenLimit int64) (*UserQuota, bool, error) {
	query := `
		UPDATE ai_usage_quotas
		SET calls_used = calls_used + 1,
		    tokens_used = tokens_used + $2,
		    updated_at = NOW()
		WHERE user_id = $1
		  AND ($3 < 0 OR calls_used < $3)
		  AND ($4 < 0 OR tokens_used + $2 <= $4)
		RETURNING user_id, tier, period_start, period_end, calls_used, tokens_used,
		          custom_call_limit, custom_token_limit, updated_at`

	q, err := r.scanQuota(r.db.QueryRowContext(ctx, query, userID, estTokens, callLimit, tokenLimit))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve call: %w", err)
	}
	return q, true, nil
}

func (r *PostgresRepository) GetQuota(ctx context.Context, userID int64) (*UserQuota, error) {
	query := `
		SELECT user_id, tier, period_start, period_end, calls_used, tokens_used,
		       custom_call_limit, custom_token_limit, updated_at
		FROM ai_usage_quotas
		WHERE user_id = $1`

	q, err := r.scanQuota(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return q, nil
}

// AddTokens reconciles estimated token usage with actual usage. The
// GREATEST guard keeps a large negative delta from driving usage below
// zero.
func (r *PostgresRepository) AddTokens(ctx context.Context, userID int64, delta int64) error {
	query := `
		UPDATE ai_usage_quotas
		SET tokens_used = GREATEST(0, tokens_used + $2),
		    updated_at = NOW()
		WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID, delta); err != nil {
		return fmt.Errorf("failed to add token usage: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountWorkflowCalls(ctx context.Context, userID int64, workflow string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ai_call_logs
		WHERE user_id = $1 AND workflow_name = $2 AND created_at >= $3`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, userID, workflow, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count workflow calls: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SetCustomLimits(ctx context.Context, userID int64, callLimit, tokenLimit *int64) error {
	query := `
		UPDATE ai_usage_quotas
		SET custom_call_limit = $2,
		    custom_token_limit = $3,
		    updated_at = NOW()
		WHERE user_id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, callLimit, tokenLimit)
	if err != nil {
		return fmt.Errorf("failed to set custom limits: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) scanQuota(row *sql.Row) (*UserQuota, error) {
	var q UserQuota
	var tier string
	err := row.Scan(&q.UserID, &tier, &q.PeriodStart, &q.PeriodEnd,
		&q.CallsUsed, &q.TokensUsed, &q.CustomCallLimit, &q.CustomTokenLimit, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Tier = ParseTier(tier)
	return &q, nil
}
