// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package calllog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates the repository and ensures the call log
// table exists.
func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	r := &PostgresRepository{db: db}
	if err := r.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create call log tables: %w", err)
	}
	return r, nil
}

func (r *PostgresRepository) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS ai_call_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		workflow_name VARCHAR(100) NOT NULL,
		workflow_version VARCHAR(20) NOT NULL DEFAULT '',
		request_id VARCHAR(64) NOT NULL DEFAULT '',
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		client_ip VARCHAR(45) NOT NULL DEFAULT '',
		user_agent VARCHAR(255) NOT NULL DEFAULT '',
		input_hash VARCHAR(64) NOT NULL,
		input_summary JSONB,
		input_bytes BIGINT NOT NULL DEFAULT 0,
		output_hash VARCHAR(64) NOT NULL DEFAULT '',
		output_summary JSONB,
		output_bytes BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		error_code VARCHAR(50) NOT NULL DEFAULT '',
		error_message VARCHAR(500) NOT NULL DEFAULT '',
		tokens_used BIGINT NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_ai_call_logs_user_created ON ai_call_logs(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_ai_call_logs_workflow ON ai_call_logs(workflow_name, created_at);
	`
	_, err := r.db.Exec(query)
	return err
}

func encodeSummary(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) error {
	inputSummary, err := encodeSummary(e.InputSummary)
	if err != nil {
		return fmt.Errorf("failed to encode input summary: %w", err)
	}
	outputSummary, err := encodeSummary(e.OutputSummary)
	if err != nil {
		return fmt.Errorf("failed to encode output summary: %w", err)
	}

	query := `
		INSERT INTO ai_call_logs (user_id, workflow_name, workflow_version, request_id,
			session_id, client_ip, user_agent,
			input_hash, input_summary, input_bytes, output_hash, output_summary, output_bytes,
			status, error_code, error_message, tokens_used, latency_ms, cache_hit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		e.UserID, e.WorkflowName, e.WorkflowVersion, e.RequestID,
		e.SessionID, e.ClientIP, e.UserAgent,
		e.InputHash, inputSummary, e.InputBytes, e.OutputHash, outputSummary, e.OutputBytes,
		e.Status, e.ErrorCode, e.ErrorMessage, e.TokensUsed, e.LatencyMS, e.CacheHit, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert call log: %w", err)
	}
	return nil
}

func (r *PostgresRepository) History(ctx context.Context, userID int64, f HistoryFilter) ([]*Entry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, workflow_name, workflow_version, request_id,
		       session_id, client_ip, user_agent,
		       input_hash, input_summary, input_bytes, output_hash, output_summary, output_bytes,
		       status, error_code, error_message, tokens_used, latency_ms, cache_hit, created_at
		FROM ai_call_logs
		WHERE user_id = $1`
	args := []interface{}{userID}
	if f.Workflow != "" {
		args = append(args, f.Workflow)
		query += fmt.Sprintf(" AND workflow_name = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call history: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var inputSummary, outputSummary []byte
		err := rows.Scan(&e.ID, &e.UserID, &e.WorkflowName, &e.WorkflowVersion, &e.RequestID,
			&e.SessionID, &e.ClientIP, &e.UserAgent,
			&e.InputHash, &inputSummary, &e.InputBytes, &e.OutputHash, &outputSummary, &e.OutputBytes,
			&e.Status, &e.ErrorCode, &e.ErrorMessage, &e.TokensUsed, &e.LatencyMS,
			&e.CacheHit, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		if len(inputSummary) > 0 {
			_ = json.Unmarshal(inputSummary, &e.InputSummary)
		}
		if len(outputSummary) > 0 {
			_ = json.Unmarshal(outputSummary, &e.OutputSummary)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UsageStats(ctx context.Context, userID int64, since time.Time) (*UsageStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(tokens_used), 0),
		       COUNT(*) FILTER (WHERE cache_hit),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COALESCE(AVG(latency_ms), 0)
		FROM ai_call_logs
		WHERE user_id = $1 AND created_at >= $2`

	stats := &UsageStats{ByWorkflow: make(map[string]int64)}
	err := r.db.QueryRowContext(ctx, query, userID, since).Scan(
		&stats.TotalCalls, &stats.TotalTokens, &stats.CacheHits, &stats.ErrorCount, &stats.AvgLatencyMS)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage stats: %w", err)
	}

	byWorkflow := `
		SELECT workflow_name, COUNT(*)
		FROM ai_call_logs
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY workflow_name`

	rows, err := r.db.QueryContext(ctx, byWorkflow, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-workflow stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		stats.ByWorkflow[name] = n
	}
	return stats, rows.Err()
}

func (r *PostgresRepository) WorkflowStats(ctx context.Context, since time.Time) ([]*WorkflowStats, error) {
	query := `
		SELECT workflow_name,
		       COUNT(*),
		       COUNT(DISTINCT user_id),
		       COALESCE(AVG(CASE WHEN cache_hit THEN 1.0 ELSE 0.0 END), 0),
		       COALESCE(AVG(CASE WHEN status = 'error' THEN 1.0 ELSE 0.0 END), 0),
		       COALESCE(AVG(latency_ms), 0),
		       COALESCE(SUM(tokens_used), 0)
		FROM ai_call_logs
		WHERE created_at >= $1
		GROUP BY workflow_name
		ORDER BY COUNT(*) DESC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow stats: %w", err)
	}
	defer rows.Close()

	var out []*WorkflowStats
	for rows.Next() {
		var s WorkflowStats
		err := rows.Scan(&s.WorkflowName, &s.TotalCalls, &s.UniqueUsers,
			&s.CacheHitRate, &s.ErrorRate, &s.AvgLatencyMS, &s.TotalTokens)
		if err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ai_call_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old call logs: %w", err)
	}
	return res.RowsAffected()
}
