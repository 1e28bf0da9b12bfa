// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenchainz/gateway/entitlements"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db}, mock
}

func workflowRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "version", "type", "description", "deployment", "max_tokens",
		"minimum_tier", "required_feature", "cacheable", "cache_ttl_seconds",
		"rate_limit_free", "rate_limit_pro", "rate_limit_enterprise",
		"is_active", "created_at", "updated_at",
	})
}

func TestStoreGet(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM ai_workflows\s+WHERE LOWER\(name\)`).
		WithArgs("carbon-estimator", "1.0").
		WillReturnRows(workflowRows().AddRow(
			int64(1), "carbon-estimator", "1.0", "carbon_estimator", "", "gpt-4o-mini", 1024,
			"free", "canAccessCarbon", true, 3600, 10, 100, -1, true, now, now))

	w, err := store.Get(context.Background(), "carbon-estimator", "1.0")
	require.NoError(t, err)
	assert.Equal(t, entitlements.TierFree, w.MinimumTier)
	assert.Equal(t, time.Hour, w.CacheTTL)
	assert.True(t, w.Cacheable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM ai_workflows`).
		WithArgs("missing", "1.0").
		WillReturnRows(workflowRows())

	_, err := store.Get(context.Background(), "missing", "1.0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreInsertDuplicate(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO ai_workflows`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Insert(context.Background(), &Workflow{
		Name: "carbon-estimator", Version: "1.0", Type: "carbon_estimator",
		MinimumTier: entitlements.TierFree,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStoreDeactivateNotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ai_workflows`).
		WithArgs("missing", "1.0").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Deactivate(context.Background(), "missing", "1.0")
	assert.ErrorIs(t, err, ErrNotFound)
}
