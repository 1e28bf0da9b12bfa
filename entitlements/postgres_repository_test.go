// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresRepository{db: db}, mock
}

func TestPostgresGetUserTier(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COALESCE\(s.plan, ''\), u.role`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"plan", "role"}).AddRow("premium", "buyer"))

	plan, role, err := repo.GetUserTier(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "premium", plan)
	assert.Equal(t, "buyer", role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetUserTierNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"plan", "role"}))

	_, _, err := repo.GetUserTier(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresReserveCallSuccess(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"user_id", "tier", "period_start", "period_end",
		"calls_used", "tokens_used", "custom_call_limit", "custom_token_limit", "updated_at",
	}).AddRow(int64(7), "pro", now, now.AddDate(0, 1, 0), int64(3), int64(1200), nil, nil, now)

	mock.ExpectQuery(`UPDATE ai_usage_quotas`).
		WithArgs(int64(7), int64(400), int64(500), int64(500000)).
		WillReturnRows(rows)

	q, ok, err := repo.ReserveCall(context.Background(), 7, 400, 500, 500000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), q.CallsUsed)
	assert.Equal(t, TierPro, q.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReserveCallGuardFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	// guard fails: UPDATE matches no row, RETURNING yields nothing
	mock.ExpectQuery(`UPDATE ai_usage_quotas`).
		WithArgs(int64(7), int64(400), int64(500), int64(500000)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	q, ok, err := repo.ReserveCall(context.Background(), 7, 400, 500, 500000)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, q)
}

func TestPostgresRolloverIfExpired(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE ai_usage_quotas`).
		WithArgs(int64(7), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RolloverIfExpired(context.Background(), 7, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetCustomLimitsUnknownUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE ai_usage_quotas`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	lim := int64(10)
	err := repo.SetCustomLimits(context.Background(), 404, &lim, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
