// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package entitlements

import (
	"context"
	"time"
)

// Repository provides storage for user tiers and usage quotas.
type Repository interface {
	// GetUserTier returns the user's subscription tier name and account
	// role. Returns ErrUserNotFound if the user does not exist.
	GetUserTier(ctx context.Context, userID int64) (tierName, role string, err error)

	// EnsureQuota creates the quota row for the user if missing.
	EnsureQuota(ctx context.Context, userID int64, tier Tier) error

	// RolloverIfExpired resets the usage window when period_end has
	// passed. Safe to call concurrently; at most one caller performs
	// the reset.
	RolloverIfExpired(ctx context.Context, userID int64, now time.Time) error

	// ReserveCall atomically increments calls_used by one and
	// tokens_used by estTokens, but only while both limits hold.
	// A negative limit disables that guard. Returns the post-increment
	// quota and true on success, or nil and false when the guard failed.
	ReserveCall(ctx context.Context, userID int64, estTokens, callLimit, tokenLimit int64) (*UserQuota, bool, error)

	// GetQuota returns the user's current usage window.
	GetQuota(ctx context.Context, userID int64) (*UserQuota, error)

	// AddTokens adjusts tokens_used after actual usage is known.
	// delta may be negative when the estimate overshot.
	AddTokens(ctx context.Context, userID int64, delta int64) error

	// CountWorkflowCalls returns the number of calls the user made to
	// the named workflow since the given time.
	CountWorkflowCalls(ctx context.Context, userID int64, workflow string, since time.Time) (int64, error)

	// SetCustomLimits overrides the user's default quota limits.
	// Nil pointers clear the override.
	SetCustomLimits(ctx context.Context, userID int64, callLimit, tokenLimit *int64) error
}
