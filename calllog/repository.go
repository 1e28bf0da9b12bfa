// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package calllog

import (
	"context"
	"time"
)

// Repository stores call log entries.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	History(ctx context.Context, userID int64, f HistoryFilter) ([]*Entry, error)
	UsageStats(ctx context.Context, userID int64, since time.Time) (*UsageStats, error)
	WorkflowStats(ctx context.Context, since time.Time) ([]*WorkflowStats, error)
	// DeleteOlderThan removes entries past the retention window and
	// returns the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
