// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package calllog

import (
	"context"
	"strconv"
	"time"

	"greenchainz/gateway/shared/logger"
)

// CallLogger writes audit entries for workflow calls. LogCall never
// returns an error; a failed write is reported to the structured log and
// the call proceeds.
type CallLogger struct {
	repo Repository
	log  *logger.Logger
}

// New creates a call logger.
func New(repo Repository, log *logger.Logger) *CallLogger {
	return &CallLogger{repo: repo, log: log}
}

// LogCall records one workflow call. The raw input and output are
// hashed and summarized here so nothing sensitive crosses the storage
// boundary.
func (c *CallLogger) LogCall(ctx context.Context, e *Entry, rawInput map[string]interface{}, rawOutput []byte) {
	if rawInput != nil {
		if e.InputHash == "" {
			e.InputHash = HashInput(rawInput)
		}
		if e.InputSummary == nil {
			e.InputSummary = SummarizeInput(rawInput)
		}
		if e.InputBytes == 0 {
			e.InputBytes = int64(len(Normalize(rawInput)))
		}
	}
	if len(rawOutput) > 0 {
		e.OutputHash = HashBytes(rawOutput)
		e.OutputSummary = SummarizeOutput(rawOutput)
		e.OutputBytes = int64(len(rawOutput))
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	if err := c.repo.Insert(ctx, e); err != nil {
		c.log.ErrorWithErr(strconv.FormatInt(e.UserID, 10), e.RequestID,
			"call log write failed", err, map[string]interface{}{
				"workflow": e.WorkflowName,
				"status":   e.Status,
			})
	}
}

// History returns the user's recent calls, newest first, optionally
// narrowed by workflow and status.
func (c *CallLogger) History(ctx context.Context, userID int64, f HistoryFilter) ([]*Entry, error) {
	return c.repo.History(ctx, userID, f)
}

// GetUsageStats aggregates the user's calls since the given time.
func (c *CallLogger) GetUsageStats(ctx context.Context, userID int64, since time.Time) (*UsageStats, error) {
	return c.repo.UsageStats(ctx, userID, since)
}

// GetWorkflowAnalytics aggregates per-workflow usage across all users.
func (c *CallLogger) GetWorkflowAnalytics(ctx context.Context, since time.Time) ([]*WorkflowStats, error) {
	return c.repo.WorkflowStats(ctx, since)
}

// StartRetentionSweep deletes entries older than the retention window on
// an interval until the context is canceled.
func (c *CallLogger) StartRetentionSweep(ctx context.Context, retention, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
				if err != nil {
					c.log.ErrorWithErr("", "", "call log retention sweep failed", err, nil)
					continue
				}
				if n > 0 {
					c.log.Info("", "", "call log retention sweep", map[string]interface{}{
						"deleted": n,
					})
				}
			}
		}
	}()
}
