// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package cache stores AI workflow results in two tiers: Redis for fast
// ephemeral hits and Postgres for durable reuse across restarts. Cache
// failures are never surfaced to callers; a broken cache degrades to a
// miss.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Result is a cached workflow output.
type Result struct {
	Output     json.RawMessage `json:"output"`
	TokensUsed int64           `json:"tokensUsed"`
	CachedAt   time.Time       `json:"cachedAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	HitCount   int64           `json:"hitCount"`
}

// Stats summarizes the persistent cache tier.
type Stats struct {
	Entries     int64   `json:"entries"`
	TotalHits   int64   `json:"totalHits"`
	AvgHitCount float64 `json:"avgHitCount"`
	Expired     int64   `json:"expired"`
}

// PolicySource answers whether a workflow's results may be cached and
// for how long.
type PolicySource interface {
	CachePolicy(ctx context.Context, name, version string) (bool, time.Duration, error)
}

// PersistentStore is the durable cache tier.
type PersistentStore interface {
	Get(ctx context.Context, key string) (*Result, error)
	Set(ctx context.Context, key, workflow, version, inputHash string, r *Result) error
	// IncrementHit bumps the stored hit counter for a key.
	IncrementHit(ctx context.Context, key string) error
	DeleteByWorkflow(ctx context.Context, workflow string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
