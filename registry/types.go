// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package registry holds the catalog of AI workflows the gateway can
// execute. Definitions live in Postgres and are served from an
// in-memory snapshot refreshed on an interval.
package registry

import (
	"time"

	"greenchainz/gateway/entitlements"
)

// Workflow is one executable AI workflow definition.
type Workflow struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Type        string `json:"type"`
	Description string `json:"description"`

	// Deployment is the upstream model deployment the workflow targets.
	Deployment string `json:"deployment"`
	MaxTokens  int    `json:"maxTokens"`

	MinimumTier     entitlements.Tier `json:"minimumTier"`
	RequiredFeature string            `json:"requiredFeature"`

	Cacheable bool          `json:"cacheable"`
	CacheTTL  time.Duration `json:"cacheTtl"`

	RateLimits entitlements.TierLimits `json:"rateLimits"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key returns the registry lookup key for the workflow.
func (w *Workflow) Key() string {
	return w.Name + "@" + w.Version
}

// RateLimitFor returns the monthly per-workflow call limit for a tier.
func (w *Workflow) RateLimitFor(t entitlements.Tier) int {
	return w.RateLimits.For(t)
}

// AccessResult is the outcome of an access validation against a
// workflow's tier and feature requirements.
type AccessResult struct {
	Valid        bool
	Workflow     *Workflow
	RequiredTier entitlements.Tier
	Err          error
}
