// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"errors"
	"time"

	"greenchainz/gateway/entitlements"
)

// DefaultWorkflows are the built-in marketplace workflows, seeded on
// startup when the table is empty.
func DefaultWorkflows() []*Workflow {
	return []*Workflow{
		{
			Name:            "material-alternative",
			Version:         "1.0",
			Type:            "material_alternative",
			Description:     "Suggests sustainable alternatives for a given material",
			Deployment:      "gpt-4o-mini",
			MaxTokens:       1024,
			MinimumTier:     entitlements.TierFree,
			RequiredFeature: "canAccessAlternatives",
			Cacheable:       true,
			CacheTTL:        2 * time.Hour,
			RateLimits:      entitlements.TierLimits{Free: 10, Pro: 100, Enterprise: -1},
			IsActive:        true,
		},
		{
			Name:            "rfq-scorer",
			Version:         "1.0",
			Type:            "rfq_scorer",
			Description:     "Scores supplier responses to a request for quote",
			Deployment:      "gpt-4o",
			MaxTokens:       2048,
			MinimumTier:     entitlements.TierPro,
			RequiredFeature: "canAccessRFQAssist",
			Cacheable:       false,
			RateLimits:      entitlements.TierLimits{Free: 0, Pro: 50, Enterprise: -1},
			IsActive:        true,
		},
		{
			Name:            "outreach-draft",
			Version:         "1.0",
			Type:            "outreach_draft",
			Description:     "Drafts supplier outreach messages for human review",
			Deployment:      "gpt-4o",
			MaxTokens:       2048,
			MinimumTier:     entitlements.TierEnterprise,
			RequiredFeature: "canSendOutreachDrafts",
			Cacheable:       false,
			RateLimits:      entitlements.TierLimits{Free: 0, Pro: 0, Enterprise: -1},
			IsActive:        true,
		},
		{
			Name:            "compliance-check",
			Version:         "1.0",
			Type:            "compliance_check",
			Description:     "Checks a product against sustainability compliance frameworks",
			Deployment:      "gpt-4o",
			MaxTokens:       2048,
			MinimumTier:     entitlements.TierPro,
			RequiredFeature: "canAccessCompliance",
			Cacheable:       true,
			CacheTTL:        24 * time.Hour,
			RateLimits:      entitlements.TierLimits{Free: 0, Pro: 50, Enterprise: -1},
			IsActive:        true,
		},
		{
			Name:            "carbon-estimator",
			Version:         "1.0",
			Type:            "carbon_estimator",
			Description:     "Estimates the carbon footprint of a material or shipment",
			Deployment:      "gpt-4o-mini",
			MaxTokens:       1024,
			MinimumTier:     entitlements.TierFree,
			RequiredFeature: "canAccessCarbon",
			Cacheable:       true,
			CacheTTL:        time.Hour,
			RateLimits:      entitlements.TierLimits{Free: 10, Pro: 100, Enterprise: -1},
			IsActive:        true,
		},
	}
}

// SeedDefaults registers the built-in workflows, skipping any name and
// version that is already present.
func (r *Registry) SeedDefaults(ctx context.Context) error {
	for _, w := range DefaultWorkflows() {
		if err := r.Register(ctx, w); err != nil && !errors.Is(err, ErrDuplicate) {
			return err
		}
	}
	return nil
}
