// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package entitlements enforces tier-based access control and monthly usage
// quotas for AI workflows. Tiers form a strict total order:
// free < pro < enterprise < admin.
package entitlements

import (
	"strings"
	"time"
)

// Tier is a caller's entitlement level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
	TierAdmin      Tier = "admin"
)

// Level returns the tier's position in the access order.
// Unknown tiers are treated as free.
func (t Tier) Level() int {
	switch t {
	case TierAdmin:
		return 4
	case TierEnterprise:
		return 3
	case TierPro:
		return 2
	default:
		return 1
	}
}

// CanAccess reports whether t meets the required tier.
func (t Tier) CanAccess(required Tier) bool {
	return t.Level() >= required.Level()
}

// ParseTier normalizes a tier name to its internal form.
// "standard" is a billing alias for pro, "premium" for enterprise.
func ParseTier(s string) Tier {
	switch strings.ToLower(s) {
	case "pro", "standard":
		return TierPro
	case "enterprise", "premium":
		return TierEnterprise
	case "admin":
		return TierAdmin
	default:
		return TierFree
	}
}

// DisplayName returns the billing-facing name of the tier.
func (t Tier) DisplayName() string {
	switch t {
	case TierPro:
		return "Standard"
	case TierEnterprise:
		return "Premium"
	case TierAdmin:
		return "Admin"
	default:
		return "Free"
	}
}

// FeatureSet is the closed per-tier feature matrix. A disabled feature
// short-circuits a call before any usage is recorded.
type FeatureSet struct {
	CanUseAI                bool `json:"canUseAI"`
	CanCacheResults         bool `json:"canCacheResults"`
	CanAccessCompliance     bool `json:"canAccessCompliance"`
	CanAccessAlternatives   bool `json:"canAccessAlternatives"`
	CanAccessCarbon         bool `json:"canAccessCarbon"`
	CanAccessCertifications bool `json:"canAccessCertifications"`
	CanAccessDocumentAI     bool `json:"canAccessDocumentAI"`
	CanAccessRFQAssist      bool `json:"canAccessRFQAssist"`
	CanSendOutreachDrafts   bool `json:"canSendOutreachDrafts"`
	CanApproveDrafts        bool `json:"canApproveDrafts"`
}

// Has reports whether the named feature flag is enabled. Unknown names
// are disabled.
func (f FeatureSet) Has(name string) bool {
	switch name {
	case "canUseAI":
		return f.CanUseAI
	case "canCacheResults":
		return f.CanCacheResults
	case "canAccessCompliance":
		return f.CanAccessCompliance
	case "canAccessAlternatives":
		return f.CanAccessAlternatives
	case "canAccessCarbon":
		return f.CanAccessCarbon
	case "canAccessCertifications":
		return f.CanAccessCertifications
	case "canAccessDocumentAI":
		return f.CanAccessDocumentAI
	case "canAccessRFQAssist":
		return f.CanAccessRFQAssist
	case "canSendOutreachDrafts":
		return f.CanSendOutreachDrafts
	case "canApproveDrafts":
		return f.CanApproveDrafts
	default:
		return false
	}
}

// Features returns the feature matrix for a tier.
func Features(t Tier) FeatureSet {
	switch t {
	case TierAdmin:
		return FeatureSet{
			CanUseAI:                true,
			CanCacheResults:         true,
			CanAccessCompliance:     true,
			CanAccessAlternatives:   true,
			CanAccessCarbon:         true,
			CanAccessCertifications: true,
			CanAccessDocumentAI:     true,
			CanAccessRFQAssist:      true,
			CanSendOutreachDrafts:   true,
			CanApproveDrafts:        true,
		}
	case TierEnterprise:
		return FeatureSet{
			CanUseAI:                true,
			CanCacheResults:         true,
			CanAccessCompliance:     true,
			CanAccessAlternatives:   true,
			CanAccessCarbon:         true,
			CanAccessCertifications: true,
			CanAccessDocumentAI:     true,
			CanAccessRFQAssist:      true,
			CanSendOutreachDrafts:   true,
		}
	case TierPro:
		return FeatureSet{
			CanUseAI:                true,
			CanCacheResults:         true,
			CanAccessCompliance:     true,
			CanAccessAlternatives:   true,
			CanAccessCarbon:         true,
			CanAccessCertifications: true,
			CanAccessDocumentAI:     true,
			CanAccessRFQAssist:      true,
		}
	default:
		return FeatureSet{
			CanUseAI:              true,
			CanCacheResults:       true,
			CanAccessCompliance:   true,
			CanAccessAlternatives: true,
			CanAccessCarbon:       true,
		}
	}
}

// QuotaLimits are per-tier monthly defaults. -1 means unlimited.
type QuotaLimits struct {
	CallsPerMonth  int64 `json:"callsPerMonth"`
	TokensPerMonth int64 `json:"tokensPerMonth"`
}

// DefaultLimits returns the default monthly quota for a tier.
func DefaultLimits(t Tier) QuotaLimits {
	switch t {
	case TierAdmin:
		return QuotaLimits{CallsPerMonth: -1, TokensPerMonth: -1}
	case TierEnterprise:
		return QuotaLimits{CallsPerMonth: 5000, TokensPerMonth: 5000000}
	case TierPro:
		return QuotaLimits{CallsPerMonth: 500, TokensPerMonth: 500000}
	default:
		return QuotaLimits{CallsPerMonth: 50, TokensPerMonth: 50000}
	}
}

// TierLimits are per-workflow monthly rate limits by tier.
// -1 means unlimited, 0 means the workflow is not available at that tier.
type TierLimits struct {
	Free       int `json:"free"`
	Pro        int `json:"pro"`
	Enterprise int `json:"enterprise"`
}

// For returns the limit that applies to the given tier. Admin is unlimited.
func (l TierLimits) For(t Tier) int {
	switch t {
	case TierAdmin:
		return -1
	case TierEnterprise:
		return l.Enterprise
	case TierPro:
		return l.Pro
	default:
		return l.Free
	}
}

// UserQuota is one user's usage window. Mutated only by this package.
type UserQuota struct {
	UserID           int64     `json:"userId"`
	Tier             Tier      `json:"tier"`
	PeriodStart      time.Time `json:"periodStart"`
	PeriodEnd        time.Time `json:"periodEnd"`
	CallsUsed        int64     `json:"callsUsed"`
	TokensUsed       int64     `json:"tokensUsed"`
	CustomCallLimit  *int64    `json:"customCallLimit,omitempty"`
	CustomTokenLimit *int64    `json:"customTokenLimit,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Denial reasons surfaced in CheckResult.Reason.
const (
	ReasonCallLimitExceeded  = "call_limit_exceeded"
	ReasonTokenLimitExceeded = "token_limit_exceeded"
	ReasonQuotaCheckError    = "quota_check_error"
)

// CheckResult is the outcome of a quota check-and-reserve.
type CheckResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Reason    string    `json:"reason,omitempty"`
	Tier      Tier      `json:"tier"`
}

// Entitlements is the full entitlement view for a user.
type Entitlements struct {
	Tier     Tier       `json:"tier"`
	Features FeatureSet `json:"features"`
	Quota    QuotaView  `json:"quota"`
}

// QuotaView is the user-facing quota summary.
type QuotaView struct {
	CallsUsed    int64     `json:"callsUsed"`
	CallsLimit   int64     `json:"callsLimit"`
	TokensUsed   int64     `json:"tokensUsed"`
	TokensLimit  int64     `json:"tokensLimit"`
	PeriodEndsAt time.Time `json:"periodEndsAt"`
	Remaining    int64     `json:"remaining"`
}
