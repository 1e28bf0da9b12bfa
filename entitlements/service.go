// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package entitlements

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"greenchainz/gateway/shared/logger"
)

// Service resolves tiers and enforces quotas. Quota checks reserve usage
// atomically, so concurrent calls can never overspend a limit.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates an entitlement service.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetTier resolves the user's effective tier. An active subscription
// plan takes precedence, then the admin role, then free. Lookup failures
// resolve to free so an outage never grants access.
func (s *Service) GetTier(ctx context.Context, userID int64) Tier {
	plan, role, err := s.repo.GetUserTier(ctx, userID)
	if err != nil {
		if err != ErrUserNotFound {
			s.log.ErrorWithErr(strconv.FormatInt(userID, 10), "", "tier lookup failed, defaulting to free", err, nil)
		}
		return TierFree
	}
	if plan != "" {
		return ParseTier(plan)
	}
	if role == "admin" {
		return TierAdmin
	}
	return TierFree
}

// CanAccess reports whether the user's tier meets the workflow's minimum.
func (s *Service) CanAccess(tier, required Tier) bool {
	return tier.CanAccess(required)
}

// effectiveLimits applies custom overrides on top of the tier defaults.
func effectiveLimits(tier Tier, q *UserQuota) (callLimit, tokenLimit int64) {
	defaults := DefaultLimits(tier)
	callLimit, tokenLimit = defaults.CallsPerMonth, defaults.TokensPerMonth
	if q != nil {
		if q.CustomCallLimit != nil {
			callLimit = *q.CustomCallLimit
		}
		if q.CustomTokenLimit != nil {
			tokenLimit = *q.CustomTokenLimit
		}
	}
	return callLimit, tokenLimit
}

// CheckAndReserve verifies the user's monthly quota and reserves one call
// plus the estimated tokens in a single atomic step. On storage failure
// the call is denied with ReasonQuotaCheckError rather than allowed
// through unmetered.
func (s *Service) CheckAndReserve(ctx context.Context, userID int64, tier Tier, estTokens int64) (*CheckResult, error) {
	uid := strconv.FormatInt(userID, 10)
	now := time.Now().UTC()

	if err := s.repo.EnsureQuota(ctx, userID, tier); err != nil {
		s.log.ErrorWithErr(uid, "", "quota row creation failed", err, nil)
		return s.denied(tier, ReasonQuotaCheckError), nil
	}
	if err := s.repo.RolloverIfExpired(ctx, userID, now); err != nil {
		s.log.ErrorWithErr(uid, "", "quota rollover failed", err, nil)
		return s.denied(tier, ReasonQuotaCheckError), nil
	}

	current, err := s.repo.GetQuota(ctx, userID)
	if err != nil {
		s.log.ErrorWithErr(uid, "", "quota read failed", err, nil)
		return s.denied(tier, ReasonQuotaCheckError), nil
	}

	callLimit, tokenLimit := effectiveLimits(tier, current)

	reserved, ok, err := s.repo.ReserveCall(ctx, userID, estTokens, callLimit, tokenLimit)
	if err != nil {
		s.log.ErrorWithErr(uid, "", "quota reservation failed", err, nil)
		return s.denied(tier, ReasonQuotaCheckError), nil
	}
	if !ok {
		reason := ReasonCallLimitExceeded
		if callLimit < 0 || current.CallsUsed < callLimit {
			reason = ReasonTokenLimitExceeded
		}
		res := s.denied(tier, reason)
		res.ResetAt = current.PeriodEnd
		return res, nil
	}

	return &CheckResult{
		Allowed:   true,
		Remaining: remaining(callLimit, reserved.CallsUsed),
		ResetAt:   reserved.PeriodEnd,
		Tier:      tier,
	}, nil
}

func (s *Service) denied(tier Tier, reason string) *CheckResult {
	return &CheckResult{Allowed: false, Reason: reason, Tier: tier}
}

func remaining(limit, used int64) int64 {
	if limit < 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// ReconcileTokens replaces the reserved token estimate with the actual
// count once the backend reports it. Failures are logged, not returned;
// a reconciliation miss must not fail the call it follows.
func (s *Service) ReconcileTokens(ctx context.Context, userID, estimated, actual int64) {
	delta := actual - estimated
	if delta == 0 {
		return
	}
	if err := s.repo.AddTokens(ctx, userID, delta); err != nil {
		s.log.ErrorWithErr(strconv.FormatInt(userID, 10), "", "token reconciliation failed", err,
			map[string]interface{}{"delta": delta})
	}
}

// WorkflowRateLimit checks the per-workflow monthly call limit for the
// user's tier. A zero limit means the workflow is closed at that tier.
func (s *Service) WorkflowRateLimit(ctx context.Context, userID int64, tier Tier, workflow string, limits TierLimits) (bool, error) {
	limit := limits.For(tier)
	if limit < 0 {
		return true, nil
	}
	if limit == 0 {
		return false, nil
	}

	since := time.Date(time.Now().UTC().Year(), time.Now().UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	used, err := s.repo.CountWorkflowCalls(ctx, userID, workflow, since)
	if err != nil {
		return false, fmt.Errorf("failed to check workflow rate limit: %w", err)
	}
	return used < int64(limit), nil
}

// GetEntitlements returns the tier, feature matrix and quota summary for
// a user.
func (s *Service) GetEntitlements(ctx context.Context, userID int64) (*Entitlements, error) {
	tier := s.GetTier(ctx, userID)

	if err := s.repo.EnsureQuota(ctx, userID, tier); err != nil {
		return nil, err
	}
	if err := s.repo.RolloverIfExpired(ctx, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	q, err := s.repo.GetQuota(ctx, userID)
	if err != nil {
		return nil, err
	}

	callLimit, tokenLimit := effectiveLimits(tier, q)
	return &Entitlements{
		Tier:     tier,
		Features: Features(tier),
		Quota: QuotaView{
			CallsUsed:    q.CallsUsed,
			CallsLimit:   callLimit,
			TokensUsed:   q.TokensUsed,
			TokensLimit:  tokenLimit,
			PeriodEndsAt: q.PeriodEnd,
			Remaining:    remaining(callLimit, q.CallsUsed),
		},
	}, nil
}

// SetCustomLimits installs admin quota overrides for a user.
func (s *Service) SetCustomLimits(ctx context.Context, userID int64, callLimit, tokenLimit *int64) error {
	return s.repo.SetCustomLimits(ctx, userID, callLimit, tokenLimit)
}
