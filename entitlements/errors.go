// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package entitlements

import "errors"

var (
	// ErrQuotaExceeded is returned when the monthly call or token
	// quota is exhausted.
	ErrQuotaExceeded = errors.New("monthly quota exceeded")

	// ErrTierInsufficient is returned when the caller's tier does not
	// meet a workflow's minimum tier.
	ErrTierInsufficient = errors.New("tier does not permit this workflow")

	// ErrFeatureDisabled is returned when the required feature flag is
	// off for the caller's tier.
	ErrFeatureDisabled = errors.New("feature not enabled for tier")

	// ErrUserNotFound is returned when no account exists for the user.
	ErrUserNotFound = errors.New("user not found")
)
