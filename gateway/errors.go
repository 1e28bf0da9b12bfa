// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"greenchainz/gateway/backend"
	"greenchainz/gateway/entitlements"
	"greenchainz/gateway/registry"
)

// Gateway error codes. Every failed execution maps to exactly one.
const (
	CodeAIDisabled           = "AI_DISABLED"
	CodeWorkflowNotAvailable = "WORKFLOW_NOT_AVAILABLE"
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeConfigError          = "CONFIG_ERROR"
	CodeTimeout              = "TIMEOUT"
	CodeAIServiceError       = "AI_SERVICE_ERROR"
	CodeUnknownError         = "UNKNOWN_ERROR"
)

// GatewayError is the single error shape the gateway returns to clients.
// Details never contain workflow inputs or upstream response bodies.
type GatewayError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, message string, status int) *GatewayError {
	return &GatewayError{Code: code, Message: message, Status: status}
}

// accessError maps a registry access failure to a gateway error.
func accessError(err error, requiredTier entitlements.Tier) *GatewayError {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrInactive):
		return newError(CodeWorkflowNotAvailable, "workflow not found", http.StatusNotFound)
	case errors.Is(err, entitlements.ErrTierInsufficient):
		ge := newError(CodeWorkflowNotAvailable, "workflow requires a higher subscription tier", http.StatusForbidden)
		ge.Details = map[string]interface{}{"requiredTier": string(requiredTier)}
		return ge
	case errors.Is(err, entitlements.ErrFeatureDisabled):
		return newError(CodeAIDisabled, "feature is not enabled for your tier", http.StatusForbidden)
	default:
		// a store outage with no cached entry reads the same as an
		// unknown workflow to the caller
		return newError(CodeWorkflowNotAvailable, "workflow not found", http.StatusNotFound)
	}
}

// quotaError maps a denied quota check to a gateway error.
func quotaError(res *entitlements.CheckResult) *GatewayError {
	if res.Reason == entitlements.ReasonQuotaCheckError {
		return newError(CodeUnknownError, "quota check unavailable", http.StatusInternalServerError)
	}
	ge := newError(CodeQuotaExceeded, "monthly quota exceeded", http.StatusTooManyRequests)
	ge.Details = map[string]interface{}{
		"reason":  res.Reason,
		"resetAt": res.ResetAt,
	}
	return ge
}

// backendError maps an upstream failure to a gateway error.
func backendError(err error) *GatewayError {
	switch {
	case errors.Is(err, backend.ErrTimeout):
		return newError(CodeTimeout, "upstream model timed out", http.StatusGatewayTimeout)
	case errors.Is(err, backend.ErrConfig):
		return newError(CodeConfigError, "gateway is misconfigured", http.StatusInternalServerError)
	case errors.Is(err, backend.ErrBackend):
		return newError(CodeAIServiceError, "upstream model request failed", http.StatusBadGateway)
	default:
		return newError(CodeUnknownError, "execution failed", http.StatusInternalServerError)
	}
}
