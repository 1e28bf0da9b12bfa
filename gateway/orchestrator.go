// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package gateway ties the workflow registry, entitlements, result cache
// and upstream providers together behind one execution path and its HTTP
// surface.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"greenchainz/gateway/backend"
	"greenchainz/gateway/cache"
	"greenchainz/gateway/calllog"
	"greenchainz/gateway/entitlements"
	"greenchainz/gateway/registry"
	"greenchainz/gateway/shared/logger"
)

// Orchestrator runs workflow executions end to end.
type Orchestrator struct {
	registry *registry.Registry
	ents     *entitlements.Service
	cache    *cache.Cache
	calls    *calllog.CallLogger
	provider backend.Provider
	log      *logger.Logger
}

// NewOrchestrator wires the execution path.
func NewOrchestrator(reg *registry.Registry, ents *entitlements.Service, c *cache.Cache,
	calls *calllog.CallLogger, provider backend.Provider, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		ents:     ents,
		cache:    c,
		calls:    calls,
		provider: provider,
		log:      log,
	}
}

// ExecuteRequest is one workflow execution.
type ExecuteRequest struct {
	UserID    int64
	Workflow  string
	Version   string
	Input     map[string]interface{}
	RequestID string
	SessionID string
	ClientIP  string
	UserAgent string
}

// ExecuteResponse is a successful execution result.
type ExecuteResponse struct {
	RequestID  string          `json:"requestId"`
	Workflow   string          `json:"workflow"`
	Version    string          `json:"version"`
	Output     json.RawMessage `json:"output"`
	Cached     bool            `json:"cached"`
	TokensUsed int64           `json:"tokensUsed"`
	LatencyMS  int64           `json:"latencyMs"`
	Remaining  int64           `json:"quotaRemaining"`
}

// ProviderHealthy reports whether the upstream provider is configured,
// for the health endpoint.
func (o *Orchestrator) ProviderHealthy() bool {
	return o.provider != nil && o.provider.Healthy()
}

// Execute runs one workflow call through access checks, quota
// reservation, the cache and the upstream provider. Exactly one audit
// entry is written per call, whatever path the call takes, including
// panics and canceled callers.
func (o *Orchestrator) Execute(ctx context.Context, req *ExecuteRequest) (resp *ExecuteResponse, gerr *GatewayError) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	entry := &calllog.Entry{
		UserID:       req.UserID,
		WorkflowName: req.Workflow,
		RequestID:    req.RequestID,
		SessionID:    req.SessionID,
		ClientIP:     req.ClientIP,
		UserAgent:    req.UserAgent,
		Status:       calllog.StatusError,
		ErrorCode:    CodeUnknownError,
	}
	var rawOutput []byte
	defer func() {
		if r := recover(); r != nil {
			o.log.Error(strconv.FormatInt(req.UserID, 10), req.RequestID,
				"panic during execution", map[string]interface{}{"panic": r})
			gerr = newError(CodeUnknownError, "execution failed", http.StatusInternalServerError)
		}
		entry.LatencyMS = time.Since(start).Milliseconds()
		if gerr != nil {
			entry.ErrorCode = gerr.Code
			entry.ErrorMessage = gerr.Message
			if gerr.Status == http.StatusTooManyRequests {
				entry.Status = calllog.StatusRateLimited
			} else {
				entry.Status = calllog.StatusError
			}
		}

		// the audit write must survive a canceled request context
		logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.calls.LogCall(logCtx, entry, req.Input, rawOutput)

		executionsTotal.WithLabelValues(req.Workflow, entry.Status).Inc()
		executionDuration.WithLabelValues(req.Workflow).Observe(time.Since(start).Seconds())
	}()

	uid := strconv.FormatInt(req.UserID, 10)
	tier := o.ents.GetTier(ctx, req.UserID)

	if !entitlements.Features(tier).CanUseAI {
		return nil, newError(CodeAIDisabled, "AI features are disabled for your account", http.StatusForbidden)
	}

	access := o.registry.ValidateAccess(ctx, req.Workflow, req.Version, tier)
	if !access.Valid {
		return nil, accessError(access.Err, access.RequiredTier)
	}
	wf := access.Workflow
	entry.WorkflowName = wf.Name
	entry.WorkflowVersion = wf.Version

	allowed, err := o.ents.WorkflowRateLimit(ctx, req.UserID, tier, wf.Name, wf.RateLimits)
	if err != nil {
		o.log.ErrorWithErr(uid, req.RequestID, "workflow rate limit check failed", err, nil)
		return nil, newError(CodeUnknownError, "rate limit check unavailable", http.StatusInternalServerError)
	}
	if !allowed {
		quotaDenialsTotal.WithLabelValues("workflow_rate_limit").Inc()
		ge := newError(CodeQuotaExceeded, "monthly limit for this workflow reached", http.StatusTooManyRequests)
		ge.Details = map[string]interface{}{"workflow": wf.Name, "limit": wf.RateLimitFor(tier)}
		return nil, ge
	}

	// reserve one call and the token estimate up front; reconciled below
	estTokens := int64(wf.MaxTokens)
	check, err := o.ents.CheckAndReserve(ctx, req.UserID, tier, estTokens)
	if err != nil {
		return nil, newError(CodeUnknownError, "quota check unavailable", http.StatusInternalServerError)
	}
	if !check.Allowed {
		quotaDenialsTotal.WithLabelValues(check.Reason).Inc()
		return nil, quotaError(check)
	}

	// read the cache even for workflows no longer marked cacheable, so
	// entries written before a policy change stay servable until expiry
	if cached, hit := o.cache.Get(ctx, wf.Name, wf.Version, req.Input); hit {
		cacheHitsTotal.WithLabelValues(wf.Name).Inc()
		o.ents.ReconcileTokens(ctx, req.UserID, estTokens, 0)
		entry.Status = calllog.StatusCached
		entry.CacheHit = true
		entry.ErrorCode = ""
		rawOutput = cached.Output
		o.log.InfoWithDuration(uid, req.RequestID, "served from cache",
			float64(time.Since(start).Milliseconds()),
			map[string]interface{}{"workflow": wf.Name})
		return &ExecuteResponse{
			RequestID:  req.RequestID,
			Workflow:   wf.Name,
			Version:    wf.Version,
			Output:     cached.Output,
			Cached:     true,
			TokensUsed: 0,
			LatencyMS:  time.Since(start).Milliseconds(),
			Remaining:  check.Remaining,
		}, nil
	}

	systemPrompt, temperature := backend.SystemPromptFor(wf.Type)
	userPrompt, err := backend.BuildUserPrompt(req.Input)
	if err != nil {
		return nil, newError(CodeUnknownError, "invalid workflow input", http.StatusInternalServerError)
	}

	completion, err := o.provider.Complete(ctx, &backend.CompletionRequest{
		Deployment:   wf.Deployment,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    wf.MaxTokens,
		Temperature:  temperature,
	})
	if err != nil {
		o.ents.ReconcileTokens(ctx, req.UserID, estTokens, 0)
		o.log.ErrorWithErr(uid, req.RequestID, "upstream completion failed", err,
			map[string]interface{}{"workflow": wf.Name, "provider": o.provider.Name()})
		return nil, backendError(err)
	}

	output := backend.ParseOutput(completion.Content)
	rawOutput = output
	o.ents.ReconcileTokens(ctx, req.UserID, estTokens, completion.TotalTokens)
	upstreamTokensTotal.WithLabelValues(wf.Name).Add(float64(completion.TotalTokens))

	if wf.Cacheable {
		o.cache.Set(ctx, wf.Name, wf.Version, req.Input, output, completion.TotalTokens)
	}

	entry.Status = calllog.StatusSuccess
	entry.ErrorCode = ""
	entry.TokensUsed = completion.TotalTokens
	o.log.InfoWithDuration(uid, req.RequestID, "workflow executed",
		float64(time.Since(start).Milliseconds()),
		map[string]interface{}{
			"workflow": wf.Name,
			"tokens":   completion.TotalTokens,
			"provider": o.provider.Name(),
		})

	return &ExecuteResponse{
		RequestID:  req.RequestID,
		Workflow:   wf.Name,
		Version:    wf.Version,
		Output:     output,
		TokensUsed: completion.TotalTokens,
		LatencyMS:  time.Since(start).Milliseconds(),
		Remaining:  check.Remaining,
	}, nil
}
