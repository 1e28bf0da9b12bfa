// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package calllog records an audit entry for every AI workflow call.
// Inputs are hashed and summarized with sensitive values redacted before
// anything touches storage. Logging never fails a call.
package calllog

import "time"

// Call statuses. The set is closed; analytics queries group on it.
const (
	StatusSuccess     = "success"
	StatusCached      = "cached"
	StatusError       = "error"
	StatusRateLimited = "rate_limited"
)

// Entry is one recorded workflow call, immutable once written.
type Entry struct {
	ID              int64                  `json:"id"`
	UserID          int64                  `json:"userId"`
	WorkflowName    string                 `json:"workflowName"`
	WorkflowVersion string                 `json:"workflowVersion"`
	RequestID       string                 `json:"requestId"`
	SessionID       string                 `json:"sessionId,omitempty"`
	ClientIP        string                 `json:"clientIp,omitempty"`
	UserAgent       string                 `json:"userAgent,omitempty"`
	InputHash       string                 `json:"inputHash"`
	InputSummary    map[string]interface{} `json:"inputSummary,omitempty"`
	InputBytes      int64                  `json:"inputBytes"`
	OutputHash      string                 `json:"outputHash,omitempty"`
	OutputSummary   map[string]interface{} `json:"outputSummary,omitempty"`
	OutputBytes     int64                  `json:"outputBytes"`
	Status          string                 `json:"status"`
	ErrorCode       string                 `json:"errorCode,omitempty"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
	TokensUsed      int64                  `json:"tokensUsed"`
	LatencyMS       int64                  `json:"latencyMs"`
	CacheHit        bool                   `json:"cacheHit"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// HistoryFilter narrows a history query. Zero values mean no filter.
type HistoryFilter struct {
	Workflow string
	Status   string
	Limit    int
	Offset   int
}

// UsageStats summarizes a user's call history.
type UsageStats struct {
	TotalCalls   int64            `json:"totalCalls"`
	TotalTokens  int64            `json:"totalTokens"`
	CacheHits    int64            `json:"cacheHits"`
	ErrorCount   int64            `json:"errorCount"`
	AvgLatencyMS float64          `json:"avgLatencyMs"`
	ByWorkflow   map[string]int64 `json:"byWorkflow"`
}

// WorkflowStats is aggregate usage for one workflow across all users.
type WorkflowStats struct {
	WorkflowName string  `json:"workflowName"`
	TotalCalls   int64   `json:"totalCalls"`
	UniqueUsers  int64   `json:"uniqueUsers"`
	CacheHitRate float64 `json:"cacheHitRate"`
	ErrorRate    float64 `json:"errorRate"`
	AvgLatencyMS float64 `json:"avgLatencyMs"`
	TotalTokens  int64   `json:"totalTokens"`
}
