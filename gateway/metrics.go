// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_gateway_executions_total",
			Help: "Workflow executions by workflow and outcome",
		},
		[]string{"workflow", "status"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_gateway_execution_duration_seconds",
			Help:    "End to end execution latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"workflow"},
	)

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_gateway_cache_hits_total",
			Help: "Result cache hits by workflow",
		},
		[]string{"workflow"},
	)

	quotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_gateway_quota_denials_total",
			Help: "Calls denied by quota or rate limit, by reason",
		},
		[]string{"reason"},
	)

	upstreamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_gateway_upstream_tokens_total",
			Help: "Tokens consumed upstream by workflow",
		},
		[]string{"workflow"},
	)
)

func init() {
	prometheus.MustRegister(
		executionsTotal,
		executionDuration,
		cacheHitsTotal,
		quotaDenialsTotal,
		upstreamTokensTotal,
	)
}
