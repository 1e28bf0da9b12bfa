// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package backend talks to upstream model providers. The gateway only
// ever sees the Provider interface; Azure OpenAI and AWS Bedrock are the
// two implementations.
package backend

import (
	"context"
	"errors"
	"net/http"
)

// Provider executes a chat completion against one upstream.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// Healthy reports whether the provider is configured well enough
	// to attempt a call. It does not reach the upstream.
	Healthy() bool
}

// HTTPClient lets tests swap the transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CompletionRequest is one upstream model call.
type CompletionRequest struct {
	Deployment   string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse is the upstream's answer.
type CompletionResponse struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

var (
	// ErrTimeout is returned when the upstream call exceeded its
	// deadline.
	ErrTimeout = errors.New("upstream request timed out")

	// ErrBackend is returned when the upstream rejected or failed the
	// request.
	ErrBackend = errors.New("upstream request failed")

	// ErrConfig is returned when the provider is missing its endpoint
	// or credentials.
	ErrConfig = errors.New("provider is not configured")
)
