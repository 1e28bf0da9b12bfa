// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"greenchainz/gateway/shared/logger"
)

// AzureProvider calls the Azure OpenAI chat completions API.
type AzureProvider struct {
	endpoint   string
	apiVersion string
	keys       KeySource
	httpClient HTTPClient
	timeout    time.Duration
	log        *logger.Logger
}

// NewAzureProvider creates a provider for the given endpoint.
func NewAzureProvider(endpoint, apiVersion string, keys KeySource, timeout time.Duration, log *logger.Logger) *AzureProvider {
	return &AzureProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: apiVersion,
		keys:       keys,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        log,
	}
}

// SetHTTPClient replaces the transport, used by tests.
func (p *AzureProvider) SetHTTPClient(c HTTPClient) { p.httpClient = c }

func (p *AzureProvider) Name() string { return "azure-openai" }

func (p *AzureProvider) Healthy() bool { return p.endpoint != "" && p.keys != nil }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a chat completion request. Deadline overruns map to
// ErrTimeout, upstream failures to ErrBackend, missing configuration to
// ErrConfig.
func (p *AzureProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if p.endpoint == "" {
		return nil, ErrConfig
	}
	apiKey, err := p.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, req.Deployment, p.apiVersion)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid response body", ErrBackend)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %s", ErrBackend, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrBackend)
	}

	return &CompletionResponse{
		Content:          parsed.Choices[0].Message.Content,
		Model:            parsed.Model,
		FinishReason:     parsed.Choices[0].FinishReason,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}, nil
}
