// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"greenchainz/gateway/shared/logger"
)

// BedrockAPI is the slice of the Bedrock runtime client the provider
// uses.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider calls AWS Bedrock. The request body depends on the
// model family; Anthropic and Amazon Titan models are supported.
type BedrockProvider struct {
	client  BedrockAPI
	modelID string
	timeout time.Duration
	log     *logger.Logger
}

// NewBedrockProvider creates a provider bound to one model ID.
func NewBedrockProvider(client BedrockAPI, modelID string, timeout time.Duration, log *logger.Logger) *BedrockProvider {
	return &BedrockProvider{client: client, modelID: modelID, timeout: timeout, log: log}
}

func (p *BedrockProvider) Name() string { return "aws-bedrock" }

func (p *BedrockProvider) Healthy() bool { return p.client != nil && p.modelID != "" }

func (p *BedrockProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if p.modelID == "" {
		return nil, ErrConfig
	}

	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	return p.parseResponseBody(out.Body)
}

func (p *BedrockProvider) buildRequestBody(req *CompletionRequest) ([]byte, error) {
	switch {
	case strings.HasPrefix(p.modelID, "anthropic."):
		return json.Marshal(map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        req.MaxTokens,
			"temperature":       req.Temperature,
			"system":            req.SystemPrompt,
			"messages": []map[string]interface{}{
				{"role": "user", "content": req.UserPrompt},
			},
		})
	case strings.HasPrefix(p.modelID, "amazon.titan"):
		return json.Marshal(map[string]interface{}{
			"inputText": req.SystemPrompt + "\n\n" + req.UserPrompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": req.MaxTokens,
				"temperature":   req.Temperature,
			},
		})
	default:
		return nil, fmt.Errorf("%w: unsupported model %q", ErrConfig, p.modelID)
	}
}

func (p *BedrockProvider) parseResponseBody(raw []byte) (*CompletionResponse, error) {
	switch {
	case strings.HasPrefix(p.modelID, "anthropic."):
		var parsed struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			StopReason string `json:"stop_reason"`
			Usage      struct {
				InputTokens  int64 `json:"input_tokens"`
				OutputTokens int64 `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("%w: invalid response body", ErrBackend)
		}
		if len(parsed.Content) == 0 {
			return nil, fmt.Errorf("%w: empty content", ErrBackend)
		}
		return &CompletionResponse{
			Content:          parsed.Content[0].Text,
			Model:            p.modelID,
			FinishReason:     parsed.StopReason,
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}, nil
	default:
		var parsed struct {
			Results []struct {
				OutputText string `json:"outputText"`
				TokenCount int64  `json:"tokenCount"`
			} `json:"results"`
			InputTextTokenCount int64 `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("%w: invalid response body", ErrBackend)
		}
		if len(parsed.Results) == 0 {
			return nil, fmt.Errorf("%w: empty results", ErrBackend)
		}
		return &CompletionResponse{
			Content:          parsed.Results[0].OutputText,
			Model:            p.modelID,
			PromptTokens:     parsed.InputTextTokenCount,
			CompletionTokens: parsed.Results[0].TokenCount,
			TotalTokens:      parsed.InputTextTokenCount + parsed.Results[0].TokenCount,
		}, nil
	}
}
