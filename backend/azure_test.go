// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenchainz/gateway/shared/logger"
)

func newAzureTestServer(t *testing.T, handler http.HandlerFunc) (*AzureProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewAzureProvider(srv.URL, "2024-02-15-preview", StaticKey("test-key"),
		5*time.Second, logger.New("backend-test"))
	return p, srv
}

func TestAzureCompleteSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody chatRequest

	p, _ := newAzureTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `{"kg":12}`},
					"finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
		})
	})

	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Deployment:   "gpt-4o-mini",
		SystemPrompt: "system",
		UserPrompt:   "user",
		MaxTokens:    512,
		Temperature:  0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"kg":12}`, resp.Content)
	assert.Equal(t, int64(120), resp.TotalTokens)
	assert.Equal(t, "/openai/deployments/gpt-4o-mini/chat/completions", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.InDelta(t, 0.1, gotBody.Temperature, 0.001)
}

func TestAzureCompleteUpstreamError(t *testing.T) {
	p, _ := newAzureTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "429", "message": "rate limited"},
		})
	})

	_, err := p.Complete(context.Background(), &CompletionRequest{Deployment: "gpt-4o"})
	assert.ErrorIs(t, err, ErrBackend)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAzureCompleteTimeout(t *testing.T) {
	p, _ := newAzureTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	p.timeout = 30 * time.Millisecond
	p.httpClient = &http.Client{}

	_, err := p.Complete(context.Background(), &CompletionRequest{Deployment: "gpt-4o"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAzureCompleteMissingConfig(t *testing.T) {
	p := NewAzureProvider("", "2024-02-15-preview", StaticKey("k"), time.Second, logger.New("backend-test"))
	_, err := p.Complete(context.Background(), &CompletionRequest{})
	assert.ErrorIs(t, err, ErrConfig)

	p2 := NewAzureProvider("https://example.invalid", "2024-02-15-preview", StaticKey(""),
		time.Second, logger.New("backend-test"))
	_, err = p2.Complete(context.Background(), &CompletionRequest{})
	assert.ErrorIs(t, err, ErrConfig)
}
