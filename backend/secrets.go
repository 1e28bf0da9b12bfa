// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// KeySource produces the upstream API key.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a fixed API key, typically from an environment variable.
type StaticKey string

func (k StaticKey) APIKey(ctx context.Context) (string, error) {
	if k == "" {
		return "", fmt.Errorf("api key is empty")
	}
	return string(k), nil
}

// SecretsManagerAPI is the slice of the Secrets Manager client the
// source uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource fetches the API key from AWS Secrets Manager and
// caches it for a TTL so every completion does not round-trip to AWS.
type SecretsManagerSource struct {
	client   SecretsManagerAPI
	secretID string
	field    string
	ttl      time.Duration

	mu        sync.Mutex
	cached    string
	fetchedAt time.Time
}

// NewSecretsManagerSource creates a key source for one secret. If field
// is non-empty the secret is parsed as JSON and that field extracted;
// otherwise the whole secret string is the key.
func NewSecretsManagerSource(client SecretsManagerAPI, secretID, field string, ttl time.Duration) *SecretsManagerSource {
	return &SecretsManagerSource{client: client, secretID: secretID, field: field, ttl: ttl}
}

func (s *SecretsManagerSource) APIKey(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Since(s.fetchedAt) < s.ttl {
		return s.cached, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		// a stale key beats no key during an AWS blip
		if s.cached != "" {
			return s.cached, nil
		}
		return "", fmt.Errorf("failed to fetch secret %s: %w", s.secretID, err)
	}

	value := aws.ToString(out.SecretString)
	if s.field != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return "", fmt.Errorf("secret %s is not a JSON object: %w", s.secretID, err)
		}
		value = parsed[s.field]
	}
	if value == "" {
		return "", fmt.Errorf("secret %s has no api key", s.secretID)
	}

	s.cached = value
	s.fetchedAt = time.Now()
	return value, nil
}
