// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

// Package config loads gateway configuration from environment variables.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all AI gateway configuration.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8090"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL" envDefault:""`
	JWTSecret   string `env:"JWT_SECRET,required"`

	// Upstream AI backend (Azure OpenAI compatible)
	AIEndpoint      string        `env:"AI_FOUNDRY_ENDPOINT" envDefault:""`
	AIAPIKey        string        `env:"AI_FOUNDRY_KEY" envDefault:""`
	AIAPIKeySecret  string        `env:"AI_FOUNDRY_KEY_SECRET_ARN" envDefault:""`
	AIAPIVersion    string        `env:"AI_API_VERSION" envDefault:"2024-02-15-preview"`
	AITimeout       time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	BedrockRegion   string        `env:"BEDROCK_REGION" envDefault:""`
	BedrockModel    string        `env:"BEDROCK_MODEL" envDefault:"anthropic.claude-3-haiku-20240307-v1:0"`
	SecretsCacheTTL time.Duration `env:"SECRETS_CACHE_TTL" envDefault:"5m"`

	// Registry refresh and cache bounds
	RegistryRefreshInterval time.Duration `env:"REGISTRY_REFRESH_INTERVAL" envDefault:"60s"`
	CacheDefaultTTL         time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"1h"`
	CacheMaxTTL             time.Duration `env:"CACHE_MAX_TTL" envDefault:"168h"`

	// HTTP-layer rate limiting (ahead of per-user quotas)
	HTTPRateLimit float64 `env:"HTTP_RATE_LIMIT_RPS" envDefault:"10"`
	HTTPRateBurst int     `env:"HTTP_RATE_BURST" envDefault:"20"`

	SeedWorkflows bool `env:"SEED_WORKFLOWS" envDefault:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
