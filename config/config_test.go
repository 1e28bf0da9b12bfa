// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gateway")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.AITimeout)
	assert.Equal(t, 60*time.Second, cfg.RegistryRefreshInterval)
	assert.Equal(t, 168*time.Hour, cfg.CacheMaxTTL)
	assert.True(t, cfg.SeedWorkflows)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gateway")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("HTTP_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, 2.5, cfg.HTTPRateLimit)
}
