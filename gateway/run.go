// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-redis/redis/v8"

	"greenchainz/gateway/backend"
	"greenchainz/gateway/cache"
	"greenchainz/gateway/calllog"
	"greenchainz/gateway/config"
	"greenchainz/gateway/entitlements"
	"greenchainz/gateway/registry"
	"greenchainz/gateway/shared/logger"
)

// Run wires every component and serves until SIGINT or SIGTERM.
func Run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the cache degrades to Postgres only
			log.ErrorWithErr("", "", "redis unavailable, running without ephemeral cache tier", err, nil)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	entRepo, err := entitlements.NewPostgresRepository(db)
	if err != nil {
		return err
	}
	ents := entitlements.NewService(entRepo, log)

	store, err := registry.NewPostgresStore(db)
	if err != nil {
		return err
	}
	reg := registry.New(store, log)
	if cfg.SeedWorkflows {
		if err := reg.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("failed to seed workflows: %w", err)
		}
	}
	if err := reg.Refresh(ctx); err != nil {
		return err
	}
	reg.StartPeriodicRefresh(ctx, cfg.RegistryRefreshInterval)

	cacheStore, err := cache.NewPostgresStore(db)
	if err != nil {
		return err
	}
	resultCache := cache.New(rdb, cacheStore, reg, log, cfg.CacheDefaultTTL, cfg.CacheMaxTTL)
	resultCache.StartCleanup(ctx, time.Hour)

	logRepo, err := calllog.NewPostgresRepository(db)
	if err != nil {
		return err
	}
	calls := calllog.New(logRepo, log)
	calls.StartRetentionSweep(ctx, 90*24*time.Hour, 24*time.Hour)

	provider, err := buildProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("", "", "upstream provider ready", map[string]interface{}{"provider": provider.Name()})

	orchestrator := NewOrchestrator(reg, ents, resultCache, calls, provider, log)
	server := NewServer(orchestrator, reg, ents, resultCache, calls, log,
		cfg.JWTSecret, cfg.HTTPRateLimit, cfg.HTTPRateBurst)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "", "ai gateway listening", map[string]interface{}{"port": cfg.Port})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("", "", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildProvider selects the upstream. Azure OpenAI when an endpoint is
// configured, Bedrock otherwise.
func buildProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) (backend.Provider, error) {
	if cfg.AIEndpoint != "" {
		keys, err := buildKeySource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return backend.NewAzureProvider(cfg.AIEndpoint, cfg.AIAPIVersion, keys, cfg.AITimeout, log), nil
	}

	if cfg.BedrockModel != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.BedrockRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return backend.NewBedrockProvider(client, cfg.BedrockModel, cfg.AITimeout, log), nil
	}

	return nil, fmt.Errorf("no upstream provider configured: set AI_FOUNDRY_ENDPOINT or BEDROCK_MODEL")
}

func buildKeySource(ctx context.Context, cfg *config.Config) (backend.KeySource, error) {
	if cfg.AIAPIKey != "" {
		return backend.StaticKey(cfg.AIAPIKey), nil
	}
	if cfg.AIAPIKeySecret != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.BedrockRegion))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := secretsmanager.NewFromConfig(awsCfg)
		return backend.NewSecretsManagerSource(client, cfg.AIAPIKeySecret, "apiKey", cfg.SecretsCacheTTL), nil
	}
	return nil, fmt.Errorf("no api key configured: set AI_FOUNDRY_KEY or AI_FOUNDRY_KEY_SECRET_ARN")
}
