// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"greenchainz/gateway/calllog"
	"greenchainz/gateway/shared/logger"
)

const keyPrefix = "ai:cache:"

// Cache is the two-tier result cache. The Redis tier is optional; with a
// nil client every lookup goes straight to Postgres.
type Cache struct {
	redis    *redis.Client
	store    PersistentStore
	policies PolicySource
	log      *logger.Logger

	defaultTTL time.Duration
	maxTTL     time.Duration
}

// New creates a cache over the given tiers.
func New(rdb *redis.Client, store PersistentStore, policies PolicySource, log *logger.Logger, defaultTTL, maxTTL time.Duration) *Cache {
	return &Cache{
		redis:      rdb,
		store:      store,
		policies:   policies,
		log:        log,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
	}
}

// Healthy reports whether the fast tier is reachable. Without a Redis
// client the cache runs Postgres-only, which still serves.
func (c *Cache) Healthy(ctx context.Context) bool {
	if c.redis == nil {
		return true
	}
	return c.redis.Ping(ctx).Err() == nil
}

// Key builds the cache key for a workflow input. The hash covers the
// canonical form of the input, so field order does not fragment the
// cache.
func Key(workflow, version string, input map[string]interface{}) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, workflow, version, calllog.HashInput(input))
}

// Get looks up a cached result, checking Redis first and falling back to
// Postgres. A Postgres hit repopulates Redis in the background. Any tier
// failure is logged and treated as a miss.
func (c *Cache) Get(ctx context.Context, workflow, version string, input map[string]interface{}) (*Result, bool) {
	key := Key(workflow, version, input)

	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var r Result
			if err := json.Unmarshal(raw, &r); err == nil {
				go c.countHit(key)
				return &r, true
			}
			c.log.Warn("", "", "corrupt redis cache entry dropped", map[string]interface{}{"key": key})
			c.redis.Del(ctx, key)
		} else if err != redis.Nil {
			c.log.ErrorWithErr("", "", "redis cache read failed", err, map[string]interface{}{"key": key})
		}
	}

	r, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.ErrorWithErr("", "", "persistent cache read failed", err, map[string]interface{}{"key": key})
		return nil, false
	}
	if r == nil {
		return nil, false
	}

	go c.repopulate(key, r)
	go c.countHit(key)
	return r, true
}

// Set stores a workflow result in both tiers, respecting the workflow's
// cache policy. Non-cacheable workflows are silently skipped. Failures
// are logged, never returned; a write miss only costs a future backend
// call.
func (c *Cache) Set(ctx context.Context, workflow, version string, input map[string]interface{}, output json.RawMessage, tokensUsed int64) {
	cacheable, ttl, err := c.policies.CachePolicy(ctx, workflow, version)
	if err != nil {
		c.log.ErrorWithErr("", "", "cache policy lookup failed", err, map[string]interface{}{"workflow": workflow})
		return
	}
	if !cacheable {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	now := time.Now().UTC()
	r := &Result{
		Output:     output,
		TokensUsed: tokensUsed,
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	key := Key(workflow, version, input)

	if err := c.store.Set(ctx, key, workflow, version, calllog.HashInput(input), r); err != nil {
		c.log.ErrorWithErr("", "", "persistent cache write failed", err, map[string]interface{}{"key": key})
	}
	if c.redis != nil {
		enc, err := json.Marshal(r)
		if err == nil {
			if err := c.redis.Set(ctx, key, enc, ttl).Err(); err != nil {
				c.log.ErrorWithErr("", "", "redis cache write failed", err, map[string]interface{}{"key": key})
			}
		}
	}
}

// Invalidate removes every cached result for a workflow from both tiers
// and returns the number of persistent entries removed.
func (c *Cache) Invalidate(ctx context.Context, workflow string) (int64, error) {
	if c.redis != nil {
		pattern := keyPrefix + workflow + ":*"
		iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
				c.log.ErrorWithErr("", "", "redis cache delete failed", err, nil)
			}
		}
		if err := iter.Err(); err != nil {
			c.log.ErrorWithErr("", "", "redis cache scan failed", err, map[string]interface{}{"pattern": pattern})
		}
	}
	return c.store.DeleteByWorkflow(ctx, workflow)
}

// Stats returns persistent tier statistics.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	return c.store.Stats(ctx, time.Now().UTC())
}

// Cleanup deletes expired persistent entries. Redis handles its own
// expiry.
func (c *Cache) Cleanup(ctx context.Context) (int64, error) {
	return c.store.DeleteExpired(ctx, time.Now().UTC())
}

// StartCleanup runs Cleanup on an interval until the context is
// canceled.
func (c *Cache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := c.Cleanup(ctx)
				if err != nil {
					c.log.ErrorWithErr("", "", "cache cleanup failed", err, nil)
					continue
				}
				if n > 0 {
					c.log.Info("", "", "expired cache entries removed", map[string]interface{}{"deleted": n})
				}
			}
		}
	}()
}

// repopulate writes a persistent hit back into Redis with the remaining
// TTL. Runs detached from the request.
func (c *Cache) repopulate(key string, r *Result) {
	if c.redis == nil {
		return
	}
	remaining := time.Until(r.ExpiresAt)
	if remaining <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	enc, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, enc, remaining).Err(); err != nil {
		c.log.ErrorWithErr("", "", "redis cache repopulate failed", err, map[string]interface{}{"key": key})
	}
}

func (c *Cache) countHit(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.IncrementHit(ctx, key); err != nil {
		c.log.ErrorWithErr("", "", "cache hit count update failed", err, map[string]interface{}{"key": key})
	}
}
