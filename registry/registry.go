// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"greenchainz/gateway/entitlements"
	"greenchainz/gateway/shared/logger"
)

// Registry serves workflow definitions from an in-memory snapshot of the
// store. Reads never block on the database; the snapshot is refreshed on
// an interval and falls back to the last good copy when the store is
// unreachable.
type Registry struct {
	store Store
	log   *logger.Logger

	mu     sync.RWMutex
	byKey  map[string]*Workflow
	latest map[string]*Workflow
}

// New creates a registry over the given store. Call Refresh before
// serving lookups.
func New(store Store, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		log:    log,
		byKey:  make(map[string]*Workflow),
		latest: make(map[string]*Workflow),
	}
}

// Healthy reports whether the snapshot holds any workflows, for health
// checks.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey) > 0
}

// Refresh replaces the snapshot with the store's active workflows. On
// store failure the previous snapshot is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	workflows, err := r.store.List(ctx, false)
	if err != nil {
		r.log.ErrorWithErr("", "", "workflow refresh failed, serving stale snapshot", err, nil)
		return fmt.Errorf("failed to refresh workflows: %w", err)
	}

	byKey := make(map[string]*Workflow, len(workflows))
	latest := make(map[string]*Workflow)
	for _, w := range workflows {
		key := strings.ToLower(w.Key())
		byKey[key] = w
		name := strings.ToLower(w.Name)
		if cur, ok := latest[name]; !ok || versionLess(cur.Version, w.Version) {
			latest[name] = w
		}
	}

	r.mu.Lock()
	r.byKey = byKey
	r.latest = latest
	r.mu.Unlock()

	r.log.Info("", "", "workflow registry refreshed", map[string]interface{}{
		"workflows": len(workflows),
	})
	return nil
}

// StartPeriodicRefresh refreshes the snapshot every interval until the
// context is canceled.
func (r *Registry) StartPeriodicRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = r.Refresh(ctx)
			}
		}
	}()
}

// Resolve returns the workflow for name and version. An empty version
// resolves to the highest active version. A snapshot miss falls through
// to the store so newly registered workflows are visible before the next
// refresh.
func (r *Registry) Resolve(ctx context.Context, name, version string) (*Workflow, error) {
	name = strings.ToLower(name)

	r.mu.RLock()
	var w *Workflow
	var ok bool
	if version == "" {
		w, ok = r.latest[name]
	} else {
		w, ok = r.byKey[name+"@"+version]
	}
	r.mu.RUnlock()
	if ok {
		return w, nil
	}

	if version == "" {
		return r.store.GetLatest(ctx, name)
	}
	w, err := r.store.Get(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, ErrInactive
	}
	return w, nil
}

// List returns the active workflows in the snapshot, sorted by name.
func (r *Registry) List() []*Workflow {
	r.mu.RLock()
	out := make([]*Workflow, 0, len(r.byKey))
	for _, w := range r.byKey {
		out = append(out, w)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return versionLess(out[i].Version, out[j].Version)
	})
	return out
}

// ListForTier returns the snapshot filtered to workflows the tier can
// access.
func (r *Registry) ListForTier(tier entitlements.Tier) []*Workflow {
	all := r.List()
	features := entitlements.Features(tier)
	out := make([]*Workflow, 0, len(all))
	for _, w := range all {
		if tier.CanAccess(w.MinimumTier) && features.Has(w.RequiredFeature) {
			out = append(out, w)
		}
	}
	return out
}

// ValidateAccess checks the tier and feature requirements of a resolved
// workflow for the given tier.
func (r *Registry) ValidateAccess(ctx context.Context, name, version string, tier entitlements.Tier) AccessResult {
	w, err := r.Resolve(ctx, name, version)
	if err != nil {
		return AccessResult{Err: err}
	}
	if !tier.CanAccess(w.MinimumTier) {
		return AccessResult{
			Workflow:     w,
			RequiredTier: w.MinimumTier,
			Err:          entitlements.ErrTierInsufficient,
		}
	}
	if !entitlements.Features(tier).Has(w.RequiredFeature) {
		return AccessResult{
			Workflow:     w,
			RequiredTier: w.MinimumTier,
			Err:          entitlements.ErrFeatureDisabled,
		}
	}
	return AccessResult{Valid: true, Workflow: w}
}

// CachePolicy reports whether results for the workflow may be cached and
// for how long.
func (r *Registry) CachePolicy(ctx context.Context, name, version string) (bool, time.Duration, error) {
	w, err := r.Resolve(ctx, name, version)
	if err != nil {
		return false, 0, err
	}
	return w.Cacheable, w.CacheTTL, nil
}

// Register validates and stores a new workflow, then folds it into the
// snapshot.
func (r *Registry) Register(ctx context.Context, w *Workflow) error {
	if err := validate(w); err != nil {
		return err
	}
	w.IsActive = true
	id, err := r.store.Insert(ctx, w)
	if err != nil {
		return err
	}
	w.ID = id
	r.updateSnapshot(w)
	return nil
}

// Update stores a changed definition and folds it into the snapshot.
func (r *Registry) Update(ctx context.Context, w *Workflow) error {
	if err := validate(w); err != nil {
		return err
	}
	if err := r.store.Update(ctx, w); err != nil {
		return err
	}
	if w.IsActive {
		r.updateSnapshot(w)
	} else {
		r.dropFromSnapshot(w.Name, w.Version)
	}
	return nil
}

// Deactivate soft-deletes a workflow version. Existing cached results
// are unaffected; new executions are rejected.
func (r *Registry) Deactivate(ctx context.Context, name, version string) error {
	if err := r.store.Deactivate(ctx, name, version); err != nil {
		return err
	}
	r.dropFromSnapshot(name, version)
	return nil
}

func (r *Registry) updateSnapshot(w *Workflow) {
	name := strings.ToLower(w.Name)
	r.mu.Lock()
	r.byKey[name+"@"+w.Version] = w
	if cur, ok := r.latest[name]; !ok || !versionLess(w.Version, cur.Version) {
		r.latest[name] = w
	}
	r.mu.Unlock()
}

func (r *Registry) dropFromSnapshot(name, version string) {
	name = strings.ToLower(name)
	r.mu.Lock()
	delete(r.byKey, name+"@"+version)
	if cur, ok := r.latest[name]; ok && cur.Version == version {
		delete(r.latest, name)
		for key, w := range r.byKey {
			if !strings.HasPrefix(key, name+"@") {
				continue
			}
			if best, ok := r.latest[name]; !ok || versionLess(best.Version, w.Version) {
				r.latest[name] = w
			}
		}
	}
	r.mu.Unlock()
}

func validate(w *Workflow) error {
	if w.Name == "" || w.Version == "" || w.Type == "" {
		return fmt.Errorf("%w: name, version and type are required", ErrInvalidDefinition)
	}
	// the store orders versions with an int[] cast, so every segment
	// must be numeric
	for _, seg := range strings.Split(w.Version, ".") {
		if _, err := strconv.Atoi(seg); err != nil {
			return fmt.Errorf("%w: version must be dotted numeric, got %q", ErrInvalidDefinition, w.Version)
		}
	}
	if w.Cacheable && w.CacheTTL <= 0 {
		return fmt.Errorf("%w: cacheable workflow needs a positive cache TTL", ErrInvalidDefinition)
	}
	return nil
}

// versionLess compares dotted numeric versions, so "1.10" sorts after
// "1.9". Non-numeric segments fall back to string order.
func versionLess(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			if as[i] != bs[i] {
				return as[i] < bs[i]
			}
			continue
		}
		if an != bn {
			return an < bn
		}
	}
	return len(as) < len(bs)
}
