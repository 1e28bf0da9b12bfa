// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenchainz/gateway/entitlements"
	"greenchainz/gateway/shared/logger"
)

type mockStore struct {
	mu        sync.Mutex
	workflows map[string]*Workflow
	nextID    int64
	listErr   error
	getErr    error
}

func newMockStore() *mockStore {
	return &mockStore{workflows: make(map[string]*Workflow), nextID: 1}
}

func (m *mockStore) List(ctx context.Context, includeInactive bool) ([]*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Workflow
	for _, w := range m.workflows {
		if includeInactive || w.IsActive {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) Get(ctx context.Context, name, version string) (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	w, ok := m.workflows[strings.ToLower(name)+"@"+version]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *mockStore) GetLatest(ctx context.Context, name string) (*Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var best *Workflow
	for _, w := range m.workflows {
		if !w.IsActive || !strings.EqualFold(w.Name, name) {
			continue
		}
		if best == nil || versionLess(best.Version, w.Version) {
			best = w
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockStore) Insert(ctx context.Context, w *Workflow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(w.Name) + "@" + w.Version
	if _, ok := m.workflows[key]; ok {
		return 0, ErrDuplicate
	}
	id := m.nextID
	m.nextID++
	cp := *w
	cp.ID = id
	m.workflows[key] = &cp
	return id, nil
}

func (m *mockStore) Update(ctx context.Context, w *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(w.Name) + "@" + w.Version
	if _, ok := m.workflows[key]; !ok {
		return ErrNotFound
	}
	cp := *w
	m.workflows[key] = &cp
	return nil
}

func (m *mockStore) Deactivate(ctx context.Context, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[strings.ToLower(name)+"@"+version]
	if !ok {
		return ErrNotFound
	}
	w.IsActive = false
	return nil
}

func newTestRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	r := New(store, logger.New("registry-test"))
	require.NoError(t, r.Refresh(context.Background()))
	return r
}

func seedTwo(t *testing.T, store *mockStore) {
	t.Helper()
	for _, w := range []*Workflow{
		{Name: "carbon-estimator", Version: "1.0", Type: "carbon_estimator",
			MinimumTier: entitlements.TierFree, RequiredFeature: "canAccessCarbon",
			Cacheable: true, CacheTTL: time.Hour, IsActive: true},
		{Name: "carbon-estimator", Version: "1.2", Type: "carbon_estimator",
			MinimumTier: entitlements.TierFree, RequiredFeature: "canAccessCarbon",
			Cacheable: true, CacheTTL: time.Hour, IsActive: true},
		{Name: "rfq-scorer", Version: "1.0", Type: "rfq_scorer",
			MinimumTier: entitlements.TierPro, RequiredFeature: "canAccessRFQAssist", IsActive: true},
	} {
		_, err := store.Insert(context.Background(), w)
		require.NoError(t, err)
	}
}

func TestResolveLatestVersion(t *testing.T) {
	store := newMockStore()
	seedTwo(t, store)
	r := newTestRegistry(t, store)

	w, err := r.Resolve(context.Background(), "carbon-estimator", "")
	require.NoError(t, err)
	assert.Equal(t, "1.2", w.Version)

	w, err = r.Resolve(context.Background(), "Carbon-Estimator", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", w.Version)
}

func TestResolveNotFound(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(t, store)

	_, err := r.Resolve(context.Background(), "nonexistent", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveReadThrough(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(t, store)

	// workflow inserted after the snapshot was taken
	_, err := store.Insert(context.Background(), &Workflow{
		Name: "compliance-check", Version: "1.0", Type: "compliance_check",
		MinimumTier: entitlements.TierPro, RequiredFeature: "canAccessCompliance",
		Cacheable: true, CacheTTL: time.Hour, IsActive: true,
	})
	require.NoError(t, err)

	w, err := r.Resolve(context.Background(), "compliance-check", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "compliance-check", w.Name)
}

func TestRefreshKeepsStaleSnapshotOnStoreFailure(t *testing.T) {
	store := newMockStore()
	seedTwo(t, store)
	r := newTestRegistry(t, store)

	store.listErr = errors.New("db down")
	assert.Error(t, r.Refresh(context.Background()))

	// lookups still served from the last good snapshot
	w, err := r.Resolve(context.Background(), "carbon-estimator", "")
	require.NoError(t, err)
	assert.Equal(t, "1.2", w.Version)
}

func TestValidateAccess(t *testing.T) {
	store := newMockStore()
	seedTwo(t, store)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	res := r.ValidateAccess(ctx, "carbon-estimator", "", entitlements.TierFree)
	assert.True(t, res.Valid)
	require.NotNil(t, res.Workflow)

	res = r.ValidateAccess(ctx, "rfq-scorer", "", entitlements.TierFree)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, entitlements.ErrTierInsufficient)
	assert.Equal(t, entitlements.TierPro, res.RequiredTier)

	res = r.ValidateAccess(ctx, "rfq-scorer", "", entitlements.TierPro)
	assert.True(t, res.Valid)

	res = r.ValidateAccess(ctx, "missing", "", entitlements.TierAdmin)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, ErrNotFound)
}

func TestDeactivateRemovesFromSnapshot(t *testing.T) {
	store := newMockStore()
	seedTwo(t, store)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	require.NoError(t, r.Deactivate(ctx, "carbon-estimator", "1.2"))

	// latest falls back to the remaining active version
	w, err := r.Resolve(ctx, "carbon-estimator", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0", w.Version)
}

func TestRegisterValidation(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(t, store)
	ctx := context.Background()

	err := r.Register(ctx, &Workflow{Name: "x", Version: "1.0"})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	err = r.Register(ctx, &Workflow{Name: "x", Version: "1.0", Type: "t", Cacheable: true})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	// non-numeric version segments would break latest-version ordering
	// in the store
	err = r.Register(ctx, &Workflow{Name: "x", Version: "1.0-beta", Type: "t"})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	err = r.Register(ctx, &Workflow{Name: "x", Version: "1.0", Type: "t"})
	require.NoError(t, err)
	assert.ErrorIs(t, r.Register(ctx, &Workflow{Name: "X", Version: "1.0", Type: "t"}), ErrDuplicate)
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(t, store)
	ctx := context.Background()

	assert.False(t, r.Healthy())
	require.NoError(t, r.SeedDefaults(ctx))
	require.NoError(t, r.SeedDefaults(ctx))

	assert.Len(t, r.List(), 5)
	assert.True(t, r.Healthy())
}

func TestListForTier(t *testing.T) {
	store := newMockStore()
	r := newTestRegistry(t, store)
	require.NoError(t, r.SeedDefaults(context.Background()))

	names := func(ws []*Workflow) []string {
		var out []string
		for _, w := range ws {
			out = append(out, w.Name)
		}
		return out
	}

	free := names(r.ListForTier(entitlements.TierFree))
	assert.ElementsMatch(t, []string{"carbon-estimator", "material-alternative"}, free)

	pro := names(r.ListForTier(entitlements.TierPro))
	assert.ElementsMatch(t, []string{"carbon-estimator", "material-alternative", "rfq-scorer", "compliance-check"}, pro)

	assert.Len(t, r.ListForTier(entitlements.TierEnterprise), 5)
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess("1.9", "1.10"))
	assert.False(t, versionLess("1.10", "1.9"))
	assert.True(t, versionLess("1.0", "2.0"))
	assert.True(t, versionLess("1.0", "1.0.1"))
	assert.False(t, versionLess("1.0", "1.0"))
}
