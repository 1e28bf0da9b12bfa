// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenchainz/gateway/shared/logger"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *fixture) {
	t.Helper()
	fx := newFixture(t)
	log := logger.New("gateway-test")
	srv := NewServer(fx.orchestrator, fx.registry,
		fx.orchestrator.ents, fx.cache, fx.orchestrator.calls, log,
		testSecret, 1000, 1000)
	return srv, fx
}

func signToken(t *testing.T, userID int64, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:50000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
	assert.NotEmpty(t, body["timestamp"])

	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, true, checks["registry"])
	assert.Equal(t, true, checks["cache"])
	assert.Equal(t, true, checks["backendConfigured"])
}

func TestExecuteRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/execute", "",
		map[string]interface{}{"workflow": "carbon-estimator", "input": map[string]interface{}{"a": 1}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/execute", "not-a-token",
		map[string]interface{}{"workflow": "carbon-estimator", "input": map[string]interface{}{"a": 1}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExecuteEndpoint(t *testing.T) {
	srv, fx := newTestServer(t)
	token := signToken(t, 1, "buyer")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/execute", token,
		map[string]interface{}{
			"workflow": "carbon-estimator",
			"input":    map[string]interface{}{"material": "steel"},
		})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, `{"estimatedKgCO2e": 12.5}`, string(resp.Output))
	assert.Equal(t, 1, fx.callRepo.count())
}

func TestExecuteValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signToken(t, 1, "buyer")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/execute", token,
		map[string]interface{}{"workflow": "", "input": map[string]interface{}{"a": 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/execute", token,
		map[string]interface{}{"workflow": "carbon-estimator"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteErrorShape(t *testing.T) {
	srv, fx := newTestServer(t)
	fx.entRepo.roles[5] = "buyer"
	token := signToken(t, 5, "buyer")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/execute", token,
		map[string]interface{}{
			"workflow": "outreach-draft",
			"input":    map[string]interface{}{"supplier": "Acme"},
		})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error GatewayError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeWorkflowNotAvailable, body.Error.Code)
}

func TestListWorkflowsFilteredByTier(t *testing.T) {
	srv, fx := newTestServer(t)
	fx.entRepo.roles[5] = "buyer"
	token := signToken(t, 5, "buyer")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tier      string                   `json:"tier"`
		Workflows []map[string]interface{} `json:"workflows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "free", body.Tier)
	assert.Len(t, body.Workflows, 2)
}

func TestEntitlementsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signToken(t, 1, "buyer")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/entitlements", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tier  string `json:"tier"`
		Quota struct {
			CallsLimit int64 `json:"callsLimit"`
		} `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "enterprise", body.Tier)
	assert.Equal(t, int64(5000), body.Quota.CallsLimit)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signToken(t, 1, "buyer")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/admin/cache/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRegisterAndDeactivateWorkflow(t *testing.T) {
	srv, fx := newTestServer(t)
	fx.entRepo.roles[9] = "admin"
	token := signToken(t, 9, "admin")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/admin/workflows", token,
		map[string]interface{}{
			"name":            "supplier-vetting",
			"version":         "1.0",
			"type":            "compliance_check",
			"minimumTier":     "pro",
			"requiredFeature": "canAccessCompliance",
		})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// duplicate registration conflicts
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/admin/workflows", token,
		map[string]interface{}{"name": "supplier-vetting", "version": "1.0", "type": "compliance_check"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/admin/workflows/supplier-vetting/1.0", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/admin/workflows/missing/1.0", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSetQuota(t *testing.T) {
	srv, fx := newTestServer(t)
	fx.entRepo.roles[9] = "admin"
	token := signToken(t, 9, "admin")

	rec := doRequest(t, srv, http.MethodPut, "/api/v1/admin/quotas/1", token,
		map[string]interface{}{"callLimit": 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, fx.entRepo.EnsureQuota(context.Background(), 1, "enterprise"))
	rec = doRequest(t, srv, http.MethodPut, "/api/v1/admin/quotas/1", token,
		map[string]interface{}{"callLimit": 10})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, fx := newTestServer(t)
	token := signToken(t, 1, "buyer")

	doRequest(t, srv, http.MethodPost, "/api/v1/execute", token,
		map[string]interface{}{
			"workflow": "carbon-estimator",
			"input":    map[string]interface{}{"material": "steel"},
		})
	require.Equal(t, 1, fx.callRepo.count())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Calls []map[string]interface{} `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Calls, 1)

	// workflow and status query filters narrow the result
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/history?workflow=carbon-estimator&status=success", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Calls, 1)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/history?workflow=rfq-scorer", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Calls, 0)
}

func TestIPRateLimit(t *testing.T) {
	fx := newFixture(t)
	srv := NewServer(fx.orchestrator, fx.registry,
		fx.orchestrator.ents, fx.cache, fx.orchestrator.calls,
		logger.New("gateway-test"), testSecret, 1, 2)

	var limited bool
	for i := 0; i < 5; i++ {
		rec := doRequest(t, srv, http.MethodGet, "/health", "", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)
}
