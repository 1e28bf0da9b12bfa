// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"greenchainz/gateway/cache"
	"greenchainz/gateway/calllog"
	"greenchainz/gateway/entitlements"
	"greenchainz/gateway/registry"
	"greenchainz/gateway/shared/logger"
)

// Server is the gateway's HTTP surface.
type Server struct {
	orchestrator *Orchestrator
	registry     *registry.Registry
	ents         *entitlements.Service
	cache        *cache.Cache
	calls        *calllog.CallLogger
	log          *logger.Logger

	jwtSecret string
	limiter   *ipLimiter
}

// NewServer builds the HTTP surface over the orchestrator.
func NewServer(o *Orchestrator, reg *registry.Registry, ents *entitlements.Service,
	c *cache.Cache, calls *calllog.CallLogger, log *logger.Logger,
	jwtSecret string, rateLimit float64, rateBurst int) *Server {
	return &Server{
		orchestrator: o,
		registry:     reg,
		ents:         ents,
		cache:        c,
		calls:        calls,
		log:          log,
		jwtSecret:    jwtSecret,
		limiter:      newIPLimiter(rateLimit, rateBurst),
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(mux.MiddlewareFunc(s.authMiddleware))
	api.HandleFunc("/workflows", s.handleListWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/entitlements", s.handleEntitlements).Methods(http.MethodGet)
	api.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/usage", s.handleUsage).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(s.adminOnly))
	admin.HandleFunc("/workflows", s.handleRegisterWorkflow).Methods(http.MethodPost)
	admin.HandleFunc("/workflows/{name}/{version}", s.handleUpdateWorkflow).Methods(http.MethodPut)
	admin.HandleFunc("/workflows/{name}/{version}", s.handleDeactivateWorkflow).Methods(http.MethodDelete)
	admin.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	admin.HandleFunc("/cache/{workflow}", s.handleInvalidateCache).Methods(http.MethodDelete)
	admin.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	admin.HandleFunc("/quotas/{userID}", s.handleSetQuota).Methods(http.MethodPut)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return s.rateLimitMiddleware(c.Handler(r))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, ge *GatewayError) {
	writeJSON(w, ge.Status, map[string]interface{}{"error": ge})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"registry":          s.registry.Healthy(),
		"cache":             s.cache.Healthy(r.Context()),
		"backendConfigured": s.orchestrator.ProviderHealthy(),
	}
	healthy := true
	for _, ok := range checks {
		healthy = healthy && ok
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy":   healthy,
		"service":   "ai-gateway",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	tier := s.ents.GetTier(r.Context(), userID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tier":      tier,
		"workflows": s.registry.ListForTier(tier),
	})
}

func (s *Server) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	ent, err := s.ents.GetEntitlements(r.Context(), userID(r.Context()))
	if err != nil {
		s.log.ErrorWithErr(strconv.FormatInt(userID(r.Context()), 10), "", "entitlement lookup failed", err, nil)
		writeError(w, newError(CodeUnknownError, "failed to load entitlements", http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

type executeBody struct {
	Workflow string                 `json:"workflow"`
	Version  string                 `json:"version"`
	Input    map[string]interface{} `json:"input"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body executeBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, newError(CodeUnknownError, "invalid request body", http.StatusBadRequest))
		return
	}
	if body.Workflow == "" || len(body.Input) == 0 {
		writeError(w, newError(CodeUnknownError, "workflow and input are required", http.StatusBadRequest))
		return
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	resp, gerr := s.orchestrator.Execute(r.Context(), &ExecuteRequest{
		UserID:    userID(r.Context()),
		Workflow:  body.Workflow,
		Version:   body.Version,
		Input:     body.Input,
		RequestID: r.Header.Get("X-Request-ID"),
		SessionID: r.Header.Get("X-Session-ID"),
		ClientIP:  ip,
		UserAgent: r.UserAgent(),
	})
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, err := s.calls.History(r.Context(), userID(r.Context()), calllog.HistoryFilter{
		Workflow: q.Get("workflow"),
		Status:   q.Get("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, newError(CodeUnknownError, "failed to load history", http.StatusInternalServerError))
		return
	}
	if entries == nil {
		entries = []*calllog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"calls": entries})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, -1, 0)
	stats, err := s.calls.GetUsageStats(r.Context(), userID(r.Context()), since)
	if err != nil {
		writeError(w, newError(CodeUnknownError, "failed to load usage stats", http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRegisterWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf registry.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeError(w, newError(CodeUnknownError, "invalid workflow definition", http.StatusBadRequest))
		return
	}
	if err := s.registry.Register(r.Context(), &wf); err != nil {
		writeError(w, registryWriteError(err))
		return
	}
	writeJSON(w, http.StatusCreated, &wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var wf registry.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeError(w, newError(CodeUnknownError, "invalid workflow definition", http.StatusBadRequest))
		return
	}
	wf.Name = vars["name"]
	wf.Version = vars["version"]
	if err := s.registry.Update(r.Context(), &wf); err != nil {
		writeError(w, registryWriteError(err))
		return
	}
	writeJSON(w, http.StatusOK, &wf)
}

func (s *Server) handleDeactivateWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.registry.Deactivate(r.Context(), vars["name"], vars["version"]); err != nil {
		writeError(w, registryWriteError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeError(w, newError(CodeUnknownError, "failed to load cache stats", http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	workflow := mux.Vars(r)["workflow"]
	n, err := s.cache.Invalidate(r.Context(), workflow)
	if err != nil {
		writeError(w, newError(CodeUnknownError, "failed to invalidate cache", http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invalidated": n})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, -1, 0)
	stats, err := s.calls.GetWorkflowAnalytics(r.Context(), since)
	if err != nil {
		writeError(w, newError(CodeUnknownError, "failed to load analytics", http.StatusInternalServerError))
		return
	}
	if stats == nil {
		stats = []*calllog.WorkflowStats{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": stats})
}

type quotaBody struct {
	CallLimit  *int64 `json:"callLimit"`
	TokenLimit *int64 `json:"tokenLimit"`
}

func (s *Server) handleSetQuota(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(mux.Vars(r)["userID"], 10, 64)
	if err != nil {
		writeError(w, newError(CodeUnknownError, "invalid user id", http.StatusBadRequest))
		return
	}
	var body quotaBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, newError(CodeUnknownError, "invalid request body", http.StatusBadRequest))
		return
	}
	if err := s.ents.SetCustomLimits(r.Context(), uid, body.CallLimit, body.TokenLimit); err != nil {
		if errors.Is(err, entitlements.ErrUserNotFound) {
			writeError(w, newError(CodeUnknownError, "user not found", http.StatusNotFound))
			return
		}
		writeError(w, newError(CodeUnknownError, "failed to set quota", http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func registryWriteError(err error) *GatewayError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrNotFound):
		return newError(CodeWorkflowNotAvailable, "workflow not found", http.StatusNotFound)
	case errors.Is(err, registry.ErrDuplicate):
		return newError(CodeUnknownError, "workflow already exists", http.StatusConflict)
	case errors.Is(err, registry.ErrInvalidDefinition):
		return newError(CodeUnknownError, err.Error(), http.StatusBadRequest)
	default:
		return newError(CodeUnknownError, "workflow write failed", http.StatusInternalServerError)
	}
}
