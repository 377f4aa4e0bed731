// Package server exposes the operator-facing HTTP surface: the cache
// status endpoint, prometheus metrics and a liveness probe. The status
// handler reads backend state directly from the store — its own payload
// is never cached.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calndr/calndr-go/cache"
)

// Handler carries the dependencies of the operator endpoints.
type Handler struct {
	store  cache.Store
	logger *zap.Logger
}

// NewRouter builds the operator router. The gatherer feeds /metrics;
// pass prometheus.DefaultGatherer unless the metrics live on a custom
// registry.
func NewRouter(store cache.Store, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{store: store, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Get("/api/v1/cache/status", h.cacheStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cacheStatus reports connectivity, backend memory and the process-local
// hit/miss counters. A degraded backend is still a 200: the system keeps
// serving from the database, the status just says disconnected.
func (h *Handler) cacheStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("cache stats failed", zap.Error(err))
		h.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache stats unavailable"})
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encode failed", zap.Error(err))
	}
}
