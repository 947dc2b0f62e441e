// Package handler provides HTTP handlers for all API endpoints. Handlers
// decode and validate input, call the lifecycle components, and map their
// errors to status codes through respond.WriteDomainError.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/api/respond"
	"github.com/albapepper/matchday/internal/cache"
	"github.com/albapepper/matchday/internal/config"
	"github.com/albapepper/matchday/internal/live"
	"github.com/albapepper/matchday/internal/match"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/tournament"
)

// maxBodyBytes caps request bodies; referee payloads are tiny.
const maxBodyBytes = 64 << 10

// Deps are the components the handlers call into.
type Deps struct {
	Store     storage.Store
	Matches   *match.Manager
	Scheduler tournament.Scheduler
	Cache     *cache.Cache
	Hub       *live.Hub
	Config    *config.Config
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store   storage.Store
	matches *match.Manager
	sched   tournament.Scheduler
	cache   *cache.Cache
	hub     *live.Hub
	cfg     *config.Config
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &Handler{
		store:   d.Store,
		matches: d.Matches,
		sched:   d.Scheduler,
		cache:   d.Cache,
		hub:     d.Hub,
		cfg:     d.Config,
		clock:   d.Clock,
		logger:  d.Logger,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Matchday Lifecycle API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"store":   h.cfg.StoreDriver,
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies the configured store is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"driver":    h.cfg.StoreDriver,
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (keys, hits, evictions).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	})
}
