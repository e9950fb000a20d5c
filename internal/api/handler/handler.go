// Package handler provides HTTP handlers for all API endpoints.
// Handlers call the dispatcher and the schedule index directly; there is no
// service layer.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/direct-dispatch/internal/api/respond"
	"github.com/albapepper/direct-dispatch/internal/cache"
	"github.com/albapepper/direct-dispatch/internal/dispatch"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

// Runner starts a dispatch run.
type Runner interface {
	Run(ctx context.Context) (*dispatch.RunResult, error)
}

// ScheduleIndex reads and extends the day schedule.
type ScheduleIndex interface {
	Load(ctx context.Context, day string) (*schedule.Partition, error)
	Add(ctx context.Context, ev *event.Event) (schedule.Entry, error)
}

// EventSource loads event records.
type EventSource interface {
	Get(ctx context.Context, id string) (*event.Event, error)
}

// Pinger reports backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators shared by all handlers. Store and Geo may be
// nil when the backend cannot report its health.
type Deps struct {
	Runner   Runner
	Schedule ScheduleIndex
	Events   EventSource
	Store    Pinger
	Geo      Pinger
	Cache    *cache.Cache
	Logger   *slog.Logger
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	Deps
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cache == nil {
		d.Cache = cache.New(false)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{Deps: d}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "Direct Dispatch",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
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
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckStore verifies document store connectivity.
// @Summary Document store health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/store [get]
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	h.ping(w, r, "store", h.Store)
}

// HealthCheckGeo verifies geospatial index connectivity.
// @Summary Geo index health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/geo [get]
func (h *Handler) HealthCheckGeo(w http.ResponseWriter, r *http.Request) {
	h.ping(w, r, "geo", h.Geo)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request, name string, p Pinger) {
	ts := h.Now().UTC().Format(time.RFC3339)
	if p == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]any{
			"status": "healthy", name: "unchecked", "timestamp": ts,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		h.Logger.Warn("Health check failed", "backend", name, "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			name:        "disconnected",
			"error":     name + " connection check failed",
			"timestamp": ts,
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status": "healthy", name: "connected", "timestamp": ts,
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.Cache.Stats(),
		"timestamp": h.Now().UTC().Format(time.RFC3339),
	})
}
