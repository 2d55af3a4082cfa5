package health

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/internal/graphstore"
	"github.com/emergent-company/erm/internal/version"
	"github.com/emergent-company/erm/pkg/syshealth"
)

const checkTimeout = 5 * time.Second

// Pinger is the part of the schema-store pool health checks need.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	db      Pinger
	graph   graphstore.Port
	cfg     *config.Config
	host    *syshealth.Sampler
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(pool *pgxpool.Pool, graph graphstore.Port, cfg *config.Config, log *slog.Logger) *Handler {
	return newHandler(pool, graph, cfg, syshealth.NewSampler(syshealth.DefaultThresholds(), log))
}

func newHandler(db Pinger, graph graphstore.Port, cfg *config.Config, host *syshealth.Sampler) *Handler {
	return &Handler{
		db:      db,
		graph:   graph,
		cfg:     cfg,
		host:    host,
		startAt: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func check(err error) Check {
	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}
	return Check{Status: "healthy"}
}

func (h *Handler) runChecks(ctx context.Context) map[string]Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	return map[string]Check{
		"database": check(h.db.Ping(ctx)),
		"graph":    check(h.graph.HealthCheck(ctx)),
	}
}

func healthy(checks map[string]Check) bool {
	for _, c := range checks {
		if c.Status != "healthy" {
			return false
		}
	}
	return true
}

// Health returns the overall service health: the schema store and the
// graph store must both answer.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	checks := h.runChecks(c.Request().Context())

	status, code := "healthy", http.StatusOK
	if !healthy(checks) {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	return c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Version,
		Checks:    checks,
	})
}

// Healthz returns a simple health check (for k8s liveness probe)
// GET /healthz
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness status (for k8s readiness probe)
// GET /ready
func (h *Handler) Ready(c echo.Context) error {
	checks := h.runChecks(c.Request().Context())
	if !healthy(checks) {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": checks,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}

// Debug returns runtime information outside production.
// GET /debug
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(http.StatusOK, map[string]any{
		"environment": h.cfg.Environment,
		"version":     version.Info(),
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"host": h.host.Sample(c.Request().Context()),
		"graph": map[string]any{
			"configured": h.cfg.Graph.Enabled(),
			"database":   h.cfg.Graph.Database,
		},
		"traversal": map[string]any{
			"max_depth":      h.cfg.Traversal.MaxDepth,
			"max_path_depth": h.cfg.Traversal.MaxPathDepth,
			"max_paths":      h.cfg.Traversal.MaxPaths,
		},
	})
}
