package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	OK        bool    `json:"ok"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
	Env       string  `json:"env"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// DatabaseChecker is satisfied by *postgres.DB
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// RedisPinger is satisfied by every go-redis client
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db      DatabaseChecker
	redis   RedisPinger
	env     string
	started time.Time
	now     func() time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and rdb may be nil when
// the backend runs without them.
func NewHealthHandler(db DatabaseChecker, rdb RedisPinger, env string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   rdb,
		env:     env,
		started: time.Now(),
		now:     time.Now,
		logger:  logger,
	}
}

// HandleHealth handles /api/health. Only GET is allowed.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		_ = utils.WriteJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"ok":    false,
			"error": "Method Not Allowed",
		})
		return
	}

	now := h.now()
	_ = utils.WriteOK(w, HealthResponse{
		OK:        true,
		Uptime:    now.Sub(h.started).Seconds(),
		Timestamp: now.UTC().Format(time.RFC3339),
		Env:       h.env,
	})
}

// HandleReadiness handles GET /readyz.
// Every configured dependency must answer for the service to be ready.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.redis == nil {
		checks["redis"] = "not_configured"
	} else if err := h.redis.Ping(ctx).Err(); err != nil {
		h.logger.Warn("redis health check failed", zap.Error(err))
		checks["redis"] = "unhealthy"
		allHealthy = false
	} else {
		checks["redis"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
