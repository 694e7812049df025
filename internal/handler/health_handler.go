package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/response"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck is one named dependency check.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// QueueDepth reports how many items wait in a background queue.
type QueueDepth func(ctx context.Context) (int64, error)

// HealthHandler reports dependency status.
type HealthHandler struct {
	checks    []HealthCheck
	queueLen  QueueDepth
	startTime time.Time
	log       zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. queueLen may be nil.
func NewHealthHandler(log zerolog.Logger, queueLen QueueDepth, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		queueLen:  queueLen,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthStatus struct {
	Status        string            `json:"status"`
	Uptime        string            `json:"uptime"`
	Checks        map[string]string `json:"checks"`
	AttemptsQueue *int64            `json:"attemptsQueue,omitempty"`
}

// Health godoc
// GET /health
// Answers 200 with status "ok", or 503 with "degraded" when a dependency
// does not respond.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	out := healthStatus{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Checks: make(map[string]string, len(h.checks)),
	}

	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("check", check.Name).Msg("Health check failed")
			out.Checks[check.Name] = "down"
			out.Status = "degraded"
			continue
		}
		out.Checks[check.Name] = "up"
	}

	if h.queueLen != nil {
		if n, err := h.queueLen(ctx); err == nil {
			out.AttemptsQueue = &n
		}
	}

	status := http.StatusOK
	if out.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, out)
}
