package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"ai-bot-network/backend/internal/tier"
	"ai-bot-network/backend/pkg/health"
	"ai-bot-network/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports component health, the degradation ladder and the
// dependency breakers
type HealthHandler struct {
	checker    *health.Checker
	dispatcher *tier.Dispatcher
	breakers   map[string]*resilience.CircuitBreaker
	version    string
	started    time.Time
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status     health.Status                 `json:"status"`
	Timestamp  time.Time                     `json:"timestamp"`
	Version    string                        `json:"version"`
	Uptime     string                        `json:"uptime"`
	Tiers      []tier.Level                  `json:"tiers"`
	Breakers   map[string]resilience.Metrics `json:"breakers"`
	Components map[string]*health.Component `json:"components"`
}

// NewHealthHandler creates a health handler and registers a check that
// reports degraded while any dependency breaker is not closed
func NewHealthHandler(checker *health.Checker, dispatcher *tier.Dispatcher, breakers map[string]*resilience.CircuitBreaker, version string) *HealthHandler {
	h := &HealthHandler{checker: checker, dispatcher: dispatcher, breakers: breakers, version: version, started: time.Now()}
	checker.RegisterCheck("breakers", false, h.checkBreakers)
	return h
}

func (h *HealthHandler) checkBreakers(context.Context) (health.Status, string, error) {
	var tripped []string
	for name, cb := range h.breakers {
		if state := cb.GetState(); state != resilience.StateClosed {
			tripped = append(tripped, fmt.Sprintf("%s=%s", name, state))
		}
	}
	if len(tripped) > 0 {
		sort.Strings(tripped)
		return health.StatusDegraded, "breakers not closed: " + strings.Join(tripped, ", "), nil
	}
	return health.StatusUp, "all breakers closed", nil
}

// Health returns the aggregated health report
func (h *HealthHandler) Health(c *gin.Context) {
	breakers := make(map[string]resilience.Metrics, len(h.breakers))
	for name, cb := range h.breakers {
		breakers[name] = cb.GetMetrics()
	}

	overall := h.checker.Overall()
	code := http.StatusOK
	if overall == health.StatusDown {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Tiers:      h.dispatcher.Levels(),
		Breakers:   breakers,
		Components: h.checker.GetStatus(),
	})
}

// RegisterHealthRoutes registers health check related routes
func (h *HealthHandler) RegisterHealthRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
}
