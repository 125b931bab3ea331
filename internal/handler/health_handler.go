// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial2pipe/internal/config"
	"serial2pipe/internal/model"
	"serial2pipe/internal/utils"
)

// RelayStatusProvider exposes the relay state to the HTTP API
type RelayStatusProvider interface {
	Status() model.RelayStatus
	Ready() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	relay     RelayStatusProvider
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(relay RelayStatusProvider, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		relay:     relay,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports overall relay health. The process answers 200 while it
// runs; a direction that is not relaying only degrades the status.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	status := h.relay.Status()
	for _, d := range status.Directions {
		check := CheckResult{
			Status: "healthy",
			Data: map[string]interface{}{
				"source":      d.Source,
				"destination": d.Destination,
				"state":       d.State,
			},
		}
		if d.State != model.DirectionStateRelaying {
			check.Status = "degraded"
			check.Message = "direction is " + string(d.State)
			health.Status = "degraded"
		}
		health.Checks[string(d.Name)] = check
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck succeeds once both directions are relaying
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.relay.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "relay directions not connected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck succeeds while the process can respond
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
