// internal/handler/stats_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial2pipe/internal/discovery"
	"serial2pipe/internal/utils"
)

// StatsHandler serves relay statistics and serial port enumeration
type StatsHandler struct {
	relay   RelayStatusProvider
	scanner discovery.PortScanner
	logger  *utils.ServiceLogger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(relay RelayStatusProvider, scanner discovery.PortScanner, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		relay:   relay,
		scanner: scanner,
		logger:  utils.NewServiceLogger(logger, "stats-handler"),
	}
}

// RegisterRoutes registers stats routes
func (h *StatsHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/stats", h.GetStats)
	router.GET("/ports", h.ListPorts)
}

// GetStats returns per-direction counters. Unlike the periodic report it
// does not reset anything.
func (h *StatsHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Relay statistics", h.relay.Status())
}

// ListPorts enumerates the serial ports present on this machine
func (h *StatsHandler) ListPorts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	ports, err := h.scanner.Scan(ctx)
	if err != nil {
		h.logger.Error("Failed to enumerate serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to enumerate serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports enumerated", gin.H{
		"ports": ports,
		"count": len(ports),
	})
}
