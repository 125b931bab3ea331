// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"serial2pipe/internal/config"
	"serial2pipe/internal/discovery"
	"serial2pipe/internal/handler"
	"serial2pipe/internal/middleware"
	"serial2pipe/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config  *config.Config
	logger  *zap.Logger
	relay   handler.RelayStatusProvider
	scanner discovery.PortScanner
	events  handler.EventSource

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	relay handler.RelayStatusProvider,
	scanner discovery.PortScanner,
	events handler.EventSource,
) *Router {
	return &Router{
		config:  config,
		logger:  logger,
		relay:   relay,
		scanner: scanner,
		events:  events,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// WebSocketHandler returns the event stream handler; its Run loop must be
// started by the caller
func (r *Router) WebSocketHandler() *handler.WebSocketHandler {
	return r.wsHandler
}

func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.HTTP))
}

func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.relay, r.config, r.logger)
	statsHandler := handler.NewStatsHandler(r.relay, r.scanner, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(r.relay, r.events, r.logger)

	healthHandler.RegisterRoutes(router)
	statsHandler.RegisterRoutes(router.Group("/api/v1"))
	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.logger.Debug("Status API routes configured")
}
