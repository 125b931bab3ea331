// cmd/serial2pipe/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"serial2pipe/internal/config"
	"serial2pipe/internal/discovery"
	serialdiscovery "serial2pipe/internal/discovery/serial"
	"serial2pipe/internal/event"
	"serial2pipe/internal/handler"
	"serial2pipe/internal/protocol"
	"serial2pipe/internal/relay"
	"serial2pipe/internal/routes"
	"serial2pipe/internal/utils"
)

// Application represents the relay service
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	bus         *event.Bus
	coordinator *relay.Coordinator
	scanner     *serialdiscovery.Scanner
	wsHandler   *handler.WebSocketHandler
}

func runRelay(cmd *cobra.Command, v *viper.Viper, configFile string) error {
	if err := bindRelayFlags(cmd, v); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	app, err := NewApplication(v, configFile)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

// NewApplication loads configuration and wires the relay. No endpoint is
// opened until Run.
func NewApplication(v *viper.Viper, configFile string) (*Application, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config:  cfg,
		logger:  logger,
		scanner: serialdiscovery.NewScanner(logger),
		bus:     event.NewBus(logger),
	}

	app.logAvailablePorts()

	if err := app.initializeRelay(); err != nil {
		return nil, fmt.Errorf("failed to initialize relay: %w", err)
	}

	if cfg.HTTP.Enabled {
		app.initializeServer()
	}

	return app, nil
}

// logAvailablePorts logs the serial ports present at startup. A missing
// configured port is only a warning; opening it decides.
func (app *Application) logAvailablePorts() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ports, err := app.scanner.Scan(ctx)
	if err != nil {
		app.logger.Warn("Failed to enumerate serial ports", zap.Error(err))
		return
	}

	app.logger.Info("Available serial ports", zap.Strings("ports", discovery.Names(ports)))

	if !discovery.Contains(ports, app.config.Relay.SerialPort) {
		app.logger.Warn("Configured serial port not found",
			zap.String("serial_port", app.config.Relay.SerialPort),
		)
	}
}

func (app *Application) initializeRelay() error {
	device, pipe, err := protocol.CreateEndpoints(app.config.SerialConfig(), app.config.PipeConfig(), nil, app.logger)
	if err != nil {
		return err
	}

	app.coordinator = relay.NewCoordinator(device, pipe, relay.Options{
		ReadTimeout:     app.config.Relay.ReadTimeout,
		Backoff:         app.config.Relay.ReconnectBackoff,
		StatsInterval:   app.config.Relay.StatsInterval,
		ShutdownTimeout: app.config.Relay.ShutdownTimeout,
		BufferSize:      app.config.Relay.BufferSize,
	}, app.logger, app.bus)

	return nil
}

func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(app.config, app.logger, app.coordinator, app.scanner, app.bus)
	router := routerManager.SetupRouter()
	app.wsHandler = routerManager.WebSocketHandler()

	app.server = &http.Server{
		Addr:         app.config.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		IdleTimeout:  app.config.HTTP.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.config.HTTPAddr()))
}

// Run starts the relay and blocks until ctx is cancelled. A failure to
// acquire either endpoint at startup is returned.
func (app *Application) Run(ctx context.Context) error {
	go app.bus.Start()

	if err := app.coordinator.Start(ctx); err != nil {
		app.logger.Error("Failed to start relay", zap.Error(err))
		app.coordinator.Stop()
		app.bus.Stop()
		utils.CloseLogger(app.logger)
		return err
	}

	if app.server != nil {
		go app.wsHandler.Run(ctx)
		go app.serve()
	}

	<-ctx.Done()
	app.logger.Info("Received shutdown signal")

	app.shutdown()
	return nil
}

func (app *Application) serve() {
	defer utils.LogPanic(app.logger)

	app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		// The relay keeps running without its status API
		app.logger.Error("HTTP server failed", zap.Error(err))
	}
}

func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP server stopped")
		}
	}

	app.coordinator.Stop()
	app.bus.Stop()

	app.logger.Info("Application shutdown completed")
	utils.CloseLogger(app.logger)
}
