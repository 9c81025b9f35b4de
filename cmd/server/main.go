// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "marvelmind-service/docs"
	"marvelmind-service/internal/config"
	"marvelmind-service/internal/database"
	"marvelmind-service/internal/discovery"
	"marvelmind-service/internal/discovery/serialport"
	"marvelmind-service/internal/discovery/usb"
	"marvelmind-service/internal/driver/sim"
	"marvelmind-service/internal/handler"
	"marvelmind-service/internal/repository"
	"marvelmind-service/internal/routes"
	"marvelmind-service/internal/service"
	"marvelmind-service/internal/utils"
	"marvelmind-service/pkg/marvelmind"
	"marvelmind-service/pkg/marvelmind/native"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	positionRepo repository.PositionRepository
	tracking     *service.TrackingService
	recorder     *service.TrackRecorder
	mqtt         *service.MQTTPublisher
	wsHandler    *handler.WebSocketHandler
	scanners     []discovery.Scanner
}

// @title Marvelmind Tracking Service API
// @version 1.0.0
// @description Indoor positioning service for Marvelmind beacons: live positions, history, and modem control

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8086
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeDiscovery(); err != nil {
		return nil, fmt.Errorf("failed to initialize discovery: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up the position history store and runs
// migrations. Skipped entirely when persistence is disabled.
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Position history disabled, skipping database")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.positionRepo = repository.NewPositionRepository(db, app.logger)

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeServices wires the modem, the tracking pipeline, and the
// fix publishers.
func (app *Application) initializeServices() error {
	api, err := app.selectModemAPI()
	if err != nil {
		return err
	}

	if addr := app.config.Tracking.RecordAddress; addr != 0 {
		recorder, err := service.NewTrackRecorder(addr, app.config.Tracking.RecordPath, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create track recorder: %w", err)
		}
		app.recorder = recorder
	}

	app.tracking = service.NewTrackingService(api, app.positionRepo, app.recorder, app.config, app.logger)

	eventBus := handler.NewEventBus(app.logger)
	app.wsHandler = handler.NewWebSocketHandler(app.tracking, eventBus, app.logger)
	app.tracking.AddPublisher(app.wsHandler)

	if app.config.MQTT.Enabled {
		mqttPub, err := service.NewMQTTPublisher(&app.config.MQTT, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create mqtt publisher: %w", err)
		}
		app.mqtt = mqttPub
		app.tracking.AddPublisher(mqttPub)
	}

	app.logger.Info("Services initialized successfully")
	return nil
}

// selectModemAPI picks the simulated or native vendor API.
func (app *Application) selectModemAPI() (marvelmind.VendorAPI, error) {
	if app.config.Modem.Simulated {
		app.logger.Info("Using simulated modem")
		return sim.NewModem(
			sim.Beacon{Address: 1, TypeID: 42, FwMajor: 7, FwMinor: 0, X: 0, Y: 0, Z: 500, VX: 25, VY: 10, Quality: 90},
			sim.Beacon{Address: 2, TypeID: 42, FwMajor: 7, FwMinor: 0, X: 4000, Y: 0, Z: 500, VX: -15, VY: 20, Quality: 85},
			sim.Beacon{Address: 3, TypeID: 43, FwMajor: 7, FwMinor: 0, X: 0, Y: 4000, Z: 500, VY: -30, Quality: 92},
		), nil
	}

	if !native.Available() {
		return nil, fmt.Errorf("vendor library not linked in this build; set modem.simulated or rebuild with the marvelmind_native tag")
	}

	app.logger.Info("Using native modem library")
	return native.New(), nil
}

// initializeDiscovery sets up the modem discovery scanners.
func (app *Application) initializeDiscovery() error {
	usbScanner, err := usb.NewScanner(app.config.Modem.USBVendorID, app.config.Modem.USBProductID, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create usb scanner: %w", err)
	}

	app.scanners = []discovery.Scanner{
		usbScanner,
		serialport.NewScanner(app.config.Modem.PortPatterns, app.logger),
	}

	app.logger.Info("Discovery initialized successfully",
		zap.Int("scanners", len(app.scanners)))
	return nil
}

// initializeServer builds the HTTP server around the router.
func (app *Application) initializeServer() {
	router := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.tracking,
		app.scanners,
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}
}

// startBackgroundServices launches tracking and the cleanup loop.
func (app *Application) startBackgroundServices() {
	// The modem may still be booting when the service comes up; a
	// failed start leaves the /modem/connect endpoint as the retry path.
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Modem.OpenTimeout+5*time.Second)
	defer cancel()

	if err := app.tracking.Start(ctx); err != nil {
		app.logger.Error("Tracking did not start, connect via API to retry", zap.Error(err))
	}

	if app.positionRepo != nil && app.config.Tracking.Retention > 0 {
		go app.startCleanupService()
	}
}

// startCleanupService deletes fixes older than the retention window.
func (app *Application) startCleanupService() {
	ticker := time.NewTicker(app.config.Tracking.CleanupInterval)
	defer ticker.Stop()

	app.logger.Info("Cleanup service started",
		zap.Duration("retention", app.config.Tracking.Retention),
		zap.Duration("interval", app.config.Tracking.CleanupInterval),
	)

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)

		cutoff := time.Now().Add(-app.config.Tracking.Retention)
		deleted, err := app.positionRepo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			app.logger.Error("Failed to cleanup old fixes", zap.Error(err))
		} else if deleted > 0 {
			app.logger.Info("Cleaned up old fixes", zap.Int64("deleted", deleted))
		}

		cancel()
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.tracking.Stop(); err != nil {
		app.logger.Error("Tracking stop error", zap.Error(err))
	}

	if app.recorder != nil {
		if err := app.recorder.Close(); err != nil {
			app.logger.Error("Track recorder close error", zap.Error(err))
		}
	}

	if app.mqtt != nil {
		app.mqtt.Close()
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
