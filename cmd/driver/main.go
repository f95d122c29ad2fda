package main

import (
	"context"
	"log"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/config"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/health"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/middleware"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/models"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/server"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/stream"
	"github.com/AminderM/Magic-33-sub001/services/driver"
	"github.com/AminderM/Magic-33-sub001/services/driver/source"
	"github.com/labstack/echo/v4"
)

func main() {
	appName := "driver-agent"
	configs := config.InitConfig(config.GetEnv("CONFIG_PATH", "config/driver.env"))
	if err := config.Validate(configs); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	nrApp := nrpkg.InitNewRelic(configs)
	zapLogger, err := logger.InitZapLoggerFromConfig(configs, appName, nrApp)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()
	logger.SetGlobalLogger(zapLogger)

	if configs.Driver.VehicleID == "" {
		zapLogger.Fatal("DRIVER_VEHICLE_ID is required")
	}
	zapLogger.Info("Starting application",
		logger.String("app", appName),
		logger.String("vehicle_id", configs.Driver.VehicleID),
		logger.String("source", configs.Driver.Source),
	)

	// Position source
	var positions driver.PositionSource
	switch configs.Driver.Source {
	case "nmea":
		nmea := source.NewNMEA(source.SerialOpener(configs.Driver.SerialDevice, configs.Driver.SerialBaud), zapLogger)
		defer nmea.Close()
		positions = nmea
	default:
		if configs.Driver.RouteFile == "" {
			zapLogger.Fatal("DRIVER_ROUTE_FILE is required for the replay source")
		}
		route, err := source.LoadRoute(configs.Driver.RouteFile)
		if err != nil {
			zapLogger.Fatal("Failed to load route", logger.Err(err))
		}
		positions = source.NewReplay(route)
	}

	endpoint, err := stream.VehicleEndpoint(configs.Stream.BaseURL, configs.Driver.VehicleID)
	if err != nil {
		zapLogger.Fatal("Invalid stream base URL", logger.Err(err))
	}
	manager := stream.NewManager(stream.ConfigFromModel(endpoint, configs.Stream), zapLogger)

	sampler := driver.NewSampler(driver.SamplerConfigFromModel(configs.Driver), positions, zapLogger)
	if configs.Driver.LoadID != "" {
		sampler.SetActiveLoad(configs.Driver.LoadID)
	}
	publisher := driver.NewPublisher(manager, sampler, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start tracking stream", logger.Err(err))
	}
	go publisher.Consume(ctx, manager.Events())

	tracker := driver.NewTracker(ctx, sampler, publisher, manager, zapLogger)
	if err := tracker.Enable(); err != nil {
		// Keep serving status so the driver sees why tracking is off
		zapLogger.Error("Location tracking not started", logger.Err(err))
	}

	go publisher.ReportStatus(ctx, configs.Driver.StatusInterval, driver.LoadStatus(sampler))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDMiddleware())
	e.Use(middleware.PanicRecoveryWithZapMiddleware(zapLogger))
	e.Use(nrpkg.Middleware(nrApp))
	e.Use(logger.ZapEchoMiddleware(zapLogger))

	healthService := health.NewService(zapLogger)
	healthService.AddChecker("tracking-stream", health.StreamChecker(streamStatus{manager}))
	health.RegisterHealthEndpoints(e, appName, healthService)

	driver.NewHandler(publisher, sampler, tracker).RegisterRoutes(e)

	srv := server.NewGracefulServer(e, zapLogger, configs.Server.Host, configs.Server.Port,
		time.Duration(configs.Server.ShutdownTimeout)*time.Second)
	srv.Register("tracking-stream", func(context.Context) error {
		return manager.Close()
	})
	srv.Register("sampler", func(context.Context) error {
		tracker.Disable()
		cancel()
		return nil
	})

	if err := srv.Start(); err != nil {
		zapLogger.Fatal("Server stopped with error", logger.Err(err))
	}
}

// streamStatus adapts the stream manager to the health checker
type streamStatus struct {
	m *stream.Manager
}

func (s streamStatus) ConnectionStatus() models.ConnectionStatus {
	return s.m.Status()
}
