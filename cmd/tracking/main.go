package main

import (
	"context"
	"log"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/config"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/database"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/health"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/middleware"
	natspkg "github.com/AminderM/Magic-33-sub001/internal/pkg/nats"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/server"
	"github.com/AminderM/Magic-33-sub001/services/tracking/gateway"
	"github.com/AminderM/Magic-33-sub001/services/tracking/handler"
	wsHandler "github.com/AminderM/Magic-33-sub001/services/tracking/handler/websocket"
	"github.com/AminderM/Magic-33-sub001/services/tracking/repository"
	"github.com/AminderM/Magic-33-sub001/services/tracking/usecase"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func main() {
	appName := "tracking-service"
	configs := config.InitConfig(config.GetEnv("CONFIG_PATH", "config/tracking.env"))
	if err := config.Validate(configs); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize New Relic and Zap logger
	nrApp := nrpkg.InitNewRelic(configs)
	if nrApp != nil {
		if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		}
	}

	zapLogger, err := logger.InitZapLoggerFromConfig(configs, appName, nrApp)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()
	logger.SetGlobalLogger(zapLogger)

	zapLogger.Info("Starting application",
		logger.String("app", appName),
		logger.String("version", configs.App.Version),
		logger.String("environment", configs.App.Environment),
	)

	// Initialize Redis client
	redisClient, err := database.NewRedisClient(configs.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", logger.Err(err))
	}

	// NATS is optional; without it every instance serves only its own drivers
	var natsClient *natspkg.Client
	if configs.NATS.URL != "" {
		natsClient, err = natspkg.NewClient(configs.NATS.URL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to NATS", logger.Err(err))
		}
	} else {
		zapLogger.Warn("NATS_URL not set, running as a single instance")
	}

	origin := uuid.NewString()

	vehicleRepo := repository.NewVehicleRepository(redisClient, configs.Tracking)
	trackingGW := gateway.NewTrackingGW(natsClient, origin)
	trackingUC := usecase.NewTrackingUC(vehicleRepo, trackingGW, zapLogger)

	hub := wsHandler.NewHub(trackingUC, zapLogger)

	var natsHandler *handler.NATSHandler
	if natsClient != nil {
		natsHandler = handler.NewNATSHandler(natsClient, hub, origin, zapLogger)
		if err := natsHandler.InitNATSConsumers(); err != nil {
			zapLogger.Fatal("Failed to initialize NATS consumers", logger.Err(err))
		}
	}

	httpHandler := handler.NewHTTPHandler(trackingUC, hub, configs.Tracking.APIKeys)

	// Initialize Echo router
	e := echo.New()
	e.HideBanner = true

	// Add middlewares
	e.Use(middleware.RequestIDMiddleware())
	e.Use(middleware.PanicRecoveryWithZapMiddleware(zapLogger))
	e.Use(nrpkg.Middleware(nrApp))
	e.Use(logger.ZapEchoMiddleware(zapLogger))

	// Register health endpoints
	healthService := health.NewService(zapLogger)
	healthService.AddChecker("redis", health.RedisChecker(redisClient))
	if natsClient != nil {
		healthService.AddChecker("nats", health.NATSChecker(natsClient))
	}
	health.RegisterHealthEndpoints(e, appName, healthService)

	// Register service routes
	httpHandler.RegisterRoutes(e)

	srv := server.NewGracefulServer(e, zapLogger, configs.Server.Host, configs.Server.Port,
		time.Duration(configs.Server.ShutdownTimeout)*time.Second)
	srv.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})
	if natsClient != nil {
		srv.Register("nats", func(ctx context.Context) error {
			natsClient.Close()
			return nil
		})
		srv.Register("nats-consumers", func(ctx context.Context) error {
			return natsHandler.Close()
		})
	}
	srv.Register("websocket-hub", func(ctx context.Context) error {
		return hub.Close()
	})

	if err := srv.Start(); err != nil {
		zapLogger.Fatal("Server stopped with error",
			logger.String("app", appName),
			logger.Err(err),
		)
	}
}
