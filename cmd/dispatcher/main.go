package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/AminderM/Magic-33-sub001/internal/pkg/config"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/health"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/logger"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/middleware"
	nrpkg "github.com/AminderM/Magic-33-sub001/internal/pkg/newrelic"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/server"
	"github.com/AminderM/Magic-33-sub001/internal/pkg/stream"
	"github.com/AminderM/Magic-33-sub001/services/dispatcher"
	"github.com/labstack/echo/v4"
)

func main() {
	appName := "dispatcher-service"
	configs := config.InitConfig(config.GetEnv("CONFIG_PATH", "config/dispatcher.env"))
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

	zapLogger.Info("Starting application",
		logger.String("app", appName),
		logger.String("version", configs.App.Version),
		logger.String("stream", configs.Stream.BaseURL),
		logger.String("fleet_api", configs.Fleet.APIURL),
	)

	endpoint, err := stream.FleetEndpoint(configs.Stream.BaseURL)
	if err != nil {
		zapLogger.Fatal("Invalid stream base URL", logger.Err(err))
	}
	manager := stream.NewManager(stream.ConfigFromModel(endpoint, configs.Stream), zapLogger)

	var opts []dispatcher.RegistryOption
	if configs.Fleet.StaleGuard {
		opts = append(opts, dispatcher.WithStaleGuard())
	}
	registry := dispatcher.NewRegistry(opts...)
	fetcher := dispatcher.NewFetcherFromConfig(configs.Fleet, zapLogger)
	sessionCfg := dispatcher.SessionConfigFromModel(configs.Fleet)
	sessionCfg.NewRelic = nrApp
	session := dispatcher.NewSession(sessionCfg, manager, registry, fetcher, zapLogger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDMiddleware())
	e.Use(middleware.PanicRecoveryWithZapMiddleware(zapLogger))
	e.Use(nrpkg.Middleware(nrApp))
	e.Use(logger.ZapEchoMiddleware(zapLogger))

	healthService := health.NewService(zapLogger)
	healthService.AddChecker("tracking-stream", health.StreamChecker(session))
	health.RegisterHealthEndpoints(e, appName, healthService)

	dispatcher.NewHandler(session).RegisterRoutes(e)

	go func() {
		if err := session.Run(context.Background()); err != nil && !errors.Is(err, dispatcher.ErrSessionClosed) {
			zapLogger.Error("Fleet session stopped", logger.Err(err))
		}
	}()

	srv := server.NewGracefulServer(e, zapLogger, configs.Server.Host, configs.Server.Port,
		time.Duration(configs.Server.ShutdownTimeout)*time.Second)
	srv.Register("fleet-session", func(ctx context.Context) error {
		return session.Close()
	})

	if err := srv.Start(); err != nil {
		zapLogger.Fatal("Server stopped with error", logger.Err(err))
	}
}
