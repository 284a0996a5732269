// Command main is the entry point for the zanhu backend server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zanhu/internal/bootstrap"
	"zanhu/internal/config"
	"zanhu/internal/middleware"
	"zanhu/internal/observability"
	"zanhu/internal/server"

	_ "zanhu/docs"
)

// @title Zanhu API
// @version 1.0
// @description Developer community API with news feed, articles, Q&A, private messages and notifications
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@zanhu.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))
	slog.SetDefault(middleware.Logger)
	observability.SetLogger(middleware.Logger)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "zanhu-api",
		ServiceVersion: "1.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{
		SeedDemo: cfg.DevSeedDemo && cfg.Env == "development",
	})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		middleware.Logger.Info("shutting down server", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			middleware.Logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		middleware.Logger.Error("server resource shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(ctx); err != nil {
		middleware.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
}
