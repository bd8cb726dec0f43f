package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"ensemble-chat/backend/pkg/config"
	"ensemble-chat/backend/pkg/di"
	"ensemble-chat/backend/pkg/router"
	"ensemble-chat/backend/shared/observability"
)

func main() {
	cfg := config.New()

	// Tracing and metrics first so the orchestrator's instruments bind to
	// the real provider.
	shutdownTracing := observability.SetupTracing("ensemble-chat-backend")
	defer shutdownTracing()
	otel.SetMeterProvider(observability.SetupPrometheusMetrics())

	container, err := di.New(cfg)
	if err != nil {
		// The container's logger may not exist yet; stderr is all we have.
		os.Stderr.WriteString("failed to initialize application: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := container.Logger
	defer container.Close()

	log.Info("Starting application", "env", cfg.Server.Env)

	container.Health.Start()

	r := router.New(container)
	r.SetupRoutes()

	// Add OpenAPI validation if a schema file is available
	if cfg.Validation.OpenAPISchemaPath != "" {
		r.AddOpenAPIValidation(cfg.Validation.OpenAPISchemaPath)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
