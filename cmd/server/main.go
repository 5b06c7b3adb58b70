package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"docverify/internal/app"
	httpapi "docverify/internal/http"
	"docverify/internal/platform/config"
	"docverify/internal/platform/httpserver"
	"docverify/internal/platform/logger"
	"docverify/internal/verification/handler"
	"docverify/pkg/platform/middleware/auth"
)

// main wires dependencies, serves the HTTP API and drains background jobs on
// shutdown. Business logic lives in internal packages.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	log := logger.New(cfg.Log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Jobs run on their own context so a signal lets them finish during the
	// drain instead of cancelling them mid-run.
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	application, err := app.Build(jobsCtx, cfg, log)
	if err != nil {
		log.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	var tokens auth.TokenVerifier
	if cfg.Auth.JWTSigningKey != "" {
		verifier, err := auth.NewHS256Verifier(cfg.Auth.JWTSigningKey)
		if err != nil {
			log.Error("invalid JWT signing key", "error", err)
			os.Exit(1)
		}
		tokens = verifier
	}

	checks := make(map[string]httpapi.HealthCheck, len(application.HealthChecks))
	for name, check := range application.HealthChecks {
		checks[name] = check
	}
	router := httpapi.NewRouter(httpapi.Config{
		Logger:       log,
		AdminToken:   cfg.Auth.AdminToken,
		Tokens:       tokens,
		Gatherer:     prometheus.DefaultGatherer,
		HealthChecks: checks,
		RateLimit:    application.RateLimit,
	},
		handler.New(application.Orchestrator, application.Jobs, application.Results, log, cfg.Limits.MaxFileBytes),
		handler.NewAdmin(application.Breakers, log),
	)

	srv := httpserver.New(cfg.Server, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docverify", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := application.Close(shutdownCtx); err != nil {
		log.Error("failed to release resources", "error", err)
	}
	log.Info("docverify stopped")
}
