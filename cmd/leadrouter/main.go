package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velora-crm/leadrouter/internal/agentstats"
	"github.com/velora-crm/leadrouter/internal/api"
	"github.com/velora-crm/leadrouter/internal/config"
	"github.com/velora-crm/leadrouter/internal/crm"
	"github.com/velora-crm/leadrouter/internal/events"
	"github.com/velora-crm/leadrouter/internal/guard"
	"github.com/velora-crm/leadrouter/internal/router"
	"github.com/velora-crm/leadrouter/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// NATS (optional)
	var eventsClient events.Client
	if cfg.NATS.Enabled && cfg.NATS.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.NATS.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to nats, running without events", "error", err)
		} else {
			eventsClient = nc
			defer nc.Close()
			logger.Info("connected to nats")
		}
	}
	publisher := events.NewPublisher(eventsClient, logger)

	// Apply guard
	applyGuard, err := guard.NewRedisGuard(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.ClaimTTL())
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer applyGuard.Close()
	logger.Info("connected to redis")

	// CRM
	crmClient := crm.NewHTTPClient(cfg.CRM.URL, cfg.CRM.Token)

	// Profiles
	builder := agentstats.NewBuilder(db, cfg.Profiles.WindowDays, cfg.RecentWindow())
	profileSource := router.NewCRMProfileSource(crmClient, builder, cfg.Limits)

	// Routing service
	svc := router.New(db, applyGuard, crmClient, publisher, profileSource, cfg, cfg.SweepInterval(), logger)
	svc.Start(ctx)
	defer svc.Stop()
	logger.Info("routing service started",
		"mode", cfg.Decision.Mode, "sweep_interval", cfg.SweepInterval())

	// API server
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(svc, cfg.Server.AdminToken, logger),
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func logLevel() slog.Level {
	switch os.Getenv("LEADROUTER_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
