package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilo/platform/internal/app"
	"github.com/vigilo/platform/internal/auth"
	"github.com/vigilo/platform/internal/infra"
	"github.com/vigilo/platform/internal/provider"
	"github.com/vigilo/platform/internal/risk"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Parse JWT expiry durations
	serviceExpiry, err := time.ParseDuration(cfg.AuthServiceExpiry)
	if err != nil {
		return fmt.Errorf("parse service JWT expiry: %w", err)
	}
	operatorExpiry, err := time.ParseDuration(cfg.AuthOperatorExpiry)
	if err != nil {
		return fmt.Errorf("parse operator JWT expiry: %w", err)
	}
	jwtMgr := auth.NewJWTManager(cfg.AuthSecret, serviceExpiry, operatorExpiry)

	// Geolocation: local MaxMind database when configured, ip-api fallback
	// otherwise.
	var locations risk.LocationResolver
	if cfg.GeoIPDatabasePath != "" {
		maxmind, err := provider.NewMaxMindResolver(cfg.GeoIPDatabasePath)
		if err != nil {
			return fmt.Errorf("open geoip database: %w", err)
		}
		defer maxmind.Close()
		locations = maxmind
		logger.Info("geolocation via maxmind", "path", cfg.GeoIPDatabasePath)
	} else {
		locations = provider.NewIPAPIResolver(logger)
		logger.Info("geolocation via ip-api")
	}

	threatClient := provider.NewGuardedReputationClient(
		provider.NewAbuseIPDBClient(cfg.AbuseIPDBKey, logger))

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	router := app.NewRouter(app.RouterDeps{
		Pool:         pool,
		JWTMgr:       jwtMgr,
		Locations:    locations,
		Threat:       threatClient,
		Producer:     producer,
		Logger:       logger,
		StepUpSecret: cfg.StepUpSecret,
		SweepWorkers: cfg.SweepWorkers,
		RateLimit:    cfg.RateLimit,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
