// The sweeper runs the periodic batch reevaluation of active sessions. It is
// the scheduled counterpart of the on-demand /sessions/sweep endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vigilo/platform/internal/infra"
	"github.com/vigilo/platform/internal/monitor"
	"github.com/vigilo/platform/internal/provider"
	"github.com/vigilo/platform/internal/repository"
	"github.com/vigilo/platform/internal/risk"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("sweeper failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("sweeper connected to postgres")

	interval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("parse sweep interval: %w", err)
	}

	var locations risk.LocationResolver
	if cfg.GeoIPDatabasePath != "" {
		maxmind, err := provider.NewMaxMindResolver(cfg.GeoIPDatabasePath)
		if err != nil {
			return fmt.Errorf("open geoip database: %w", err)
		}
		defer maxmind.Close()
		locations = maxmind
	} else {
		locations = provider.NewIPAPIResolver(logger)
	}

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	sessionRepo := repository.NewSessionRepository(pool)
	deviceRepo := repository.NewDeviceRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	scorer := risk.NewScorer(deviceRepo, locations, auditRepo, logger)
	sessionMonitor := monitor.NewMonitor(sessionRepo, auditRepo, scorer, auditRepo, producer, logger)

	logger.Info("sweeper starting",
		"interval", interval,
		"risk_threshold", cfg.SweepThreshold,
		"workers", cfg.SweepWorkers,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper shutting down")
			return nil
		case <-ticker.C:
			if _, err := sessionMonitor.Sweep(ctx, cfg.SweepThreshold, cfg.SweepWorkers); err != nil {
				logger.Error("sweep error", "error", err)
			}
		}
	}
}
