package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/statedge/dugout/internal/alert"
	"github.com/statedge/dugout/internal/api"
	"github.com/statedge/dugout/internal/api/handler"
	"github.com/statedge/dugout/internal/cleanup"
	"github.com/statedge/dugout/internal/collection"
	"github.com/statedge/dugout/internal/config"
	"github.com/statedge/dugout/internal/database"
	"github.com/statedge/dugout/internal/freshness"
	"github.com/statedge/dugout/internal/health"
	"github.com/statedge/dugout/internal/quality"
	"github.com/statedge/dugout/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Dugout monitor",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database (the monitored MLB data store)
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Alert persistence and delivery
	store, err := alert.NewStore(cfg.AlertStorePath, logger)
	if err != nil {
		return fmt.Errorf("open alert store: %w", err)
	}
	defer func() { _ = store.Close() }()

	notifier := alert.NewNotifier(alert.NotifierConfig{
		SMTPHost:         cfg.SMTPHost,
		SMTPPort:         cfg.SMTPPort,
		SMTPUsername:     cfg.SMTPUsername,
		SMTPPassword:     cfg.SMTPPassword,
		FromEmail:        cfg.AlertFromEmail,
		ToEmails:         cfg.AlertToEmails,
		SlackWebhookURL:  cfg.SlackWebhookURL,
		CustomWebhookURL: cfg.CustomWebhookURL,
		RateLimits: map[alert.Severity]time.Duration{
			alert.SeverityCritical: cfg.RateLimitCritical,
			alert.SeverityWarning:  cfg.RateLimitWarning,
			alert.SeverityInfo:     cfg.RateLimitInfo,
		},
	}, logger)

	manager, err := alert.NewManager(store, notifier, logger, alert.ManagerConfig{
		MaintenanceMode:     cfg.MaintenanceMode,
		DuplicateWindow:     cfg.DuplicateWindow,
		StaleAfter:          cfg.StaleAlertThreshold,
		RetentionDays:       cfg.AlertRetentionDays,
		AutoRecoveryEnabled: cfg.AutoRecoveryEnabled,
		CPURecoveryPercent:  cfg.CPURecoveryPercent,
		MemRecoveryPercent:  cfg.MemRecoveryPercent,
		DiskRecoveryPercent: cfg.DiskRecoveryPercent,
		LatencyRecoverySecs: cfg.LatencyRecoverySecs,
	})
	if err != nil {
		return fmt.Errorf("create alert manager: %w", err)
	}

	// Monitoring components
	tracker := freshness.NewTracker(pool, logger, nil)
	validator := quality.NewValidator(pool, logger, nil)
	detector := collection.NewDetector(pool, logger, nil)

	engine := cleanup.NewEngine(pool, logger, nil, nil, cleanup.FileCleanupConfig{
		LogDir:           cfg.LogDir,
		LogRetentionDays: cfg.LogRetentionDays,
		MaxLogFiles:      cfg.MaxLogFiles,
		TempMaxAge:       cfg.TempFileMaxAge,
	})

	aggregator := health.NewAggregator(
		pool,
		tracker,
		manager,
		[]health.Probe{
			{Name: "mlb_stats_api", URL: cfg.MLBStatsAPIURL},
			{Name: "fangraphs", URL: cfg.FanGraphsURL},
		},
		health.DefaultThresholds(),
		cfg.HealthCacheTTL,
		cfg.ProbeTimeout,
		logger,
	)

	alertHandler := handler.NewAlertHandler(manager)
	cleanupHandler := handler.NewCleanupHandler(engine, logger)

	// Periodic jobs
	sched := scheduler.New(logger)
	jobs := []scheduler.Job{
		{Name: "health_refresh", Spec: cfg.HealthRefreshSpec, Run: func() {
			aggregator.Refresh(context.Background())
		}},
		{Name: "alert_maintenance", Spec: cfg.AlertMaintenanceSpec, Run: func() {
			manager.Maintenance(context.Background())
		}},
		{Name: "cleanup", Spec: cfg.CleanupSpec, Run: cleanupHandler.RunScheduled},
	}
	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return err
		}
	}
	sched.Start()

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Tracker:    tracker,
		Validator:  validator,
		Detector:   detector,
		Aggregator: aggregator,
		Alerts:     alertHandler,
		Cleanup:    cleanupHandler,
		DB:         pool,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", cfg.Port))
		if err := router.Listen(cfg.Port); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		sched.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	sched.Stop()

	<-shutdownCtx.Done()
	logger.Info("monitor stopped")

	return nil
}
