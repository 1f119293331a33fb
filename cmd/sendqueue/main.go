package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sendqueue/internal/config"
	"sendqueue/internal/connectivity"
	"sendqueue/internal/constants"
	"sendqueue/internal/database"
	"sendqueue/internal/events"
	"sendqueue/internal/models"
	"sendqueue/internal/retry"
	"sendqueue/internal/service"
	"sendqueue/internal/tracing"
	"sendqueue/pkg/chatapi"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes chat identifiers)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("SendQueue %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting SendQueue")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyLogLevel(logger, cfg, *verbose)

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize the queue store with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	bus := events.NewBus(logger)

	deliverer := chatapi.NewClient(cfg.Backend.APIBaseURL, chatapi.ClientOptions{
		AuthToken:      os.Getenv("SENDQUEUE_BACKEND_TOKEN"),
		TimeoutSec:     cfg.Backend.TimeoutSec,
		SendRetryCount: cfg.Backend.SendRetryCount,
	}, logger)

	probe, err := connectivity.NewHTTPProbe(cfg.Backend.APIBaseURL, cfg.Backend.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create connectivity probe: %w", err)
	}

	monitor := connectivity.NewMonitor(
		probe,
		bus,
		logger,
		time.Duration(cfg.Connectivity.CheckIntervalSec)*time.Second,
		time.Duration(cfg.Connectivity.ProbeTimeoutSec)*time.Second,
	)

	queueManager := service.NewQueueManager(db, bus, logger, cfg.Queue)
	coordinator := service.NewSyncCoordinator(queueManager, deliverer, bus, monitor, logger, cfg.Queue)

	ctxWithVerbose := context.WithValue(ctx, service.VerboseContextKey, *verbose)

	monitor.SetSyncTrigger(func(triggerCtx context.Context) {
		if _, err := coordinator.SyncQueue(triggerCtx); err != nil {
			logger.WithError(err).Warn("Connectivity-triggered sync failed")
		}
	})

	if err := monitor.Start(ctxWithVerbose); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}
	defer monitor.Stop()

	scheduler := service.NewSyncScheduler(coordinator, cfg.Queue.SyncIntervalMin, logger)
	go scheduler.Start(ctxWithVerbose)
	defer scheduler.Stop()

	// Watch the config file so log level changes apply without a restart.
	watcher := config.NewConfigWatcher(*configPath, logger)
	watcher.OnConfigChange(func(updated *models.Config) {
		applyLogLevel(logger, updated, *verbose)
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.Warnf("Config watcher failed: %v", err)
		}
	}()

	server := NewServer(cfg.Server, queueManager, coordinator, bus, monitor, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func applyLogLevel(logger *logrus.Logger, cfg *models.Config, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - chat identifiers will be logged")
		return
	}

	if cfg.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	logger.SetLevel(level)
}
