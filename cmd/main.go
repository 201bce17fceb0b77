package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chainscope/internal/adapters/config"
	"chainscope/internal/adapters/errors/noop"
	"chainscope/internal/adapters/errors/sentry"
	"chainscope/internal/adapters/ratelimit"
	"chainscope/internal/api"
	"chainscope/internal/api/handler"
	"chainscope/internal/api/health"
	"chainscope/internal/metrics"
	"chainscope/internal/repository/memory"
	"chainscope/internal/services/ingest"
	chainsvc "chainscope/internal/services/option_chain"
	"chainscope/internal/workers"
	"chainscope/pkg/errors"
	"chainscope/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	command, args := splitCommand(os.Args[1:])
	switch command {
	case "serve":
		log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)
		err = runServe(cfg, errorTracker, log)
	case "analyze":
		err = runAnalyze(context.Background(), cfg, errorTracker, args, log)
	default:
		err = errors.NewValidationError("command", "must be serve or analyze", command)
	}

	if err != nil {
		log.Errorf("%s failed: %v", command, err)
		_ = errorTracker.Flush(context.Background())
		_ = logger.Sync()
		os.Exit(1)
	}
}

// splitCommand picks the subcommand; serve is the default
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "serve", args
	}
	return args[0], args[1:]
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// runServe wires the batch service behind the HTTP API and blocks until shutdown
func runServe(cfg *config.Config, errorTracker errors.Tracker, log *logger.Logger) error {
	repo := memory.NewBatchRepository(cfg.Analysis.MaxBatches)
	if err := metrics.RegisterWorkingSet(repo); err != nil {
		log.Warnf("Failed to register working set metrics: %v", err)
	}

	svc := chainsvc.NewService(repo, ingest.NewLoader(log), errorTracker, cfg.Analysis.RollingPeriod, log)

	srv := api.NewServer(
		api.ServerConfig{
			Port:        cfg.HTTP.Port,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Env:         cfg.App.Env,
		},
		health.New(log.With("component", "health"), svc, cfg.Analysis.MaxBatches, cfg.App.Name, cfg.App.Version),
		&handler.BatchHandler{
			Service:        svc,
			UploadLimiter:  ratelimit.NewKeyedLimiter("uploads", cfg.HTTP.UploadRPS, cfg.HTTP.UploadBurst, 10*time.Minute),
			MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
			Log:            log.With("component", "http"),
		},
		log,
	)

	log.Info("System initialized successfully")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := workers.NewScheduler(log)
	scheduler.RegisterWorker(workers.NewBatchJanitor(
		repo,
		cfg.Analysis.BatchTTL,
		workers.NewBaseWorker("batch_janitor", cfg.Analysis.JanitorInterval, log),
	))
	if err := scheduler.Start(ctx); err != nil {
		return errors.Wrap(err, "start workers")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Wait for shutdown signal
	return waitForShutdown(ctx, cancel, srv, scheduler, serverErr, errorTracker, log)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	srv *api.Server,
	scheduler *workers.Scheduler,
	serverErr <-chan error,
	errorTracker errors.Tracker,
	log *logger.Logger,
) error {
	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		log.Info("Shutting down...")
	case runErr = <-serverErr:
		log.Warnf("HTTP server exited: %v", runErr)
	}

	// Graceful shutdown
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if runErr == nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Failed to stop HTTP server: %v", err)
		}
	}

	if err := scheduler.Stop(shutdownTimeout); err != nil {
		log.Warnf("Failed to stop workers: %v", err)
	}

	// Flush error tracker
	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
	return runErr
}
