package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowline-dev/flowline/internal/api"
	"github.com/flowline-dev/flowline/internal/config"
	"github.com/flowline-dev/flowline/internal/engine"
	"github.com/flowline-dev/flowline/internal/events"
	"github.com/flowline-dev/flowline/internal/provider"
	"github.com/flowline-dev/flowline/internal/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workflow API server and execution engine",
	Long: `Start the HTTP API server together with the run scheduler.

The server exposes workflow CRUD, the trigger event ingress, run
queries and an SSE event stream. The scheduler executes queued runs
on a worker pool and wakes sleeping runs when they come due.

Examples:
  # Start with defaults (127.0.0.1:8080)
  flowline serve

  # Start on a custom host and port
  flowline serve --host 0.0.0.0 --port 3000

  # Disable CORS (behind a reverse proxy)
  flowline serve --no-cors`,
	RunE: runServe,
}

var (
	serveHost   string
	servePort   int
	serveNoCORS bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false,
		"Disable CORS headers")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, cfgPath, err := loadConfigWithPath()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := state.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := state.CloseStore(store); closeErr != nil {
			logger.Warn("failed to close store", "error", closeErr)
		}
	}()
	logger.Info("store initialized",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
	)

	bus := events.New(256)
	defer bus.Close()

	registry := provider.NewRegistryFromConfig(&cfg.Providers)
	gateway := provider.NewGateway(registry, bus, logger,
		provider.WithTelemetryDefaults(cfg.Telemetry.RecordInputs, cfg.Telemetry.RecordOutputs),
	)
	logger.Info("providers configured", "available", registry.List())

	// Pick up provider changes from the config file without a restart.
	// Engine and server settings still require one.
	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath,
			func(nc *config.Config) {
				registry.ApplyConfig(&nc.Providers)
				logger.Info("configuration reloaded", "providers", registry.List())
			},
			func(err error) {
				logger.Warn("config reload failed", "error", err)
			},
		)
		if err != nil {
			logger.Warn("config watcher unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	executor := engine.NewExecutor(store, gateway, bus, logger,
		engine.WithRetryPolicy(retryPolicyFromConfig(&cfg.Engine)),
	)
	scheduler := engine.NewScheduler(schedulerConfigFromConfig(&cfg.Engine), store, store, executor, bus, logger)

	serverCfg := serverConfigFromConfig(&cfg.Server)
	if serveHost != "" {
		serverCfg.Host = serveHost
	}
	if servePort != 0 {
		serverCfg.Port = servePort
	}
	if serveNoCORS {
		serverCfg.EnableCORS = false
	}

	handlers := api.NewHandlers(store, store, scheduler)
	server := api.New(serverCfg, handlers, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- scheduler.Start(ctx)
	}()

	if err := server.Start(); err != nil {
		return err
	}
	logger.Info("flowline ready", "addr", server.Addr())

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// The scheduler stops when ctx is cancelled; wait for workers to
	// finish their in-flight steps.
	if err := <-schedulerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped with error", "error", err)
	}
	return nil
}

func retryPolicyFromConfig(cfg *config.EngineConfig) *engine.RetryPolicy {
	policy := engine.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if d, err := time.ParseDuration(cfg.BaseDelay); err == nil && d > 0 {
		policy.BaseDelay = d
	}
	if d, err := time.ParseDuration(cfg.MaxDelay); err == nil && d > 0 {
		policy.MaxDelay = d
	}
	return policy
}

func schedulerConfigFromConfig(cfg *config.EngineConfig) engine.SchedulerConfig {
	sc := engine.DefaultSchedulerConfig()
	if cfg.Workers > 0 {
		sc.Workers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		sc.QueueSize = cfg.QueueSize
	}
	if d, err := time.ParseDuration(cfg.WakeInterval); err == nil && d > 0 {
		sc.WakeInterval = d
	}
	return sc
}

func serverConfigFromConfig(cfg *config.ServerConfig) api.Config {
	sc := api.DefaultConfig()
	if cfg.Host != "" {
		sc.Host = cfg.Host
	}
	if cfg.Port != 0 {
		sc.Port = cfg.Port
	}
	if len(cfg.CORSOrigins) > 0 {
		sc.CORSOrigins = cfg.CORSOrigins
	}
	if d, err := time.ParseDuration(cfg.ReadTimeout); err == nil && d > 0 {
		sc.ReadTimeout = d
	}
	if d, err := time.ParseDuration(cfg.WriteTimeout); err == nil && d > 0 {
		sc.WriteTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ShutdownTimeout); err == nil && d > 0 {
		sc.ShutdownTimeout = d
	}
	return sc
}
