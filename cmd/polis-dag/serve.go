package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/polisai/polis-dag/internal/governance"
	"github.com/polisai/polis-dag/pkg/config"
	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/logging"
	"github.com/polisai/polis-dag/pkg/server"
	"github.com/polisai/polis-dag/pkg/storage"
	"github.com/polisai/polis-dag/pkg/telemetry"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline HTTP service",
		Long: `Starts the HTTP service. With --config the file is watched: log level,
engine defaults, rate limits and the named pipeline directory are reloaded
on change. SIGHUP reloads the named pipelines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}
}

// serviceState is what a configuration update may touch.
type serviceState struct {
	logger   *slog.Logger
	level    *slog.LevelVar
	executor *engine.Executor
	catalog  *engine.PipelineCatalog
	limiter  *governance.RateLimiter
	metrics  *server.Metrics
	dir      string
}

func runServe(ctx context.Context, flags *globalFlags) error {
	var (
		cfg      *config.Config
		provider *config.FileConfigProvider
		err      error
	)
	bootLogger := logging.NewLogger(logging.Config{Level: defaultLogLevel, Pretty: flags.pretty})
	if flags.configPath != "" {
		provider, err = config.NewFileConfigProvider(flags.configPath, bootLogger)
		if err != nil {
			return fmt.Errorf("failed to initialize config provider: %w", err)
		}
		defer func() {
			if err := provider.Close(); err != nil {
				bootLogger.Error("failed to close config provider", "error", err)
			}
		}()
		cfg = provider.Current()
	} else {
		if cfg, err = config.Load(""); err != nil {
			return err
		}
	}

	logger, level := newLogger(flags, cfg, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("starting polis-dag", "address", cfg.Server.Address, "store", cfg.Store.Driver)

	shutdownTelemetry, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	state := &serviceState{
		logger:   logger,
		level:    level,
		executor: newExecutor(cfg, logger),
		catalog:  engine.NewPipelineCatalog(logger),
		limiter:  governance.NewRateLimiter(rateLimiterConfig(cfg.Server.RateLimit)),
		metrics:  server.NewMetrics(),
		dir:      cfg.Pipelines.Dir,
	}
	state.reloadPipelines()

	srv, err := server.New(server.Options{
		Executor:     state.executor,
		Catalog:      state.catalog,
		Store:        store,
		Logger:       logger,
		Metrics:      state.metrics,
		RateLimiter:  state.limiter,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return err
	}

	if provider != nil {
		go state.watchConfig(ctx, provider.Subscribe())
	}
	go state.watchSIGHUP(ctx)

	if err := srv.ListenAndServe(ctx, cfg.Server); err != nil {
		return err
	}
	logger.Info("polis-dag stopped")
	return nil
}

func rateLimiterConfig(cfg config.RateLimitConfig) governance.RateLimiterConfig {
	return governance.RateLimiterConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		BurstSize:         cfg.Burst,
		MaxClients:        cfg.MaxClients,
	}
}

// watchConfig applies configuration snapshots until ctx is done. Parallelism,
// the listen address and the store are fixed at startup.
func (s *serviceState) watchConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.apply(cfg)
		}
	}
}

func (s *serviceState) apply(cfg *config.Config) {
	if lvl, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		s.level.Set(lvl)
	}
	s.executor.SetDefaults(engineDefaults(cfg.Engine))
	s.limiter.Configure(rateLimiterConfig(cfg.Server.RateLimit))
	s.dir = cfg.Pipelines.Dir

	if s.reloadPipelines() {
		s.metrics.RecordConfigReload("success")
	} else {
		s.metrics.RecordConfigReload("failure")
	}
	s.logger.Info("configuration applied",
		"log_level", cfg.Logging.Level,
		"default_timeout_ms", cfg.Engine.DefaultTimeoutMS,
		"default_retries", cfg.Engine.DefaultRetries,
	)
}

// reloadPipelines refreshes the catalog; on failure the previous pipelines
// stay in place.
func (s *serviceState) reloadPipelines() bool {
	n, err := reloadCatalog(s.catalog, s.dir)
	if err != nil {
		s.logger.Error("failed to load pipelines; keeping previous catalog", "dir", s.dir, "error", err)
		return false
	}
	if s.dir != "" {
		s.metrics.SetPipelinesLoaded(n)
		s.logger.Info("pipelines loaded", "dir", s.dir, "count", n, "generation", s.catalog.Generation())
	}
	return true
}

func (s *serviceState) watchSIGHUP(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			s.logger.Info("received SIGHUP, reloading pipelines")
			s.reloadPipelines()
		}
	}
}
