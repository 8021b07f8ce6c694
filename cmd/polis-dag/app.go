package main

import (
	"io"
	"log/slog"

	"github.com/polisai/polis-dag/pkg/config"
	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/logging"
	"github.com/polisai/polis-dag/pkg/pipelinefile"
	"github.com/polisai/polis-dag/pkg/runners"
)

// loadConfig reads the config file, or the defaults plus environment
// overrides when no file is given.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	return config.Load(flags.configPath)
}

// newLogger builds the process logger. The --log-level flag wins over the
// config file.
func newLogger(flags *globalFlags, cfg *config.Config, out io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := cfg.Logging.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	return logging.NewLeveledLogger(logging.Config{
		Level:  level,
		Pretty: flags.pretty || cfg.Logging.Pretty,
		Output: out,
	})
}

func engineDefaults(cfg config.EngineConfig) engine.NodeDefaults {
	return engine.NodeDefaults{
		Timeout:    cfg.Timeout(),
		Attempts:   cfg.DefaultRetries,
		RetryDelay: cfg.RetryDelay(),
	}
}

// newExecutor wires the built-in runners into a fresh registry.
func newExecutor(cfg *config.Config, logger *slog.Logger) *engine.Executor {
	reg := engine.NewRegistry()
	runners.RegisterBuiltins(reg, runners.Options{Logger: logger})
	return engine.NewExecutor(engine.ExecutorConfig{
		Registry:    reg,
		Logger:      logger,
		Defaults:    engineDefaults(cfg.Engine),
		Parallelism: cfg.Engine.Parallelism,
	})
}

// reloadCatalog replaces the catalog contents with the definitions in dir.
// An empty dir clears nothing and reports zero.
func reloadCatalog(catalog *engine.PipelineCatalog, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	loaded, err := pipelinefile.LoadDir(dir)
	if err != nil {
		return 0, err
	}
	defs := make([]domain.PipelineDefinition, 0, len(loaded))
	for _, def := range loaded {
		defs = append(defs, *def)
	}
	if err := catalog.UpdatePipelines(defs); err != nil {
		return 0, err
	}
	return len(defs), nil
}
