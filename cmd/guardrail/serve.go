package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"originware/guardrail/pkg/audit"
	"originware/guardrail/pkg/audit/retention"
	"originware/guardrail/pkg/cli"
	"originware/guardrail/pkg/config"
	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/repository"
	"originware/guardrail/pkg/server"
	"originware/guardrail/pkg/telemetry/logging"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Guardrail evaluation service",
	Long: `Start the Guardrail HTTP service with the specified configuration.

The service loads rule sets from the configured source, evaluates
incoming datasets against them, and records each evaluation in the
audit trail.

Examples:
  # Start with default config
  guardrail serve

  # Start with custom config
  guardrail serve --config /etc/guardrail/config.yaml

  # Override listen address
  guardrail serve --listen 0.0.0.0:8080

  # Validate config without starting the service
  guardrail serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Logging.Level = serveFlags.logLevel
	}
	if verbose && serveFlags.logLevel == "" {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		RedactPII: cfg.Logging.RedactPII,
	})
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	slog.SetDefault(logger)

	if serveFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Guardrail v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Metrics registry shared by every component
	var registry *prometheus.Registry
	var serverMetrics *server.Metrics
	var engineMetrics *engine.Metrics
	var repoMetrics *repository.Metrics
	var auditMetrics *audit.Metrics
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		serverMetrics = server.NewMetrics(cfg.Metrics.Namespace, registry)
		engineMetrics = engine.NewMetrics(cfg.Metrics.Namespace, registry)
		repoMetrics = repository.NewMetrics(cfg.Metrics.Namespace, registry)
		auditMetrics = audit.NewMetrics(cfg.Metrics.Namespace, registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rule repository
	slog.Info("initializing rule repository", "backend", cfg.Repository.Backend)
	repo, cleanup, err := buildRepository(ctx, cfg, logger, repoMetrics)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to initialize rule repository: %w", err))
	}
	if cleanup != nil {
		defer cleanup()
	}
	fmt.Printf("✓ Rule repository ready (%s)\n", cfg.Repository.Backend)

	// Audit trail
	var recorder *audit.Recorder
	var pruner *retention.Pruner
	if cfg.Audit.Enabled {
		slog.Info("initializing audit trail", "backend", cfg.Audit.Backend)

		store, err := buildAuditStore(cfg, logger)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer store.Close()

		recorder = audit.NewRecorder(store, &audit.RecorderConfig{
			Enabled:      true,
			Buffer:       cfg.Audit.Recorder.Buffer,
			WriteTimeout: cfg.Audit.Recorder.WriteTimeout,
		}, logger.With("component", "audit"), auditMetrics)
		defer recorder.Close()

		if cfg.Audit.Retention.Schedule != "" {
			pruner = retention.NewPruner(store, &retention.Config{
				RetentionDays:       cfg.Audit.Retention.Days,
				Schedule:            cfg.Audit.Retention.Schedule,
				MaxRecords:          cfg.Audit.Retention.MaxRecords,
				ArchiveBeforeDelete: cfg.Audit.Retention.ArchiveBeforeDelete,
				ArchivePath:         cfg.Audit.Retention.ArchivePath,
			}, logger.With("component", "audit.retention"))
			if err := pruner.Start(ctx); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
				if next := pruner.NextPruning(); next != nil {
					slog.Debug("audit retention scheduler started", "next_pruning", next)
				}
			}
		}

		fmt.Printf("✓ Audit trail initialized (%s)\n", cfg.Audit.Backend)
	}

	// Evaluation engine
	eng, err := engine.New(&engine.Config{
		Logger:  logger.With("component", "engine"),
		Metrics: engineMetrics,
	})
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to initialize engine: %w", err))
	}
	fmt.Println("✓ Evaluation engine ready")

	// HTTP service
	slog.Info("creating HTTP server")
	srv, err := server.New(cfg.Server, server.Options{
		Evaluator:   eng,
		Repository:  repo,
		Recorder:    recorder,
		Logger:      logger.With("component", "server"),
		Metrics:     serverMetrics,
		Registry:    registry,
		MetricsPath: cfg.Metrics.Path,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", cfg.Server.ListenAddress)
		errChan <- srv.Start(ctx)
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for shutdown signal or server error
	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		return nil
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("serve", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}

// buildRepository constructs the configured rule source and wraps it in
// the read cache when enabled. The returned cleanup releases backend
// resources and may be nil.
func buildRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *repository.Metrics) (repository.Repository, func() error, error) {
	repoLogger := logger.With("component", "repository")

	var repo repository.Repository
	var cleanup func() error

	switch cfg.Repository.Backend {
	case "memory":
		repo = repository.NewMemory()

	case "sql":
		db, err := repository.Open(cfg.Repository.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := repository.NewSQLStore(db, repoLogger)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		repo = store
		cleanup = store.Close

	case "file":
		store, err := repository.NewFileStore(cfg.Repository.File.Path, repoLogger, metrics)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Repository.File.Watch {
			go func() {
				if err := store.Watch(ctx, cfg.Repository.File.DebounceInterval); err != nil {
					repoLogger.Error("pack watcher stopped", "error", err)
				}
			}()
		}
		repo = store

	case "git":
		store, err := repository.NewGitStore(ctx, repository.GitConfig{
			URL:          cfg.Repository.Git.Repository,
			Branch:       cfg.Repository.Git.Branch,
			Path:         cfg.Repository.Git.Path,
			LocalPath:    cfg.Repository.Git.LocalPath,
			Token:        cfg.Repository.Git.Token,
			PollInterval: cfg.Repository.Git.PollInterval,
			FetchTimeout: cfg.Repository.Git.FetchTimeout,
		}, repoLogger, metrics)
		if err != nil {
			return nil, nil, err
		}
		go func() {
			if err := store.Poll(ctx); err != nil {
				repoLogger.Error("git pack polling stopped", "error", err)
			}
		}()
		repo = store

	default:
		return nil, nil, fmt.Errorf("unsupported repository backend: %s (supported: memory, sql, file, git)", cfg.Repository.Backend)
	}

	if cfg.Repository.Cache.Enabled {
		repo = repository.NewCaching(repo, repository.CacheConfig{
			TTL: cfg.Repository.Cache.TTL,
		}, metrics)
	}
	return repo, cleanup, nil
}

// buildAuditStore constructs the configured audit store.
func buildAuditStore(cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case "memory":
		return audit.NewMemoryStore(), nil
	case "sqlite":
		store, err := audit.NewSQLiteStore(&audit.SQLiteConfig{
			Path:        cfg.Audit.SQLite.Path,
			BusyTimeout: cfg.Audit.SQLite.BusyTimeout,
		}, logger.With("component", "audit"))
		if err != nil {
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s (supported: memory, sqlite)", cfg.Audit.Backend)
	}
}
