package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"helios-hq/aegis/pkg/cache"
	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/jobs"
	"helios-hq/aegis/pkg/ratelimit"
	"helios-hq/aegis/pkg/server"
	"helios-hq/aegis/pkg/store"
	"helios-hq/aegis/pkg/telemetry/logging"
	"helios-hq/aegis/pkg/telemetry/metrics"
	"helios-hq/aegis/pkg/tier"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watchConfig   bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the admission service",
	Long: `Start the admission service with the specified configuration.

The service connects to the configured store backend, starts the job
worker pool and lease reclaimer, and serves the operational endpoint
(metrics, health, job lookups).

Examples:
  # Start with default config
  aegis run

  # Start with custom config
  aegis run --config /etc/aegis/config.yaml

  # Override the ops listen address
  aegis run --listen 0.0.0.0:9090

  # Reload admission policies when the config file changes
  aegis run --watch

  # Validate config without starting
  aegis run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override ops listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVarP(&runFlags.watchConfig, "watch", "w", false, "reload admission policies on config change")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgFile, err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Ops.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(&cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Aegis v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Shared store
	st, err := newStore(&cfg.Store)
	if err != nil {
		return fmt.Errorf("initialize %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()
	fmt.Printf("✓ Store initialized (%s)\n", cfg.Store.Backend)

	// Telemetry
	provider := metrics.NewProvider(&cfg.Telemetry.Metrics)

	// Admission
	resolver := tier.NewResolver(&cfg.Admission)
	limiter := ratelimit.New(st, resolver, &cfg.Admission,
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(provider.AdmissionGroup()),
	)
	fmt.Printf("✓ Rate limiter ready (%d tiers, fail-%s)\n", len(cfg.Admission.Tiers), cfg.Admission.FailureMode)

	// Cache
	manager := cache.NewManager(st, &cfg.Cache,
		cache.WithLogger(logger),
		cache.WithMetrics(provider.CacheGroup()),
	)
	fmt.Println("✓ Cache manager ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Jobs
	dispatcher := jobs.NewDispatcher(st, &cfg.Jobs,
		jobs.WithLogger(logger),
		jobs.WithMetrics(provider.JobsGroup()),
	)
	registerHandlers(dispatcher, manager)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	defer dispatcher.Stop()

	reclaimer := jobs.NewReclaimer(dispatcher)
	if err := reclaimer.Start(ctx); err != nil {
		return fmt.Errorf("start reclaimer: %w", err)
	}
	defer reclaimer.Stop()
	fmt.Printf("✓ Job dispatcher started (%d workers)\n", cfg.Jobs.Workers)

	// Hot reload of admission policies
	if runFlags.watchConfig {
		watcher, err := config.NewWatcher(cfgFile, config.WithWatchLogger(logger))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) error {
				limiter.SetResolver(tier.NewResolver(&next.Admission))
				logger.Info("admission policies reloaded", "tiers", len(next.Admission.Tiers))
				return nil
			})
			if err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
		fmt.Println("✓ Config watcher active")
	}

	// Ops server
	srv := server.New(&cfg.Ops, st,
		server.WithLogger(logger),
		server.WithDispatcher(dispatcher),
		server.WithMetrics(provider),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Ops endpoint listening on %s\n", cfg.Ops.ListenAddress)
	fmt.Printf("✓ Health: http://%s/healthz\n", cfg.Ops.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics: http://%s/metrics\n", cfg.Ops.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", "error", err)
			return err
		}
		fmt.Println("✓ Service stopped")
		return nil
	}
}

// newStore builds the configured store backend.
func newStore(cfg *config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(store.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		return store.NewRedisStore(client, store.WithKeyPrefix(cfg.Redis.KeyPrefix)), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// registerHandlers binds the built-in job handlers. Hosts embedding the
// packages directly register their own; the standalone binary ships a
// deferred cache invalidation handler and a no-op for queue smoke tests.
func registerHandlers(d *jobs.Dispatcher, m *cache.Manager) {
	d.Register("cache.invalidate", func(ctx context.Context, payload []byte) error {
		var req struct {
			Prefix     string `json:"prefix"`
			ResourceID string `json:"resource_id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("decode invalidation payload: %w", err)
		}
		return m.Invalidate(ctx, req.Prefix, req.ResourceID)
	})

	d.Register("noop", func(ctx context.Context, payload []byte) error {
		return nil
	})
}
