// Package cmd defines and implements the CLI commands for the
// runway-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/api"
	"github.com/beborico/runway-crawler/internal/checkpoint"
	"github.com/beborico/runway-crawler/internal/clock/system"
	"github.com/beborico/runway-crawler/internal/config"
	"github.com/beborico/runway-crawler/internal/coordinator"
	"github.com/beborico/runway-crawler/internal/logging"
	"github.com/beborico/runway-crawler/internal/orchestrator"
	"github.com/beborico/runway-crawler/internal/pagedriver/chromedpdriver"
	"github.com/beborico/runway-crawler/internal/pagedriver/probe"
	"github.com/beborico/runway-crawler/internal/policy/ratelimit"
	"github.com/beborico/runway-crawler/internal/progress"
	"github.com/beborico/runway-crawler/internal/progress/sinks"
	"github.com/beborico/runway-crawler/internal/session"
	"github.com/beborico/runway-crawler/internal/state"
	"github.com/beborico/runway-crawler/internal/storage"
)

type crawlFlags struct {
	mode       string
	workers    int
	sortOrder  string
	authURL    string
	storage    string
	checkpoint string
	fresh      bool
	redisHost  string
	redisPort  int
	redisDB    int
	redisPass  string
	statusPort int
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts a crawl run",
		Long: `Starts one crawl run: authenticates a pool of headless browsers,
discovers pending seasons, and works through designers and looks in
the configured parallelism mode. Runs resume the most recent
checkpoint automatically; pass --fresh to start a new one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.mode, "mode", "", "parallelism mode: seasons, designers, or looks")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "number of parallel browser drivers")
	cmd.Flags().StringVar(&flags.sortOrder, "sort", "", "season order: ascending or descending")
	cmd.Flags().StringVar(&flags.authURL, "auth-url", "", "magic-link authentication URL")
	cmd.Flags().StringVar(&flags.storage, "storage", "", "storage backend: document or redis")
	cmd.Flags().StringVar(&flags.checkpoint, "checkpoint", "", "checkpoint to resume (file path or instance ID)")
	cmd.Flags().BoolVar(&flags.fresh, "fresh", false, "start a new run instead of resuming the latest checkpoint")
	cmd.Flags().StringVar(&flags.redisHost, "redis-host", "", "redis host")
	cmd.Flags().IntVar(&flags.redisPort, "redis-port", 0, "redis port")
	cmd.Flags().IntVar(&flags.redisDB, "redis-db", -1, "redis database number")
	cmd.Flags().StringVar(&flags.redisPass, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&flags.statusPort, "status-port", 0, "status/metrics HTTP port")

	return cmd
}

func runCrawlCommand(cmd *cobra.Command, flags crawlFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storageCfg := resolveCheckpoint(ctx, cfg.StorageConfig(), flags.fresh, logger)

	backend, err := storage.New(ctx, storageCfg, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("storage close failed", zap.Error(cerr))
		}
	}()

	clk := system.New()
	st := state.New(backend, logger.Named("state"),
		state.WithDescendingSeasons(cfg.Descending()),
		state.WithClock(clk.Now),
	)
	sessions := session.New(st, logger.Named("session"))

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("init metrics sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Crawl.RequestsPerSecond,
		DefaultBurst: cfg.Crawl.RequestBurst,
	})
	driverCfg := chromedpdriver.Config{
		BaseURL:      cfg.Crawl.BaseURL,
		UserAgent:    cfg.Browser.UserAgent,
		PageLoadWait: time.Duration(cfg.Browser.PageLoadWaitSec) * time.Second,
		ElementWait:  time.Duration(cfg.Browser.ElementWaitSec) * time.Second,
		AuthTimeout:  time.Duration(cfg.Browser.AuthTimeoutSec) * time.Second,
		OpTimeout:    time.Duration(cfg.Browser.OpTimeoutSec) * time.Second,
		Pacer:        limiter,
	}
	alloc := chromedpdriver.NewAllocator(driverCfg)
	defer alloc.Close()

	orch, err := orchestrator.New(
		orchestrator.Config{
			Mode:       coordinator.Mode(cfg.Crawl.Mode),
			MaxWorkers: cfg.Crawl.Workers,
			AuthURL:    cfg.Crawl.AuthURL,
			RunID:      time.Now().UTC().Format("20060102_150405"),
		},
		orchestrator.Deps{
			State:    st,
			Sessions: sessions,
			Factory:  chromedpdriver.NewFactory(alloc, driverCfg, logger.Named("driver")),
			Looks:    probe.New(probe.Config{UserAgent: cfg.Browser.UserAgent, Pacer: limiter}, logger.Named("probe")),
			Retry:    cfg.RetryPolicy(),
			Emitter:  hub,
			Logger:   logger.Named("orchestrator"),
		},
	)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Status.Port),
		Handler:           api.NewServer(orch, st, registry, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server started", zap.Int("port", cfg.Status.Port))
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			logger.Error("status server error", zap.Error(serr))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Error("status server shutdown error", zap.Error(serr))
		}
	}()

	report, err := orch.Run(ctx)
	logger.Info("crawl run finished",
		zap.Duration("duration", report.Duration),
		zap.Int("units_processed", report.Result.Processed),
		zap.Int("unit_errors", len(report.Result.Errors)),
		zap.String("checkpoint", st.Location()),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl run: %w", err)
	}
	return nil
}

// resolveCheckpoint fills in the resume point when none was given
// explicitly. Restarted runs continue the most recent checkpoint so
// finished work is never redone; --fresh opts out.
func resolveCheckpoint(ctx context.Context, storageCfg storage.Config, fresh bool, logger *zap.Logger) storage.Config {
	if storageCfg.Checkpoint != "" || fresh {
		return storageCfg
	}
	storageCfg.Checkpoint = checkpoint.NewLocator(storageCfg, logger).Latest(ctx)
	if storageCfg.Checkpoint == "" {
		logger.Info("no checkpoint found, starting fresh")
	} else {
		logger.Info("resuming checkpoint", zap.String("checkpoint", storageCfg.Checkpoint))
	}
	return storageCfg
}

// loadConfig loads configuration and layers explicit flag overrides
// on top.
func loadConfig(flags crawlFlags) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	if flags.mode != "" {
		cfg.Crawl.Mode = flags.mode
	}
	if flags.workers > 0 {
		cfg.Crawl.Workers = flags.workers
	}
	if flags.sortOrder != "" {
		cfg.Crawl.SortOrder = flags.sortOrder
	}
	if flags.authURL != "" {
		cfg.Crawl.AuthURL = flags.authURL
	}
	if flags.storage != "" {
		cfg.Storage.Mode = flags.storage
	}
	if flags.checkpoint != "" {
		cfg.Crawl.Checkpoint = flags.checkpoint
	}
	if flags.redisHost != "" {
		cfg.Redis.Host = flags.redisHost
	}
	if flags.redisPort > 0 {
		cfg.Redis.Port = flags.redisPort
	}
	if flags.redisDB >= 0 {
		cfg.Redis.DB = flags.redisDB
	}
	if flags.redisPass != "" {
		cfg.Redis.Password = flags.redisPass
	}
	if flags.statusPort > 0 {
		cfg.Status.Port = flags.statusPort
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.Crawl.AuthURL == "" {
		return config.Config{}, fmt.Errorf("crawl.auth_url must be set (flag --auth-url or RUNWAY_CRAWL_AUTH_URL)")
	}
	return cfg, nil
}
