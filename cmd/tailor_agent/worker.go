package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/worker"
)

var workerCommand = &cobra.Command{
	Use:   "worker",
	Short: "Run the session-processing worker pool",
	Long:  "Polls the database for pending tailoring sessions and processes them concurrently. Sessions whose worker stops heartbeating are swept back to failed so their users are not left waiting.",
	RunE:  runWorkerCmd,
}

var (
	workerConfigPath  string
	workerCount       int
	workerPollSecs    int
	workerDatabaseURL string
	workerAPIKey      string
	workerJSONLogs    bool
	workerVerbose     bool
)

func init() {
	workerCommand.Flags().StringVar(&workerConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	workerCommand.Flags().IntVarP(&workerCount, "workers", "w", 0, "Concurrent session processors (defaults to TAILOR_WORKERS env var, then 4)")
	workerCommand.Flags().IntVar(&workerPollSecs, "poll-secs", 0, "Pending-queue poll cadence in seconds")
	workerCommand.Flags().StringVar(&workerDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	workerCommand.Flags().StringVar(&workerAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	workerCommand.Flags().BoolVar(&workerJSONLogs, "json-logs", false, "Emit JSON-encoded logs")
	workerCommand.Flags().BoolVarP(&workerVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(workerCommand)
}

func runWorkerCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg config.Config
	if workerConfigPath != "" {
		loaded, err := config.LoadConfig(workerConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workerCount
	}
	if cmd.Flags().Changed("poll-secs") {
		cfg.PollIntervalSecs = workerPollSecs
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = workerDatabaseURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = workerAPIKey
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.JSONLogs = workerJSONLogs
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = workerVerbose
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	pg, err := connectStore(ctx, &cfg)
	if err != nil {
		return err
	}

	app, err := buildApp(ctx, &cfg, pg)
	if err != nil {
		pg.Close()
		return err
	}
	defer app.close()

	pool := worker.NewPool(app.runner, app.lifecycle, app.store, app.logger, worker.Options{
		Workers:      cfg.WorkerCount(),
		PollInterval: cfg.PollInterval(),
	})

	app.logger.Info("worker pool starting",
		zap.Int("workers", cfg.WorkerCount()),
		zap.Duration("poll_interval", cfg.PollInterval()))

	if err := pool.Run(ctx); err != nil {
		return fmt.Errorf("worker pool stopped: %w", err)
	}
	app.logger.Info("worker pool stopped")
	return nil
}
