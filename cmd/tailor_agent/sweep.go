package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/session"
)

var sweepCommand = &cobra.Command{
	Use:   "sweep",
	Short: "Fail sessions whose worker stopped heartbeating",
	Long:  "One-shot sweep: marks processing sessions with a stale heartbeat as failed so they surface to their users instead of hanging forever. The worker pool runs this continuously; the command exists for operational cleanup.",
	RunE:  runSweepCmd,
}

var (
	sweepDatabaseURL string
	sweepAfterMins   int
)

func init() {
	sweepCommand.Flags().StringVar(&sweepDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	sweepCommand.Flags().IntVar(&sweepAfterMins, "after-mins", 0, "Heartbeat age in minutes before a session counts as stuck (default 10)")

	rootCmd.AddCommand(sweepCommand)
}

func runSweepCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg := config.Config{DatabaseURL: sweepDatabaseURL, StuckAfterMins: sweepAfterMins}
	cfg.ApplyEnv()

	pg, err := connectStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer pg.Close()

	logger, err := observability.NewLogger(false, false)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	lc := session.New(pg, logger)
	lc.SetStuckAfter(cfg.StuckAfter())

	swept, err := lc.SweepStuck(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	fmt.Printf("Swept %d stuck session(s)\n", swept)
	return nil
}
