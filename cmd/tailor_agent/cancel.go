package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/session"
)

var cancelCommand = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Request cancellation of a tailoring session",
	Long:  "Cancels a pending session immediately; a processing session stops at its next stage boundary. Terminal sessions are left untouched.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancelCmd,
}

var cancelDatabaseURL string

func init() {
	cancelCommand.Flags().StringVar(&cancelDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(cancelCommand)
}

func runCancelCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	cfg := config.Config{DatabaseURL: cancelDatabaseURL}
	cfg.ApplyEnv()

	pg, err := connectStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := session.New(pg, nil).Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	fmt.Printf("Cancellation requested for session %s\n", id)
	return nil
}
