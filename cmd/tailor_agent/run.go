package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Tailor a resume for one job posting, inline",
	Long: `Runs a single tailoring session end-to-end without a database: profile extraction -> snippet selection -> generation -> guardrail audit -> ATS scoring.

The experience graph is read from a JSON file ({"nodes": [...]}). Configuration can be loaded from a JSON file using --config; command-line arguments override config file values.`,
	RunE: runTailorCmd,
}

var (
	runConfigPath  string
	runJob         string
	runJobURL      string
	runExperience  string
	runOut         string
	runSections    []string
	runBullets     int
	runTone        string
	runStretch     int
	runCoverLetter bool
	runNoSummary   bool
	runAPIKey      string
	runVerbose     bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runJob, "job", "j", "", "Path to job posting text file (mutually exclusive with --job-url)")
	runCommand.Flags().StringVar(&runJobURL, "job-url", "", "URL to fetch job posting from (mutually exclusive with --job)")
	runCommand.Flags().StringVarP(&runExperience, "experience", "e", "", "Path to experience graph JSON file (required)")
	runCommand.Flags().StringVarP(&runOut, "out", "o", "", "Write output metadata JSON to this path (default stdout)")

	runCommand.Flags().StringSliceVar(&runSections, "sections", nil, "Resume sections to generate")
	runCommand.Flags().IntVar(&runBullets, "bullets", 0, "Bullets per section")
	runCommand.Flags().StringVar(&runTone, "tone", "", "Generation tone")
	runCommand.Flags().IntVar(&runStretch, "stretch", 1, "Stretch level 0-3 (how far claims may extrapolate)")
	runCommand.Flags().BoolVar(&runCoverLetter, "cover-letter", false, "Also generate a cover letter")
	runCommand.Flags().BoolVar(&runNoSummary, "no-summary", false, "Omit the professional summary")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	rootCmd.AddCommand(runCommand)
}

func runTailorCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadMergedConfig(cmd)
	if err != nil {
		return err
	}

	job, err := loadJobSnapshot(cfg)
	if err != nil {
		return err
	}
	snapshot, err := loadExperienceSnapshot(runExperience)
	if err != nil {
		return err
	}

	app, err := buildApp(ctx, cfg, store.NewMemory())
	if err != nil {
		return err
	}
	defer app.close()

	params := types.Parameters{
		Sections:           runSections,
		BulletsPerSection:  runBullets,
		Tone:               runTone,
		StretchLevel:       runStretch,
		IncludeSummary:     !runNoSummary,
		IncludeCoverLetter: runCoverLetter,
	}

	sess, err := app.lifecycle.Create(ctx, uuid.New(), job, snapshot, params)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := app.runner.Process(ctx, sess.ID, "inline"); err != nil {
		return fmt.Errorf("tailoring failed: %w", err)
	}

	done, err := app.store.GetSession(ctx, sess.ID)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		printer := observability.NewPrinter(os.Stdout)
		printer.PrintGuardrails(done.Output.Guardrails)
		printer.PrintATS(done.Output.ATS)
		printer.PrintTokenUsage(done.TokenUsage)
	}

	return writeOutput(done.Output, runOut)
}

// loadMergedConfig loads the optional config file and applies CLI overrides.
func loadMergedConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg config.Config
	if runConfigPath != "" {
		loaded, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	if cmd.Flags().Changed("job") {
		cfg.Job = runJob
	}
	if cmd.Flags().Changed("job-url") {
		cfg.JobURL = runJobURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Job == "" && cfg.JobURL == "" {
		return nil, fmt.Errorf("either --job or --job-url is required")
	}
	if runExperience == "" {
		return nil, fmt.Errorf("--experience is required")
	}
	return &cfg, nil
}

func loadJobSnapshot(cfg *config.Config) (types.JobSnapshot, error) {
	if cfg.JobURL != "" {
		return types.JobSnapshot{SourceURL: cfg.JobURL}, nil
	}
	data, err := os.ReadFile(cfg.Job)
	if err != nil {
		return types.JobSnapshot{}, fmt.Errorf("failed to read job file: %w", err)
	}
	return types.JobSnapshot{RawText: string(data)}, nil
}

func loadExperienceSnapshot(path string) (types.ExperienceSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ExperienceSnapshot{}, fmt.Errorf("failed to read experience file: %w", err)
	}
	var snapshot types.ExperienceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return types.ExperienceSnapshot{}, fmt.Errorf("failed to parse experience JSON: %w", err)
	}
	return snapshot, nil
}

func writeOutput(output *types.OutputMetadata, path string) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
