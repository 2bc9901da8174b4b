// Package main provides the entry point for the resume tailoring agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tailor_agent",
	Short: "LLM-powered resume tailoring pipeline",
	Long:  "tailor_agent turns a user's experience graph and a job posting into grounded, audited resume content: requirement extraction, snippet selection, staged generation with guardrail auditing, and a deterministic ATS score.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
