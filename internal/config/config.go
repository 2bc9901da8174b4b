// Package config provides configuration loading and validation for the CLI
// and the worker pool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults applied where neither the config file nor the environment
// provides a value.
const (
	DefaultWorkers      = 4
	DefaultPollInterval = 5 * time.Second
	DefaultStuckAfter   = 10 * time.Minute
	DefaultPendingAfter = 30 * time.Minute
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided
// via CLI flags.
type Config struct {
	// Inputs (single-session runs)
	Job    string `json:"job,omitempty"`     // Path to job posting text file
	JobURL string `json:"job_url,omitempty"` // URL to fetch job posting from
	UserID string `json:"user_id,omitempty"` // User UUID

	// Connections
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Worker pool
	Workers          int `json:"workers,omitempty"`            // Concurrent session processors
	PollIntervalSecs int `json:"poll_interval_secs,omitempty"` // Pending-queue poll cadence
	StuckAfterMins   int `json:"stuck_after_mins,omitempty"`   // Heartbeat age before a session counts as stuck
	PendingAfterMins int `json:"pending_after_mins,omitempty"` // Unclaimed age before a pending session expires

	// Model overrides; empty selects the built-in tier defaults
	ModelLite     string `json:"model_lite,omitempty"`
	ModelStandard string `json:"model_standard,omitempty"`
	ModelAdvanced string `json:"model_advanced,omitempty"`

	// Behavior
	JSONLogs bool `json:"json_logs,omitempty"` // Emit JSON-encoded logs
	Verbose  bool `json:"verbose,omitempty"`   // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv fills connection fields from the environment when the config
// file left them empty. File values win over the environment.
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Workers == 0 {
		if n, err := strconv.Atoi(os.Getenv("TAILOR_WORKERS")); err == nil && n > 0 {
			c.Workers = n
		}
	}
}

// Validate checks that the configuration has valid values.
// Required fields are not checked here; those are handled by CLI flag
// validation after merging.
func (c *Config) Validate() error {
	if c.Job != "" && c.JobURL != "" {
		return fmt.Errorf("config error: 'job' and 'job_url' are mutually exclusive")
	}

	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.PollIntervalSecs < 0 {
		return fmt.Errorf("config error: 'poll_interval_secs' must be non-negative")
	}
	if c.StuckAfterMins < 0 {
		return fmt.Errorf("config error: 'stuck_after_mins' must be non-negative")
	}
	if c.PendingAfterMins < 0 {
		return fmt.Errorf("config error: 'pending_after_mins' must be non-negative")
	}

	if c.Job != "" {
		if _, err := os.Stat(c.Job); os.IsNotExist(err) {
			return fmt.Errorf("config error: job file not found: %s", c.Job)
		}
	}

	return nil
}

// WorkerCount returns the configured pool size, defaulted when unset.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}

// PollInterval returns the pending-queue poll cadence, defaulted when unset.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalSecs > 0 {
		return time.Duration(c.PollIntervalSecs) * time.Second
	}
	return DefaultPollInterval
}

// StuckAfter returns the heartbeat age threshold, defaulted when unset.
func (c *Config) StuckAfter() time.Duration {
	if c.StuckAfterMins > 0 {
		return time.Duration(c.StuckAfterMins) * time.Minute
	}
	return DefaultStuckAfter
}

// PendingAfter returns the pending expiry threshold, defaulted when unset.
func (c *Config) PendingAfter() time.Duration {
	if c.PendingAfterMins > 0 {
		return time.Duration(c.PendingAfterMins) * time.Minute
	}
	return DefaultPendingAfter
}
