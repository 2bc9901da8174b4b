package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"job_url": "https://example.com/posting",
		"database_url": "postgres://localhost/tailor",
		"workers": 8,
		"poll_interval_secs": 2,
		"model_standard": "gemini-2.5-flash"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/posting", cfg.JobURL)
	assert.Equal(t, "postgres://localhost/tailor", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, "gemini-2.5-flash", cfg.ModelStandard)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("TAILOR_WORKERS", "6")

	cfg := &Config{}
	cfg.ApplyEnv()

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, 6, cfg.Workers)
}

func TestApplyEnv_FileWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := &Config{APIKey: "file-key", Workers: 2}
	cfg.ApplyEnv()

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 2, cfg.Workers)
}

func TestValidate(t *testing.T) {
	jobFile := writeConfig(t, "posting text")

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty is valid", Config{}, false},
		{"job file exists", Config{Job: jobFile}, false},
		{"job and url exclusive", Config{Job: jobFile, JobURL: "https://x"}, true},
		{"job file missing", Config{Job: "/nonexistent/job.txt"}, true},
		{"negative workers", Config{Workers: -1}, true},
		{"negative poll", Config{PollIntervalSecs: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	assert.Equal(t, DefaultWorkers, cfg.WorkerCount())
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval())
	assert.Equal(t, DefaultStuckAfter, cfg.StuckAfter())
	assert.Equal(t, DefaultPendingAfter, cfg.PendingAfter())
}
