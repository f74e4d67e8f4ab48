package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()

	if err := cfg.validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.Environment != "local" {
		t.Errorf("Default environment does not match: got %s, want local", cfg.Environment)
	}
	if cfg.Parallel != 1 {
		t.Errorf("Default parallel does not match: got %d, want 1", cfg.Parallel)
	}
	if cfg.HealthTimeout != 120*time.Second {
		t.Errorf("Default health timeout does not match: got %s, want 2m0s", cfg.HealthTimeout)
	}
	if len(cfg.Build.Command) == 0 {
		t.Error("Default build command should not be empty")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr string
	}{
		{
			name:    "empty environment",
			mutate:  func(c *PipelineConfig) { c.Environment = "" },
			wantErr: "environment",
		},
		{
			name:    "zero parallel",
			mutate:  func(c *PipelineConfig) { c.Parallel = 0 },
			wantErr: "parallel",
		},
		{
			name:    "zero health timeout",
			mutate:  func(c *PipelineConfig) { c.HealthTimeout = 0 },
			wantErr: "health_timeout",
		},
		{
			name: "poll interval exceeds health timeout",
			mutate: func(c *PipelineConfig) {
				c.HealthTimeout = time.Second
				c.PollInterval = 2 * time.Second
			},
			wantErr: "poll_interval",
		},
		{
			name:    "zero cleanup timeout",
			mutate:  func(c *PipelineConfig) { c.CleanupTimeout = 0 },
			wantErr: "cleanup_timeout",
		},
		{
			name:    "negative min disk",
			mutate:  func(c *PipelineConfig) { c.MinDiskGB = -1 },
			wantErr: "min_disk_gb",
		},
		{
			name:    "empty build command",
			mutate:  func(c *PipelineConfig) { c.Build.Command = nil },
			wantErr: "build command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.validate()
			if err == nil {
				t.Fatalf("validate should reject %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error does not name the bad field: got %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesViperOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	workDir := t.TempDir()
	viper.Set("environment", "staging")
	viper.Set("work_dir", workDir)
	viper.Set("health_timeout", "90s")
	viper.Set("skip_e2e", true)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "staging" {
		t.Errorf("Environment does not match: got %s, want staging", cfg.Environment)
	}
	if cfg.HealthTimeout != 90*time.Second {
		t.Errorf("Duration hook did not apply: got %s, want 1m30s", cfg.HealthTimeout)
	}
	if !cfg.SkipE2E {
		t.Error("SkipE2E override did not apply")
	}
	// Defaults survive where no override is set.
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval default does not match: got %s, want 2s", cfg.PollInterval)
	}

	wantLogDir := filepath.Join(workDir, "staging", "logs")
	if cfg.LogDir != wantLogDir {
		t.Errorf("LogDir does not match: got %s, want %s", cfg.LogDir, wantLogDir)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("parallel", 0)

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject parallel=0")
	}
}

func TestEnvironmentPaths(t *testing.T) {
	cfg := Default()
	cfg.WorkDir = "/work"
	cfg.Environment = "staging"

	if got := cfg.EnvDir(); got != filepath.Join("/work", "staging") {
		t.Errorf("EnvDir does not match: got %s", got)
	}
	if got := cfg.FixturesDir(); got != filepath.Join("/work", "staging", "fixtures") {
		t.Errorf("FixturesDir does not match: got %s", got)
	}
	if got := cfg.HistoryPath(); got != filepath.Join("/work", "staging", "history.db") {
		t.Errorf("HistoryPath does not match: got %s", got)
	}
}

func TestDatabaseDSN(t *testing.T) {
	dc := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Username: "bank",
		Password: "secret",
		Database: "bankdb",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=bank password=secret dbname=bankdb sslmode=disable"
	if got := dc.DSN(); got != want {
		t.Errorf("DSN does not match: got %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("BANKCTL_TEST_DIR", "/data")

	if got := expandPath("$BANKCTL_TEST_DIR/work"); got != "/data/work" {
		t.Errorf("Env expansion does not match: got %s", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("Empty path should stay empty, got %s", got)
	}
	if got := expandPath("~/work"); strings.HasPrefix(got, "~") {
		t.Errorf("Home expansion did not apply: got %s", got)
	}
}
