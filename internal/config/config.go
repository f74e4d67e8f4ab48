package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// PipelineConfig is the effective configuration of one pipeline run. It is
// resolved once by Load and passed explicitly to every component; nothing
// reads configuration globals after that.
type PipelineConfig struct {
	Environment string `mapstructure:"environment"`
	WorkDir     string `mapstructure:"work_dir"`
	StackFile   string `mapstructure:"stack_file"`
	LogLevel    string `mapstructure:"log_level"`
	LogDir      string `mapstructure:"log_dir"`
	Quiet       bool   `mapstructure:"quiet"`

	SkipUnit        bool `mapstructure:"skip_unit"`
	SkipIntegration bool `mapstructure:"skip_integration"`
	SkipE2E         bool `mapstructure:"skip_e2e"`
	SkipAPITests    bool `mapstructure:"skip_api_tests"`
	ForceRebuild    bool `mapstructure:"force_rebuild"`
	Monitoring      bool `mapstructure:"monitoring"`
	Directory       bool `mapstructure:"directory"`
	Parallel        int  `mapstructure:"parallel"`

	HealthTimeout    time.Duration `mapstructure:"health_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	CleanupTimeout   time.Duration `mapstructure:"cleanup_timeout"`
	ValidateTimeout  time.Duration `mapstructure:"validate_timeout"`

	MinDiskGB int `mapstructure:"min_disk_gb"`

	Build    BuildConfig     `mapstructure:"build"`
	Tests    TestsConfig     `mapstructure:"tests"`
	Database DatabaseConfig  `mapstructure:"database"`
	Rotate   LogRotateConfig `mapstructure:"log_rotate"`
}

// BuildConfig names the external build command for application images. Clean
// runs before Command when a force rebuild is requested.
type BuildConfig struct {
	Command []string `mapstructure:"command"`
	Clean   []string `mapstructure:"clean"`
	Dir     string   `mapstructure:"dir"`
}

// TestsConfig names the external commands run for each test suite.
type TestsConfig struct {
	Unit        []string `mapstructure:"unit"`
	Integration []string `mapstructure:"integration"`
	E2E         []string `mapstructure:"e2e"`
	API         []string `mapstructure:"api"`
}

// DatabaseConfig locates the banking database for the validation gate's
// direct connectivity check.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LogRotateConfig defines rotation settings for the persistent log file.
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a PipelineConfig with every default applied.
func Default() PipelineConfig {
	return PipelineConfig{
		Environment:      "local",
		WorkDir:          ".bankctl",
		LogLevel:         "info",
		Monitoring:       true,
		Directory:        false,
		Parallel:         1,
		HealthTimeout:    120 * time.Second,
		PollInterval:     2 * time.Second,
		ProgressInterval: 30 * time.Second,
		CleanupTimeout:   60 * time.Second,
		ValidateTimeout:  5 * time.Second,
		MinDiskGB:        5,
		Build: BuildConfig{
			Command: []string{"./gradlew", "assemble", "jibDockerBuild"},
			Clean:   []string{"./gradlew", "clean"},
		},
		Tests: TestsConfig{
			Unit:        []string{"./gradlew", "test"},
			Integration: []string{"./gradlew", "integrationTest"},
			E2E:         []string{"./gradlew", "e2eTest"},
			API:         []string{"./gradlew", "apiTest"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Username: "bank",
			Password: "bank",
			Database: "bankdb",
			SSLMode:  "disable",
		},
		Rotate: LogRotateConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// Load resolves the effective configuration from defaults, the optional
// config file, environment variables (BANKCTL_*), and bound command-line
// flags, in ascending precedence. The result is never mutated afterwards.
func Load() (*PipelineConfig, error) {
	cfg := Default()

	if err := viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.WorkDir = expandPath(cfg.WorkDir)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.WorkDir, cfg.Environment, "logs")
	} else {
		cfg.LogDir = expandPath(cfg.LogDir)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// EnvDir returns the per-environment working directory.
func (c *PipelineConfig) EnvDir() string {
	return filepath.Join(c.WorkDir, c.Environment)
}

// FixturesDir returns where seed data is staged for container startup.
func (c *PipelineConfig) FixturesDir() string {
	return filepath.Join(c.EnvDir(), "fixtures")
}

// HistoryPath returns the run-history database location.
func (c *PipelineConfig) HistoryPath() string {
	return filepath.Join(c.EnvDir(), "history.db")
}

// DSN returns the postgres connection string for the banking database.
func (dc *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, dc.SSLMode)
}

func (c *PipelineConfig) validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.HealthTimeout <= 0 {
		return fmt.Errorf("health_timeout must be positive, got %s", c.HealthTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.PollInterval > c.HealthTimeout {
		return fmt.Errorf("poll_interval %s exceeds health_timeout %s", c.PollInterval, c.HealthTimeout)
	}
	if c.CleanupTimeout <= 0 {
		return fmt.Errorf("cleanup_timeout must be positive, got %s", c.CleanupTimeout)
	}
	if c.MinDiskGB < 0 {
		return fmt.Errorf("min_disk_gb must not be negative, got %d", c.MinDiskGB)
	}
	if len(c.Build.Command) == 0 {
		return fmt.Errorf("build command is required")
	}
	return nil
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
