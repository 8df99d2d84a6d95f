package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/matt/roomlock/internal/roomlock"
)

// Config holds the roomlock CLI configuration.
type Config struct {
	// LockDir is the directory holding the room lock files. All workers
	// coordinating on the same rooms must use the same directory.
	LockDir string `toml:"lock_dir"`

	// Sweep holds the sweep daemon configuration
	Sweep SweepConfig `toml:"sweep"`
}

// SweepConfig holds the configuration for the sweep command.
type SweepConfig struct {
	// Interval between sweep passes (e.g., "30s", "5m"). Empty runs a
	// single pass and exits.
	Interval string `toml:"interval"`

	// MetricsAddr is the listen address for Prometheus metrics while the
	// sweep daemon runs (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `toml:"metrics_addr"`
}

// DefaultConfig returns the built-in default configuration.
func DefaultConfig() *Config {
	return &Config{
		LockDir: roomlock.DefaultLockDir(),
	}
}

// ParseInterval parses the sweep interval. Returns 0 for an empty value.
func (s *SweepConfig) ParseInterval() (time.Duration, error) {
	if s.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid sweep interval %q: %w", s.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("sweep interval must be positive, got %q", s.Interval)
	}
	return d, nil
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "roomlock", "config.toml"), nil
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath() string {
	return ".roomlock.toml"
}

// Load reads and merges configuration from global and project config
// files, then applies the ROOMLOCK_DIR environment override.
// Priority (highest to lowest): env > project config > global config > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load global config
	globalPath, err := GlobalConfigPath()
	if err == nil {
		if _, err := os.Stat(globalPath); err == nil {
			if err := loadConfigFile(globalPath, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load project config (overrides global)
	projectPath := ProjectConfigPath()
	if _, err := os.Stat(projectPath); err == nil {
		if err := loadConfigFile(projectPath, cfg); err != nil {
			return nil, err
		}
	}

	// Environment override (set directly or via a .env file)
	if dir := os.Getenv("ROOMLOCK_DIR"); dir != "" {
		cfg.LockDir = dir
	}

	return cfg, nil
}

// loadConfigFile reads a TOML config file and merges it into the given config.
func loadConfigFile(path string, cfg *Config) error {
	var fileCfg Config
	if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Merge non-zero values only, so a project file can override a
	// single field without resetting the rest
	if fileCfg.LockDir != "" {
		cfg.LockDir = fileCfg.LockDir
	}
	if fileCfg.Sweep.Interval != "" {
		cfg.Sweep.Interval = fileCfg.Sweep.Interval
	}
	if fileCfg.Sweep.MetricsAddr != "" {
		cfg.Sweep.MetricsAddr = fileCfg.Sweep.MetricsAddr
	}

	return nil
}
