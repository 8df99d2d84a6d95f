package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matt/roomlock/internal/roomlock"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LockDir != roomlock.DefaultLockDir() {
		t.Errorf("expected default lock dir '%s', got '%s'", roomlock.DefaultLockDir(), cfg.LockDir)
	}

	if cfg.Sweep.Interval != "" {
		t.Errorf("expected empty default sweep interval, got '%s'", cfg.Sweep.Interval)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
lock_dir = "/var/run/roomlock"

[sweep]
interval = "30s"
metrics_addr = ":9090"
`
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := DefaultConfig()
	if err := loadConfigFile(configPath, cfg); err != nil {
		t.Fatalf("loadConfigFile failed: %v", err)
	}

	if cfg.LockDir != "/var/run/roomlock" {
		t.Errorf("expected lock dir '/var/run/roomlock', got '%s'", cfg.LockDir)
	}
	if cfg.Sweep.Interval != "30s" {
		t.Errorf("expected sweep interval '30s', got '%s'", cfg.Sweep.Interval)
	}
	if cfg.Sweep.MetricsAddr != ":9090" {
		t.Errorf("expected metrics addr ':9090', got '%s'", cfg.Sweep.MetricsAddr)
	}
}

func TestLoadConfigFilePartialOverride(t *testing.T) {
	tmpDir := t.TempDir()

	// Only the sweep interval is set; other fields keep their defaults
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[sweep]\ninterval = \"1m\"\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := DefaultConfig()
	if err := loadConfigFile(configPath, cfg); err != nil {
		t.Fatalf("loadConfigFile failed: %v", err)
	}

	if cfg.LockDir != roomlock.DefaultLockDir() {
		t.Errorf("lock dir should keep its default, got '%s'", cfg.LockDir)
	}
	if cfg.Sweep.Interval != "1m" {
		t.Errorf("expected sweep interval '1m', got '%s'", cfg.Sweep.Interval)
	}
}

func TestLoadConfigFileInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("lock_dir = [broken"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := DefaultConfig()
	if err := loadConfigFile(configPath, cfg); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ROOMLOCK_DIR", "/custom/locks")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LockDir != "/custom/locks" {
		t.Errorf("expected env override '/custom/locks', got '%s'", cfg.LockDir)
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		interval string
		want     time.Duration
		wantErr  bool
	}{
		{"", 0, false},
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"bogus", 0, true},
		{"-10s", 0, true},
		{"0s", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			s := SweepConfig{Interval: tt.interval}
			got, err := s.ParseInterval()
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInterval(%q) should fail", tt.interval)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterval(%q) failed: %v", tt.interval, err)
			}
			if got != tt.want {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.interval, got, tt.want)
			}
		})
	}
}
