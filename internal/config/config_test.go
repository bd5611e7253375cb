package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := Default()

	if cfg.OutputDir != filepath.Join(home, "Downloads") {
		t.Errorf("expected output dir under home Downloads, got %s", cfg.OutputDir)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("expected default max_concurrent 5, got %d", cfg.MaxConcurrent)
	}
	if cfg.UnlimitedConcurrency {
		t.Error("expected concurrency ceiling enabled by default")
	}
	if !reflect.DeepEqual(cfg.CleanupOnResumeFormats, []string{"m4a"}) {
		t.Errorf("expected default cleanup formats [m4a], got %v", cfg.CleanupOnResumeFormats)
	}
	if cfg.VerifyInterval != time.Second {
		t.Errorf("expected verify interval 1s, got %v", cfg.VerifyInterval)
	}
	if cfg.VerifyTimeout != 5*time.Minute {
		t.Errorf("expected verify timeout 5m, got %v", cfg.VerifyTimeout)
	}
	if cfg.Ceiling() != 5 {
		t.Errorf("expected ceiling 5, got %d", cfg.Ceiling())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
output_dir: /srv/media
max_concurrent: 2
default_rate_limit: 500K
cleanup_on_resume_formats: [m4a, opus]
verify_interval: 2s
verify_timeout: 1m
kill_timeout: 3s
desktop_notifications: false
state_url: mem://
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.OutputDir != "/srv/media" {
		t.Errorf("expected output dir /srv/media, got %s", cfg.OutputDir)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("expected max_concurrent 2, got %d", cfg.MaxConcurrent)
	}
	if cfg.DefaultRateLimit != "500K" {
		t.Errorf("expected rate limit 500K, got %s", cfg.DefaultRateLimit)
	}
	if !reflect.DeepEqual(cfg.CleanupOnResumeFormats, []string{"m4a", "opus"}) {
		t.Errorf("unexpected cleanup formats %v", cfg.CleanupOnResumeFormats)
	}
	if cfg.VerifyInterval != 2*time.Second || cfg.VerifyTimeout != time.Minute {
		t.Errorf("unexpected verify schedule %v / %v", cfg.VerifyInterval, cfg.VerifyTimeout)
	}
	if cfg.KillTimeout != 3*time.Second {
		t.Errorf("expected kill timeout 3s, got %v", cfg.KillTimeout)
	}
	if cfg.DesktopNotifications {
		t.Error("expected desktop notifications disabled")
	}
	if cfg.StateURL != "mem://" {
		t.Errorf("expected state url mem://, got %s", cfg.StateURL)
	}
	// valores no presentes conservan el default
	if cfg.YtDlpPath != "yt-dlp" {
		t.Errorf("expected default ytdlp path, got %s", cfg.YtDlpPath)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("expected defaults, got max_concurrent %d", cfg.MaxConcurrent)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("verify_interval: soon\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOWNLODR_MAX_CONCURRENT", "8")
	t.Setenv("DOWNLODR_UNLIMITED", "true")
	t.Setenv("DOWNLODR_OUTPUT_DIR", "/tmp/dl")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.MaxConcurrent != 8 {
		t.Errorf("expected max_concurrent 8, got %d", cfg.MaxConcurrent)
	}
	if cfg.OutputDir != "/tmp/dl" {
		t.Errorf("expected output dir /tmp/dl, got %s", cfg.OutputDir)
	}
	if cfg.Ceiling() != 0 {
		t.Errorf("expected unlimited ceiling (0), got %d", cfg.Ceiling())
	}

	t.Setenv("DOWNLODR_MAX_CONCURRENT", "many")
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric DOWNLODR_MAX_CONCURRENT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero ceiling", func(c *Config) { c.MaxConcurrent = 0 }, true},
		{"zero ceiling but unlimited", func(c *Config) { c.MaxConcurrent = 0; c.UnlimitedConcurrency = true }, false},
		{"bad rate limit", func(c *Config) { c.DefaultRateLimit = "fast" }, true},
		{"good rate limit", func(c *Config) { c.DefaultRateLimit = "2M" }, false},
		{"negative interval", func(c *Config) { c.VerifyInterval = -time.Second }, true},
		{"timeout shorter than interval", func(c *Config) { c.VerifyTimeout = time.Millisecond }, true},
		{"zero kill timeout", func(c *Config) { c.KillTimeout = 0 }, true},
		{"no socket", func(c *Config) { c.SocketPath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
