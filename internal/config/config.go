package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/elsanchez/downlodr/internal/platform"
	"github.com/elsanchez/downlodr/internal/utils"
	"github.com/elsanchez/downlodr/pkg/client"
	"gopkg.in/yaml.v3"
)

// Config es la configuración del daemon
type Config struct {
	DataDir                string
	OutputDir              string
	SocketPath             string
	YtDlpPath              string
	MaxConcurrent          int
	UnlimitedConcurrency   bool
	DefaultRateLimit       string
	CleanupOnResumeFormats []string
	VerifyInterval         time.Duration
	VerifyTimeout          time.Duration
	KillTimeout            time.Duration
	ProgressInterval       time.Duration
	CookiesBrowser         string
	DesktopNotifications   bool
	StateURL               string
}

// yamlConfig refleja el archivo en disco; duraciones como string ("1s", "5m")
type yamlConfig struct {
	DataDir                string   `yaml:"data_dir"`
	OutputDir              string   `yaml:"output_dir"`
	SocketPath             string   `yaml:"socket_path"`
	YtDlpPath              string   `yaml:"ytdlp_path"`
	MaxConcurrent          int      `yaml:"max_concurrent"`
	UnlimitedConcurrency   *bool    `yaml:"unlimited_concurrency"`
	DefaultRateLimit       string   `yaml:"default_rate_limit"`
	CleanupOnResumeFormats []string `yaml:"cleanup_on_resume_formats"`
	VerifyInterval         string   `yaml:"verify_interval"`
	VerifyTimeout          string   `yaml:"verify_timeout"`
	KillTimeout            string   `yaml:"kill_timeout"`
	ProgressInterval       string   `yaml:"progress_interval"`
	CookiesBrowser         string   `yaml:"cookies_browser"`
	DesktopNotifications   *bool    `yaml:"desktop_notifications"`
	StateURL               string   `yaml:"state_url"`
}

// Default retorna la configuración por defecto
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	outputDir, err := platform.GetHomeDownloadsDir()
	if err != nil {
		outputDir = filepath.Join(home, "Downloads")
	}

	return Config{
		DataDir:                filepath.Join(home, ".local", "share", "downlodr"),
		OutputDir:              outputDir,
		SocketPath:             client.GetDefaultSocketPath(),
		YtDlpPath:              "yt-dlp",
		MaxConcurrent:          5,
		CleanupOnResumeFormats: []string{"m4a"},
		VerifyInterval:         time.Second,
		VerifyTimeout:          5 * time.Minute,
		KillTimeout:            10 * time.Second,
		ProgressInterval:       500 * time.Millisecond,
		DesktopNotifications:   true,
	}
}

// DefaultPath retorna ~/.config/downlodr/config.yaml (respeta XDG_CONFIG_HOME)
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "downlodr", "config.yaml")
}

// Load lee la configuración desde path. Un archivo inexistente equivale a Default().
func Load(path string) (Config, error) {
	cfg, err := LoadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFromFile carga la configuración desde un archivo YAML
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.DataDir != "" {
		cfg.DataDir = yc.DataDir
	}
	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.SocketPath != "" {
		cfg.SocketPath = yc.SocketPath
	}
	if yc.YtDlpPath != "" {
		cfg.YtDlpPath = yc.YtDlpPath
	}
	if yc.MaxConcurrent != 0 {
		cfg.MaxConcurrent = yc.MaxConcurrent
	}
	if yc.UnlimitedConcurrency != nil {
		cfg.UnlimitedConcurrency = *yc.UnlimitedConcurrency
	}
	cfg.DefaultRateLimit = yc.DefaultRateLimit
	if yc.CleanupOnResumeFormats != nil {
		cfg.CleanupOnResumeFormats = yc.CleanupOnResumeFormats
	}
	cfg.CookiesBrowser = yc.CookiesBrowser
	if yc.DesktopNotifications != nil {
		cfg.DesktopNotifications = *yc.DesktopNotifications
	}
	cfg.StateURL = yc.StateURL

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"verify_interval", yc.VerifyInterval, &cfg.VerifyInterval},
		{"verify_timeout", yc.VerifyTimeout, &cfg.VerifyTimeout},
		{"kill_timeout", yc.KillTimeout, &cfg.KillTimeout},
		{"progress_interval", yc.ProgressInterval, &cfg.ProgressInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// LoadFromEnv aplica overrides desde variables de entorno con prefijo DOWNLODR_
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("DOWNLODR_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("DOWNLODR_SOCKET_PATH"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("DOWNLODR_YTDLP_PATH"); v != "" {
		c.YtDlpPath = v
	}
	if v := os.Getenv("DOWNLODR_DEFAULT_RATE_LIMIT"); v != "" {
		c.DefaultRateLimit = v
	}
	if v := os.Getenv("DOWNLODR_STATE_URL"); v != "" {
		c.StateURL = v
	}
	if v := os.Getenv("DOWNLODR_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse DOWNLODR_MAX_CONCURRENT: %w", err)
		}
		c.MaxConcurrent = n
	}
	if v := os.Getenv("DOWNLODR_UNLIMITED"); v != "" {
		c.UnlimitedConcurrency = v == "true" || v == "1"
	}
	return nil
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.SocketPath == "" {
		return errors.New("config: socket_path is required")
	}
	if !c.UnlimitedConcurrency && c.MaxConcurrent < 1 {
		return errors.New("config: max_concurrent must be at least 1")
	}
	if c.VerifyInterval <= 0 || c.VerifyTimeout <= 0 {
		return errors.New("config: verify_interval and verify_timeout must be positive")
	}
	if c.VerifyTimeout < c.VerifyInterval {
		return errors.New("config: verify_timeout must not be shorter than verify_interval")
	}
	if c.KillTimeout <= 0 {
		return errors.New("config: kill_timeout must be positive")
	}
	if c.ProgressInterval <= 0 {
		return errors.New("config: progress_interval must be positive")
	}
	if _, err := utils.NormalizeRateLimit(c.DefaultRateLimit); err != nil {
		return fmt.Errorf("config: default_rate_limit: %w", err)
	}
	return nil
}

// Ceiling retorna el límite de concurrencia; 0 significa ilimitado
func (c *Config) Ceiling() int {
	if c.UnlimitedConcurrency {
		return 0
	}
	return c.MaxConcurrent
}

// CookiesDir retorna el directorio de cookie jars
func (c *Config) CookiesDir() string {
	return filepath.Join(c.DataDir, "cookies")
}
