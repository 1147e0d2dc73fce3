package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for argo-explorer.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Backend is the oceanographic query service the dashboard talks to.
	Backend BackendConfig `yaml:"backend"`

	// Health controls the connection-health prober.
	Health HealthConfig `yaml:"health"`

	// Roster controls the float network panel.
	Roster RosterConfig `yaml:"roster"`

	// Upload controls the NetCDF upload widget.
	Upload UploadConfig `yaml:"upload"`

	// Session controls the browser session cookie.
	Session SessionConfig `yaml:"session"`

	// Charts sizes server-rendered chart images.
	Charts ChartsConfig `yaml:"charts"`
}

// BackendConfig holds the backend API location and request limits.
type BackendConfig struct {
	// DefaultBaseURL is used when no override has been persisted.
	DefaultBaseURL string `yaml:"default_base_url" env:"ARGO_API_URL" env-default:"http://127.0.0.1:8000"`
	// StateFile persists the user-overridden base URL across restarts.
	StateFile      string        `yaml:"state_file" env:"ARGO_STATE_FILE" env-default:"argo-explorer-state.yaml"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"ARGO_REQUEST_TIMEOUT" env-default:"30s"`
}

// HealthConfig holds health probe settings.
type HealthConfig struct {
	Interval time.Duration `yaml:"interval" env:"HEALTH_INTERVAL" env-default:"30s"`
	Timeout  time.Duration `yaml:"timeout" env:"HEALTH_TIMEOUT" env-default:"5s"`
	Path     string        `yaml:"path" env:"HEALTH_PATH" env-default:"/health"`
}

// RosterConfig holds float roster settings.
type RosterConfig struct {
	Limit         int           `yaml:"limit" env:"ROSTER_LIMIT" env-default:"6"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"ROSTER_MAX_CONCURRENT" env-default:"8"`
	EnrichTimeout time.Duration `yaml:"enrich_timeout" env:"ROSTER_ENRICH_TIMEOUT" env-default:"8s"`
}

// UploadConfig holds upload widget settings.
type UploadConfig struct {
	MaxBytes     int64         `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"104857600"`
	ResetDelay   time.Duration `yaml:"reset_delay" env:"UPLOAD_RESET_DELAY" env-default:"3s"`
	TickInterval time.Duration `yaml:"tick_interval" env:"UPLOAD_TICK_INTERVAL" env-default:"200ms"`
	TickStep     int           `yaml:"tick_step" env:"UPLOAD_TICK_STEP" env-default:"10"`
	Ceiling      int           `yaml:"ceiling" env:"UPLOAD_CEILING" env-default:"90"`
}

// SessionConfig holds cookie session settings.
type SessionConfig struct {
	// Secret signs the session cookie. A random key is generated when empty,
	// which invalidates sessions on restart.
	Secret     string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
	CookieName string `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"argo_explorer"`
}

// ChartsConfig holds chart image dimensions in pixels.
type ChartsConfig struct {
	Width  int `yaml:"width" env:"CHART_WIDTH" env-default:"800"`
	Height int `yaml:"height" env:"CHART_HEIGHT" env-default:"480"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; environment variables and defaults apply.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigFile, version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Backend.DefaultBaseURL = ResolveURLForDocker(cfg.Backend.DefaultBaseURL)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

// validate rejects settings that would make a component misbehave silently.
func (c *Config) validate() error {
	if c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be positive, got %s", c.Health.Interval)
	}
	if c.Health.Timeout <= 0 {
		return fmt.Errorf("health timeout must be positive, got %s", c.Health.Timeout)
	}
	if !strings.HasPrefix(c.Health.Path, "/") {
		return fmt.Errorf("health path must start with '/', got %q", c.Health.Path)
	}
	if c.Roster.Limit <= 0 {
		return fmt.Errorf("roster limit must be positive, got %d", c.Roster.Limit)
	}
	if c.Upload.Ceiling <= 0 || c.Upload.Ceiling > 100 {
		return fmt.Errorf("upload ceiling must be within 1..100, got %d", c.Upload.Ceiling)
	}
	if c.Charts.Width <= 0 || c.Charts.Height <= 0 {
		return fmt.Errorf("chart size must be positive, got %dx%d", c.Charts.Width, c.Charts.Height)
	}
	return nil
}

// IsDevelopment reports whether the dashboard runs in a development environment.
// Development mode never falls back to the page origin for the backend URL.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "local", "dev", "development":
		return true
	}
	return false
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}
