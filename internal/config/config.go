// ABOUTME: Configuration loading and parsing for compass-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default cache and store sizing. These match the limits the authorization
// layer was designed around; override them in the config file if needed.
const (
	DefaultIntrospectionTTL     = 60 * time.Second
	DefaultIntrospectionMaxSize = 1000
	DefaultSelectionTTL         = 24 * time.Hour
	DefaultMaxSelections        = 10000
)

// authBaseURLs maps the environment selector to the fixed authorization
// server base URLs. There is deliberately no free-form override: the
// gateway only ever talks to one of these three servers.
var authBaseURLs = map[string]string{
	"production": "https://auth.compass.example.com",
	"staging":    "https://auth.staging.compass.example.com",
	"dev":        "https://auth.dev.compass.example.com",
}

// apiBaseURLs maps the environment selector to the downstream product API.
var apiBaseURLs = map[string]string{
	"production": "https://api.compass.example.com",
	"staging":    "https://api.staging.compass.example.com",
	"dev":        "https://api.dev.compass.example.com",
}

// Config represents the complete compass-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	API       APIConfig       `yaml:"api"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds OAuth client credentials and introspection cache tuning
type AuthConfig struct {
	Environment  string `yaml:"environment"` // production | staging | dev
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CacheMaxSize int    `yaml:"cache_max_size"`

	CacheTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CacheTTLRaw string `yaml:"cache_ttl"`
}

// APIConfig holds downstream product API configuration
type APIConfig struct {
	// BaseURL overrides the environment default. Normally left empty.
	BaseURL string `yaml:"base_url"`
}

// WorkspaceConfig holds workspace selection store tuning
type WorkspaceConfig struct {
	MaxSelections int `yaml:"max_selections"`

	SelectionTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	SelectionTTLRaw string `yaml:"selection_ttl"`
}

// DatabaseConfig holds audit database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AuthBaseURL returns the authorization server base URL for the configured
// environment. Only meaningful after Validate has passed.
func (c *Config) AuthBaseURL() string {
	return authBaseURLs[c.Auth.Environment]
}

// APIBaseURL returns the downstream product API base URL, honoring the
// explicit override when present.
func (c *Config) APIBaseURL() string {
	if c.API.BaseURL != "" {
		return c.API.BaseURL
	}
	return apiBaseURLs[c.Auth.Environment]
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in unset fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8585"
	}
	if cfg.Auth.CacheTTL == 0 {
		cfg.Auth.CacheTTL = DefaultIntrospectionTTL
	}
	if cfg.Auth.CacheMaxSize == 0 {
		cfg.Auth.CacheMaxSize = DefaultIntrospectionMaxSize
	}
	if cfg.Workspace.SelectionTTL == 0 {
		cfg.Workspace.SelectionTTL = DefaultSelectionTTL
	}
	if cfg.Workspace.MaxSelections == 0 {
		cfg.Workspace.MaxSelections = DefaultMaxSelections
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// Missing OAuth client credentials must stop the process at startup, not
// surface on the first request.
func (c *Config) Validate() error {
	if _, ok := authBaseURLs[c.Auth.Environment]; !ok {
		return fmt.Errorf("auth.environment must be one of production, staging, dev (got %q)", c.Auth.Environment)
	}
	if c.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id is required")
	}
	if c.Auth.ClientSecret == "" {
		return fmt.Errorf("auth.client_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.CacheTTLRaw != "" {
		cfg.Auth.CacheTTL, err = time.ParseDuration(cfg.Auth.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.cache_ttl %q: %w", cfg.Auth.CacheTTLRaw, err)
		}
	}

	if cfg.Workspace.SelectionTTLRaw != "" {
		cfg.Workspace.SelectionTTL, err = time.ParseDuration(cfg.Workspace.SelectionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing workspace.selection_ttl %q: %w", cfg.Workspace.SelectionTTLRaw, err)
		}
	}

	return nil
}
