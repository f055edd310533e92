// ABOUTME: Configuration loading and parsing for explainit
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Character budgets for panel requests, by plan.
const (
	PlanPro  = "pro"
	PlanFree = "free"
)

// Defaults applied by Default and by Load for fields left empty.
const (
	DefaultHTTPAddr        = "127.0.0.1:7878"
	DefaultDispatchTimeout = 30 * time.Second
	DefaultDedupeWindow    = 2 * time.Second
	DefaultLanguage        = "en"
)

// ErrNoConfig is returned by Resolve when no config file exists at any candidate path.
var ErrNoConfig = errors.New("no config file found")

// Config represents the complete explainit configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Dispatch DispatchConfig `yaml:"dispatch" toml:"dispatch"`
	Menu     MenuConfig     `yaml:"menu" toml:"menu"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Client   ClientConfig   `yaml:"client" toml:"client"`
}

// ServerConfig holds the gateway listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
	// EncryptionKey seals the provider API key at rest. Empty stores it in plain text.
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key"`
}

// DispatchConfig holds cross-context request timing
type DispatchConfig struct {
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// MenuConfig holds context-menu event handling configuration
type MenuConfig struct {
	DedupeWindow time.Duration `yaml:"-" toml:"-"`

	DedupeWindowRaw string `yaml:"dedupe_window" toml:"dedupe_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ClientConfig holds settings for the ask and panel front ends
type ClientConfig struct {
	// Plan selects the panel character budget: "pro" or "free"
	Plan string `yaml:"plan" toml:"plan"`
	// LanguageFallback is used when settings carry no output language
	LanguageFallback string `yaml:"language_fallback" toml:"language_fallback"`
	// GatewayURL points the front ends at a running gateway. Empty runs in-process.
	GatewayURL string `yaml:"gateway_url" toml:"gateway_url"`
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultDatabasePath returns ~/.local/share/explainit/explainit.db, or a relative
// path when the home directory cannot be determined.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "explainit.db"
	}
	return filepath.Join(home, ".local", "share", "explainit", "explainit.db")
}

// Resolve returns the config path to use: EXPLAINIT_CONFIG, then
// $XDG_CONFIG_HOME/explainit/config.yaml, then ~/.config/explainit/config.yaml.
// An explicit EXPLAINIT_CONFIG is returned even when the file is missing so the
// caller reports the real path.
func Resolve() (string, error) {
	if p := os.Getenv("EXPLAINIT_CONFIG"); p != "" {
		return p, nil
	}

	var candidates []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "explainit", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "explainit", "config.yaml"))
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNoConfig
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
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

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath()
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = DefaultDispatchTimeout
	}
	if cfg.Menu.DedupeWindow == 0 {
		cfg.Menu.DedupeWindow = DefaultDedupeWindow
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Client.Plan == "" {
		cfg.Client.Plan = PlanFree
	}
	if cfg.Client.LanguageFallback == "" {
		cfg.Client.LanguageFallback = DefaultLanguage
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Dispatch.Timeout < 0 {
		return fmt.Errorf("dispatch.timeout must be positive")
	}

	switch c.Client.Plan {
	case PlanPro, PlanFree:
	default:
		return fmt.Errorf("client.plan must be %q or %q, got %q", PlanPro, PlanFree, c.Client.Plan)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Dispatch.TimeoutRaw != "" {
		cfg.Dispatch.Timeout, err = time.ParseDuration(cfg.Dispatch.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing dispatch.timeout %q: %w", cfg.Dispatch.TimeoutRaw, err)
		}
	}

	if cfg.Menu.DedupeWindowRaw != "" {
		cfg.Menu.DedupeWindow, err = time.ParseDuration(cfg.Menu.DedupeWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing menu.dedupe_window %q: %w", cfg.Menu.DedupeWindowRaw, err)
		}
	}

	return nil
}

// Template returns a commented starter config, used by `explainit init`.
func Template(dbPath string) string {
	return fmt.Sprintf(`# explainit configuration

server:
  http_addr: %q

database:
  path: %q
  # Seals the provider API key at rest. Leave empty to store it in plain text.
  encryption_key: "${EXPLAINIT_ENCRYPTION_KEY}"

dispatch:
  timeout: "30s"

menu:
  dedupe_window: "2s"

logging:
  level: "info"   # debug, info, warn, error
  format: "text"  # text, json

client:
  plan: "free"    # free (15 chars) or pro (50 chars)
  language_fallback: "en"
  # gateway_url: "http://127.0.0.1:7878"
`, DefaultHTTPAddr, dbPath)
}
