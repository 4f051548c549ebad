// Package config loads pmsync configuration from flags, environment, .env and config files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable pmsync reads.
const EnvPrefix = "POSTMARK"

// Default values.
const (
	DefaultRequestHost = "api.postmarkapp.com"
	DefaultTimeout     = 30 * time.Second
	DefaultPageSize    = 300
	MaxPageSize        = 500
)

// Config holds all configuration for pmsync.
type Config struct {
	ServerToken string        `mapstructure:"server_token"`
	RequestHost string        `mapstructure:"request_host"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PageSize    int           `mapstructure:"page_size"`
	Log         LogConfig     `mapstructure:"log"`
	History     HistoryConfig `mapstructure:"history"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HistoryConfig controls the local push journal.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadOptions tune where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit config file; it must exist when set.
	ConfigFile string
	// EnvFile overrides the .env file location.
	EnvFile string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestHost: DefaultRequestHost,
		Timeout:     DefaultTimeout,
		PageSize:    DefaultPageSize,
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
	}
}

// New returns a viper instance with defaults and environment binding applied.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetDefault("server_token", "")
	v.SetDefault("request_host", defaults.RequestHost)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("page_size", defaults.PageSize)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("history.enabled", defaults.History.Enabled)
	v.SetDefault("history.path", defaults.History.Path)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env, the config file and the environment into a Config.
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	if v == nil {
		v = New()
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ServerToken = strings.TrimSpace(cfg.ServerToken)
	cfg.RequestHost = strings.TrimSpace(cfg.RequestHost)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the client cannot work with.
func (c *Config) Validate() error {
	if c.RequestHost == "" {
		return fmt.Errorf("request host is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d, got %d", MaxPageSize, c.PageSize)
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}
	return nil
}

// loadEnvFile loads KEY=VALUE pairs without overriding the real environment.
func loadEnvFile(path string) error {
	if path == "" {
		path = os.Getenv(EnvPrefix + "_ENV_FILE")
	}
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func searchPaths() []string {
	paths := make([]string, 0, 1)
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		paths = append(paths, filepath.Join(dir, "pmsync"))
	}
	return paths
}

func defaultHistoryPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pmsync", "history.db")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "pmsync", "history.db")
	}
	return filepath.Join(os.TempDir(), "pmsync", "history.db")
}
