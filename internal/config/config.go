package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/postnome/postnome/internal/engine"
	"github.com/postnome/postnome/internal/state"
	"github.com/postnome/postnome/internal/transport"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POSTNOME_LOG_LEVEL.
const EnvPrefix = "POSTNOME"

// DefaultConfigName is the config file looked up in the working directory.
const DefaultConfigName = "postnome"

// Config is the full runtime configuration.
type Config struct {
	Settings  SettingsConfig      `mapstructure:"settings"`
	Backend   state.BackendConfig `mapstructure:"backend"`
	Log       LogConfig           `mapstructure:"log"`
	Transport TransportConfig     `mapstructure:"transport"`
	Run       RunConfig           `mapstructure:"run"`
	Import    ImportConfig        `mapstructure:"import"`
}

type SettingsConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"` // json or yaml; empty follows the path extension
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type TransportConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	LocalhostAlias     string        `mapstructure:"localhost_alias"`
}

type RunConfig struct {
	MissingPlaceholder string `mapstructure:"missing_placeholder"`
	OverwriteOutput    bool   `mapstructure:"overwrite_output"`
}

type ImportConfig struct {
	Dir string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	retry := transport.DefaultRetryPolicy()

	v.SetDefault("settings.path", "postnome.json")
	v.SetDefault("settings.format", "")
	v.SetDefault("backend.type", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("transport.timeout", transport.DefaultTimeout)
	v.SetDefault("transport.max_retries", retry.MaxRetries)
	v.SetDefault("transport.base_delay", retry.BaseDelay)
	v.SetDefault("transport.max_delay", retry.MaxDelay)
	v.SetDefault("transport.insecure_skip_verify", false)
	v.SetDefault("transport.localhost_alias", "")
	v.SetDefault("run.missing_placeholder", engine.DefaultMissingPlaceholder)
	v.SetDefault("run.overwrite_output", false)
	v.SetDefault("import.dir", "imports")
}

// Load reads configuration from file, .env and environment. An empty path
// looks for postnome.yaml in the working directory; a missing default file is
// not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Relative paths in a config file are relative to that file
	if used := v.ConfigFileUsed(); used != "" {
		base := filepath.Dir(used)
		cfg.Settings.Path = resolve(base, cfg.Settings.Path)
		cfg.Import.Dir = resolve(base, cfg.Import.Dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Settings.Format {
	case "", state.FormatJSON, state.FormatYAML:
	default:
		return fmt.Errorf("settings.format must be json or yaml, got %q", c.Settings.Format)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Transport.Timeout <= 0 {
		return fmt.Errorf("transport.timeout must be positive")
	}
	if c.Transport.MaxRetries < 0 {
		return fmt.Errorf("transport.max_retries must not be negative")
	}
	return nil
}

// TransportOptions converts the transport section for transport.New.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		Timeout: c.Transport.Timeout,
		Retry: &transport.RetryPolicy{
			MaxRetries: c.Transport.MaxRetries,
			BaseDelay:  c.Transport.BaseDelay,
			MaxDelay:   c.Transport.MaxDelay,
		},
		InsecureSkipVerify: c.Transport.InsecureSkipVerify,
	}
}

// EngineOptions converts the run and transport sections for engine.NewEngine.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		MissingPlaceholder: c.Run.MissingPlaceholder,
		LocalhostAlias:     c.Transport.LocalhostAlias,
		OverwriteOutput:    c.Run.OverwriteOutput,
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
