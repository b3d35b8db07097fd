// Package config wraps viper with nil-safe accessors and loads the netscope
// configuration from file, environment, and an optional .env file.
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

// EnvPrefix is prepended to every environment override, e.g.
// NETSCOPE_SCANNER_PATH for scanner.path.
const EnvPrefix = "NETSCOPE"

// Config is a read-only view over a viper instance.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v yields a Config that returns zero values.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree at key. A missing key yields an empty Config
// rather than nil.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return New(nil)
	}
	sub := c.v.Sub(key)
	if sub == nil {
		return New(viper.New())
	}
	return New(sub)
}

func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}

// Settings is the typed form of the netscope configuration.
type Settings struct {
	Output struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"output"`
	Scanner struct {
		Path         string        `mapstructure:"path"`
		PhaseTimeout time.Duration `mapstructure:"phase_timeout"`
		HostTimeout  time.Duration `mapstructure:"host_timeout"`
		MaxRetries   int           `mapstructure:"max_retries"`
	} `mapstructure:"scanner"`
	Runner struct {
		ParallelSegments bool          `mapstructure:"parallel_segments"`
		StepInterval     time.Duration `mapstructure:"step_interval"`
	} `mapstructure:"runner"`
	Store struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"store"`
	Discovery struct {
		PingGateway bool          `mapstructure:"ping_gateway"`
		PingTimeout time.Duration `mapstructure:"ping_timeout"`
	} `mapstructure:"discovery"`
	Log LogSettings `mapstructure:"log"`
}

// LogSettings configures the diagnostic logger.
type LogSettings struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Settings decodes the full configuration. Scanner retries are clamped to
// at most one.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	if s.Scanner.MaxRetries > 1 {
		s.Scanner.MaxRetries = 1
	}
	if s.Scanner.MaxRetries < 0 {
		s.Scanner.MaxRetries = 0
	}
	return s, nil
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", "./engagements")
	v.SetDefault("scanner.path", "nmap")
	v.SetDefault("scanner.phase_timeout", "30m")
	v.SetDefault("scanner.host_timeout", "5m")
	v.SetDefault("scanner.max_retries", 1)
	v.SetDefault("runner.parallel_segments", false)
	v.SetDefault("runner.step_interval", "2s")
	v.SetDefault("store.path", "./engagements/netscope.db")
	v.SetDefault("discovery.ping_gateway", true)
	v.SetDefault("discovery.ping_timeout", "3s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// Load reads configuration into v: defaults, then the config file (path, or
// netscope.yaml in the search paths), then NETSCOPE_* environment variables.
// A .env file in the working directory is loaded first when present. A
// missing netscope.yaml is not an error; a missing explicit path is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("netscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".netscope"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}
