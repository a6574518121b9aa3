// Package config loads watchtex settings from .watchtex.yaml, WATCHTEX_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Init.
const EnvPrefix = "WATCHTEX"

// FileEnv names the config file Init reads when none is given. The watcher
// sets it for supervisor processes so they load the same file.
const FileEnv = EnvPrefix + "_CONFIG"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// LogConfig configures the optional log file.
type LogConfig struct {
	File       string `mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
}

// DashboardConfig configures the live dashboard server.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	Port    int  `mapstructure:"port" toml:"port"`
}

// Config holds all runtime configuration for a watch session.
type Config struct {
	Compiler     string          `mapstructure:"compiler" toml:"compiler"`
	CompilerArgs []string        `mapstructure:"compiler_args" toml:"compiler_args"`
	Backend      string          `mapstructure:"backend" toml:"backend"`
	Verbose      bool            `mapstructure:"verbose" toml:"verbose"`
	IgnoreDirs   []string        `mapstructure:"ignore_dirs" toml:"ignore_dirs"`
	Log          LogConfig       `mapstructure:"log" toml:"log"`
	Dashboard    DashboardConfig `mapstructure:"dashboard" toml:"dashboard"`
}

// DefaultBackend is inotify where the kernel has it.
func DefaultBackend() string {
	if runtime.GOOS == "linux" {
		return "inotify"
	}
	return "fsnotify"
}

// Init points viper at the config file (or $WATCHTEX_CONFIG, or
// .watchtex.yaml in the working or home directory when cfgFile is empty) and
// the WATCHTEX_ environment. A missing default config file is not an error.
func Init(cfgFile string) error {
	if cfgFile == "" {
		cfgFile = os.Getenv(FileEnv)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".watchtex")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// File returns the absolute path of the config file Init read, or "".
func File() string {
	used := viper.ConfigFileUsed()
	if used == "" {
		return ""
	}
	if abs, err := filepath.Abs(used); err == nil {
		return abs
	}
	return used
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("compiler", "rubber")
	viper.SetDefault("compiler_args", []string{"--pdf", "--unsafe"})
	viper.SetDefault("backend", DefaultBackend())
	viper.SetDefault("verbose", false)
	viper.SetDefault("ignore_dirs", []string{"node_modules"})
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("dashboard.enabled", false)
	viper.SetDefault("dashboard.port", 8390)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks values Load cannot type-check.
func (c Config) Validate() error {
	if c.Compiler == "" {
		return fmt.Errorf("%w: compiler must not be empty", ErrInvalid)
	}
	switch c.Backend {
	case "inotify", "fsnotify":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("%w: dashboard port %d out of range", ErrInvalid, c.Dashboard.Port)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("%w: log rotation limits must not be negative", ErrInvalid)
	}
	return nil
}

// Encode writes c as TOML.
func Encode(w io.Writer, c Config) error {
	return toml.NewEncoder(w).Encode(c)
}
