// Package config centralizes runtime configuration for the engine and
// its CLI. Values come from a config.yaml, CHARMINE_* environment
// variables, and programmatic defaults, with environment taking
// precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the materialized runtime configuration.
type Config struct {
	// Server.
	ListenAddr string `mapstructure:"listen-addr"`

	// Model backend: "openai", "anthropic", or "mock".
	ModelProvider string `mapstructure:"model-provider"`
	ModelName     string `mapstructure:"model-name"`

	// Pipeline.
	MaxRounds  int           `mapstructure:"max-rounds"`
	RunTimeout time.Duration `mapstructure:"run-timeout"`

	// Extraction windows, in characters.
	CoOccurWindow int `mapstructure:"co-occur-window"`
	KeywordWindow int `mapstructure:"keyword-window"`

	// Session retention.
	SessionTTL time.Duration `mapstructure:"session-ttl"`

	// Entity storage: empty means in-memory.
	EntityDB string `mapstructure:"entity-db"`

	// State snapshots.
	StatePath string `mapstructure:"state-path"`

	// Logging.
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`
}

// Initialize builds a viper instance with defaults, config.yaml
// discovery, and CHARMINE_* environment binding. The search order is an
// explicit path (when non-empty), then the working directory, then the
// user config directory.
func Initialize(explicitPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	configFileSet := false
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		configFileSet = true
	}

	if !configFileSet {
		if cwd, err := os.Getwd(); err == nil {
			configPath := filepath.Join(cwd, "charmine.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "charmine", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("CHARMINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen-addr", ":8000")
	v.SetDefault("model-provider", "openai")
	v.SetDefault("model-name", "")
	v.SetDefault("max-rounds", 10)
	v.SetDefault("run-timeout", "5m")
	v.SetDefault("co-occur-window", 100)
	v.SetDefault("keyword-window", 50)
	v.SetDefault("session-ttl", "24h")
	v.SetDefault("entity-db", "")
	v.SetDefault("state-path", "charmine-state.json")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "json")
	v.SetDefault("log-file", "")
}

// FromViper unmarshals the viper instance into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Load is the common path: Initialize then FromViper.
func Load(explicitPath string) (*Config, error) {
	v, err := Initialize(explicitPath)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Watch reloads the configuration whenever its file changes, invoking
// onChange with the freshly unmarshaled Config. No-op when no config
// file was discovered.
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := FromViper(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
