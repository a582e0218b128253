// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CSRF modes accepted by csrf_mode.
const (
	CSRFCookie = "cookie"
	CSRFStatic = "static"
	CSRFNone   = "none"
)

// Token store backends accepted by token_store.
const (
	StoreNATS  = "nats"
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds all configuration values for contestr.
type Config struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Timeout        int    `mapstructure:"timeout" yaml:"timeout"`
	CSRFMode       string `mapstructure:"csrf_mode" yaml:"csrf_mode"`
	CSRFToken      string `mapstructure:"csrf_token" yaml:"csrf_token,omitempty"`
	CSRFPath       string `mapstructure:"csrf_path" yaml:"csrf_path"`
	TokenStore     string `mapstructure:"token_store" yaml:"token_store"`
	RedisAddr      string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword  string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB        int    `mapstructure:"redis_db" yaml:"redis_db"`
	DataDir        string `mapstructure:"data_dir" yaml:"data_dir"`
	ArchiveDir     string `mapstructure:"archive_dir" yaml:"archive_dir"`
	StrictSchedule bool   `mapstructure:"strict_schedule" yaml:"strict_schedule"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

// envKeys lists every key bound to an explicit CONTESTR_ variable.
var envKeys = []string{
	"base_url",
	"timeout",
	"csrf_mode",
	"csrf_token",
	"csrf_path",
	"token_store",
	"redis_addr",
	"redis_password",
	"redis_db",
	"data_dir",
	"archive_dir",
	"strict_schedule",
	"log_level",
	"log_file",
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		BaseURL:        "http://localhost:8000",
		Timeout:        30,
		CSRFMode:       CSRFCookie,
		CSRFPath:       "/api/csrf",
		TokenStore:     StoreNATS,
		RedisAddr:      "localhost:6379",
		DataDir:        ".contestr",
		ArchiveDir:     filepath.Join(".contestr", "contests"),
		StrictSchedule: true,
		LogLevel:       "info",
	}
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("contestr")

	d := Defaults()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("csrf_mode", d.CSRFMode)
	v.SetDefault("csrf_token", "")
	v.SetDefault("csrf_path", d.CSRFPath)
	v.SetDefault("token_store", d.TokenStore)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("archive_dir", d.ArchiveDir)
	v.SetDefault("strict_schedule", d.StrictSchedule)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("CONTESTR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit bindings so bool/int values from the environment parse reliably
	for _, key := range envKeys {
		if err := v.BindEnv(key, "CONTESTR_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.CSRFMode {
	case CSRFCookie, CSRFStatic, CSRFNone:
	default:
		return fmt.Errorf("invalid csrf_mode %q (want cookie, static or none)", c.CSRFMode)
	}
	if c.CSRFMode == CSRFStatic && c.CSRFToken == "" {
		return fmt.Errorf("csrf_mode static requires csrf_token")
	}
	switch c.TokenStore {
	case StoreNATS, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("invalid token_store %q (want nats, file or redis)", c.TokenStore)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	return nil
}

// RequestTimeout returns the HTTP timeout as a duration. Zero disables it.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/contestr/contestr.yml or $XDG_CONFIG_HOME/contestr/contestr.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "contestr", "contestr.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "contestr", "contestr.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "contestr.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
