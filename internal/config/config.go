// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

// Package config loads server configuration from defaults, a YAML
// file, PHOTOSTREAM_* environment variables, and command-line flags,
// in ascending order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/photostream/photostream/internal/xdg"
)

// envPrefix namespaces environment variables. A double underscore maps
// to a key separator: PHOTOSTREAM_DATABASE__URL sets database.url.
const envPrefix = "PHOTOSTREAM_"

// HTTPConfig configures the public REST API server.
type HTTPConfig struct {
	Addr    string `koanf:"addr"`
	BaseURL string `koanf:"base_url"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	// Addr is the metrics/health listen address. Empty disables it.
	Addr string `koanf:"addr"`
}

// ControlConfig configures the gRPC health endpoint.
type ControlConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// RedisConfig configures the session snapshot cache.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig configures token signing and lifetimes.
type AuthConfig struct {
	Secret     string        `koanf:"secret"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	ActionTTL  time.Duration `koanf:"action_ttl"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// SMTPConfig configures outgoing mail. Delivery is disabled when host,
// user, or password is empty.
type SMTPConfig struct {
	Host       string `koanf:"host"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	From       string `koanf:"from"`
	SkipVerify bool   `koanf:"skip_verify"`
}

// LogConfig configures the default logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Config is the full server configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Control  ControlConfig  `koanf:"control"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":        ":8000",
		"http.base_url":    "http://localhost:8000",
		"metrics.addr":     "127.0.0.1:9100",
		"control.addr":     "127.0.0.1:9001",
		"redis.addr":       "localhost:6379",
		"redis.db":         0,
		"auth.access_ttl":  "15m",
		"auth.refresh_ttl": "168h",
		"auth.action_ttl":  "168h",
		"auth.cache_ttl":   "15m",
		"log.format":       "json",
		"log.level":        "info",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "photostream.yaml")
}

// Load builds the configuration. path may be empty, in which case the
// default location is tried and silently skipped when absent. flags
// may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	// A missing file is only an error when the user named it.
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Auth.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.secret is required")
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.ActionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth token lifetimes must be positive")
	}
	return nil
}
