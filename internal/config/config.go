// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads campus configuration from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/randiU/cse340-practice-umphrey/internal/logging"
)

// Environments.
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// MinSecretLength is the shortest accepted session secret, in bytes.
const MinSecretLength = 32

// Config is the full service configuration.
type Config struct {
	Environment string         `koanf:"environment" yaml:"environment"`
	Server      ServerConfig   `koanf:"server" yaml:"server"`
	Database    DatabaseConfig `koanf:"database" yaml:"database"`
	Session     SessionConfig  `koanf:"session" yaml:"session"`
	Log         LogConfig      `koanf:"log" yaml:"log"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr" yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL              string        `koanf:"url" yaml:"url"`
	AllowInsecureTLS bool          `koanf:"allow_insecure_tls" yaml:"allow_insecure_tls"`
	MaxConns         int32         `koanf:"max_conns" yaml:"max_conns"`
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
	ConnectAttempts  uint64        `koanf:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff   time.Duration `koanf:"connect_backoff" yaml:"connect_backoff"`
}

// SessionConfig configures cookies and the session sweeper.
type SessionConfig struct {
	Secret        string        `koanf:"secret" yaml:"secret"`
	CookieName    string        `koanf:"cookie_name" yaml:"cookie_name"`
	Lifetime      time.Duration `koanf:"lifetime" yaml:"lifetime"`
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

func defaults() map[string]any {
	return map[string]any{
		"environment":                 Production,
		"server.addr":                 ":3000",
		"server.metrics_addr":         "127.0.0.1:9100",
		"server.shutdown_timeout":     10 * time.Second,
		"database.url":                "",
		"database.allow_insecure_tls": false,
		"database.max_conns":          10,
		"database.timeout":            5 * time.Second,
		"database.connect_attempts":   5,
		"database.connect_backoff":    500 * time.Millisecond,
		"session.secret":              "",
		"session.cookie_name":         "sid",
		"session.lifetime":            24 * time.Hour,
		"session.sweep_interval":      15 * time.Minute,
		"log.format":                  logging.FormatJSON,
		"log.level":                   "info",
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"env":                "environment",
	"addr":               "server.addr",
	"metrics-addr":       "server.metrics_addr",
	"database-url":       "database.url",
	"allow-insecure-tls": "database.allow_insecure_tls",
	"log-format":         "log.format",
	"log-level":          "log.level",
}

// RegisterFlags adds the configuration flags to fs. Flags the user does not
// set never override the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "environment (development, production, test)")
	fs.String("addr", "", "web listen address")
	fs.String("metrics-addr", "", "metrics and health probe listen address")
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.Bool("allow-insecure-tls", false, "permit unverified database TLS (development only)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
}

// Options controls Load.
type Options struct {
	// File is an optional YAML file. A missing file is an error when set.
	File string
	// Flags, when non-nil, is a flag set prepared with RegisterFlags.
	Flags *pflag.FlagSet
	// DotEnv is the .env file read in development. Defaults to ".env".
	DotEnv string
}

// Load builds the configuration. It does not validate it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if environment(k) == Development {
		if err := loadDotEnv(opts.DotEnv); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if opts.Flags != nil {
		p := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	return &cfg, nil
}

// environment resolves the environment before the env provider runs, so the
// .env file can be read in time for it.
func environment(k *koanf.Koanf) string {
	if v, ok := os.LookupEnv("APP_ENV"); ok && v != "" {
		return strings.ToLower(v)
	}
	if v, ok := os.LookupEnv("NODE_ENV"); ok && v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(k.String("environment"))
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return oops.Code("CONFIG_DOTENV_FAILED").With("file", path).Wrap(err)
}

// envKey maps the recognised environment variables to config keys. APP_ENV
// wins over NODE_ENV.
func envKey(name, value string) (string, any) {
	switch name {
	case "APP_ENV":
		return "environment", value
	case "NODE_ENV":
		if os.Getenv("APP_ENV") != "" {
			return "", nil
		}
		return "environment", value
	case "PORT":
		return "server.addr", ":" + value
	case "METRICS_ADDR":
		return "server.metrics_addr", value
	case "DATABASE_URL":
		return "database.url", value
	case "SESSION_SECRET":
		return "session.secret", value
	case "LOG_FORMAT":
		return "log.format", value
	case "LOG_LEVEL":
		return "log.level", value
	}
	return "", nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// Validate checks the loaded configuration for serving.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	invalid := oops.Code("CONFIG_INVALID")

	if len(c.Session.Secret) < MinSecretLength {
		return invalid.With("key", "session.secret").With("min_length", MinSecretLength).
			Errorf("session secret must be at least %d bytes (SESSION_SECRET)", MinSecretLength)
	}
	for key, d := range map[string]time.Duration{
		"session.lifetime":        c.Session.Lifetime,
		"session.sweep_interval":  c.Session.SweepInterval,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d <= 0 {
			return invalid.With("key", key).Errorf("%s must be positive", key)
		}
	}
	return nil
}

// ValidateDatabase checks the subset of the configuration the maintenance
// commands need: environment, logging and database access.
func (c *Config) ValidateDatabase() error {
	invalid := oops.Code("CONFIG_INVALID")

	switch c.Environment {
	case Development, Production, Test:
	default:
		return invalid.With("environment", c.Environment).Errorf("unknown environment %q", c.Environment)
	}
	if c.Database.URL == "" {
		return invalid.With("key", "database.url").Errorf("database url is required (DATABASE_URL)")
	}
	if c.Database.AllowInsecureTLS && !c.IsDevelopment() {
		return invalid.With("key", "database.allow_insecure_tls").
			Errorf("allow_insecure_tls is only permitted in development")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return invalid.With("key", "log.format").Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid.With("key", "log.level").Errorf("unknown log level %q", c.Log.Level)
	}
	if c.Database.Timeout <= 0 {
		return invalid.With("key", "database.timeout").Errorf("database.timeout must be positive")
	}
	if c.Database.ConnectAttempts == 0 {
		return invalid.With("key", "database.connect_attempts").Errorf("connect_attempts must be at least 1")
	}
	return nil
}

// Redacted returns a copy safe to print: the session secret is masked and
// the database password removed.
func (c *Config) Redacted() Config {
	out := *c
	out.Database.URL = redactURL(c.Database.URL)
	if out.Session.Secret != "" {
		out.Session.Secret = "[redacted]"
	}
	return out
}

// LogValue keeps the session secret and database password out of logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("environment", c.Environment),
		slog.String("addr", c.Server.Addr),
		slog.String("metrics_addr", c.Server.MetricsAddr),
		slog.String("database", redactURL(c.Database.URL)),
		slog.Bool("allow_insecure_tls", c.Database.AllowInsecureTLS),
		slog.Duration("session_lifetime", c.Session.Lifetime),
		slog.String("log_format", c.Log.Format),
		slog.String("log_level", c.Log.Level),
	)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		if raw == "" {
			return ""
		}
		return "[redacted]"
	}
	return u.Redacted()
}
