// Package config loads the privmsg CLI configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the CLI configuration.
type Config struct {
	Store         StoreConfig        `yaml:"store"`
	Messages      MessagesConfig     `yaml:"messages"`
	Notifications NotificationConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
	Log           LogConfig          `yaml:"log"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Driver     string        `yaml:"driver"` // memory, sqlite, postgres, mongo, pebble
	DSN        string        `yaml:"dsn"`    // postgres DSN or mongo URI
	Path       string        `yaml:"path"`   // sqlite file or pebble directory
	Table      string        `yaml:"table"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Standalone bool          `yaml:"standalone"` // mongo without replica set: no transactions
	Timeout    time.Duration `yaml:"timeout"`
}

// MessagesConfig holds message and query limits.
type MessagesConfig struct {
	MaxSubjectLength  int `yaml:"max_subject_length"`
	MaxBodySize       int `yaml:"max_body_size"`
	DefaultQueryLimit int `yaml:"default_query_limit"`
	MaxQueryLimit     int `yaml:"max_query_limit"`
}

// NotificationConfig selects the notifier.
type NotificationConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"` // inapp, email
	Async   bool          `yaml:"async"`
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
	InApp   InAppConfig   `yaml:"inapp"`
	Email   EmailConfig   `yaml:"email"`
}

// InAppConfig configures the event bus notifier.
type InAppConfig struct {
	RedisAddr string `yaml:"redis_addr"` // empty uses the noop transport
	Name      string `yaml:"name"`
}

// EmailConfig configures the SMTP notifier.
type EmailConfig struct {
	SMTPAddr      string  `yaml:"smtp_addr"`
	Username      string  `yaml:"username"`
	Password      string  `yaml:"password"`
	From          string  `yaml:"from"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	// Contacts maps "type:id" to an email address. The CLI has no user
	// directory, so addresses come from here.
	Contacts map[string]string `yaml:"contacts"`
}

// TelemetryConfig toggles OpenTelemetry instrumentation.
type TelemetryConfig struct {
	Tracing     bool   `yaml:"tracing"`
	Metrics     bool   `yaml:"metrics"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:     "sqlite",
			Path:       "privmsg.db",
			Table:      "privmsg_messages",
			Database:   "privmsg",
			Collection: "messages",
			Timeout:    30 * time.Second,
		},
		Messages: MessagesConfig{
			MaxSubjectLength:  120,
			MaxBodySize:       64 * 1024,
			DefaultQueryLimit: 20,
			MaxQueryLimit:     100,
		},
		Notifications: NotificationConfig{
			Backend: "inapp",
			Retries: 3,
			Timeout: 10 * time.Second,
			InApp:   InAppConfig{Name: "privmsg"},
			Email: EmailConfig{
				From:          "noreply@localhost",
				RatePerSecond: 10,
				Burst:         10,
			},
		},
		Telemetry: TelemetryConfig{ServiceName: "privmsg"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty), loads .env when present and applies
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is not an error; a malformed one is.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from PRIVMSG_* environment variables.
func ApplyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PRIVMSG_STORE_DRIVER", &cfg.Store.Driver)
	str("PRIVMSG_STORE_DSN", &cfg.Store.DSN)
	str("PRIVMSG_STORE_PATH", &cfg.Store.Path)
	str("PRIVMSG_NOTIFY_BACKEND", &cfg.Notifications.Backend)
	str("PRIVMSG_REDIS_ADDR", &cfg.Notifications.InApp.RedisAddr)
	str("PRIVMSG_SMTP_ADDR", &cfg.Notifications.Email.SMTPAddr)
	str("PRIVMSG_SMTP_USERNAME", &cfg.Notifications.Email.Username)
	str("PRIVMSG_SMTP_PASSWORD", &cfg.Notifications.Email.Password)
	str("PRIVMSG_SMTP_FROM", &cfg.Notifications.Email.From)
	str("PRIVMSG_LOG_LEVEL", &cfg.Log.Level)
	str("PRIVMSG_LOG_FORMAT", &cfg.Log.Format)

	boolean := func(key string, dst *bool) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	if err := boolean("PRIVMSG_NOTIFY_ENABLED", &cfg.Notifications.Enabled); err != nil {
		return err
	}
	if err := boolean("PRIVMSG_STORE_STANDALONE", &cfg.Store.Standalone); err != nil {
		return err
	}
	if v := os.Getenv("PRIVMSG_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRIVMSG_STORE_TIMEOUT: %w", err)
		}
		cfg.Store.Timeout = d
	}
	return nil
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "pebble":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for %s", c.Store.Driver))
		}
	case "postgres", "mongo":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for %s", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Messages.MaxSubjectLength <= 0 {
		errs = append(errs, errors.New("messages.max_subject_length must be positive"))
	}
	if c.Messages.MaxBodySize <= 0 {
		errs = append(errs, errors.New("messages.max_body_size must be positive"))
	}
	if c.Messages.MaxQueryLimit <= 0 || c.Messages.DefaultQueryLimit <= 0 {
		errs = append(errs, errors.New("messages query limits must be positive"))
	}

	if c.Notifications.Enabled {
		switch c.Notifications.Backend {
		case "inapp":
		case "email":
			if c.Notifications.Email.SMTPAddr == "" {
				errs = append(errs, errors.New("notifications.email.smtp_addr is required"))
			}
			if c.Notifications.Email.From == "" {
				errs = append(errs, errors.New("notifications.email.from is required"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown notifications.backend %q", c.Notifications.Backend))
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
