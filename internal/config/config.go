// Package config loads application configuration from defaults, an optional
// TOML file, an optional .env file and MMPRESENCE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MMPRESENCE_"

// Config holds the application configuration.
type Config struct {
	Domain        string        `validate:"omitempty,excludesall=/?#@"`
	DesiredStatus string        `validate:"omitempty,oneof=online away offline dnd"`
	Interval      time.Duration `validate:"gt=0"`
	Policy        string        `validate:"oneof=always on-mismatch when-away"`
	ListenAddr    string        `validate:"required,hostname_port"`
	DBPath        string        `validate:"required"`
	CDPURL        string        `validate:"omitempty,url"`
	CDPRescan     time.Duration `validate:"gt=0"`
	HTTPTimeout   time.Duration `validate:"gte=0"`
	RateLimit     int           `validate:"gte=0"`
	LogLevel      string        `validate:"oneof=debug info warn error"`
	LogFormat     string        `validate:"oneof=text json"`
}

// fileConfig mirrors Config for TOML decoding. Durations are strings such as
// "2m" or "30s".
type fileConfig struct {
	Domain        *string `toml:"domain"`
	DesiredStatus *string `toml:"desired_status"`
	Interval      *string `toml:"interval"`
	Policy        *string `toml:"policy"`
	ListenAddr    *string `toml:"listen_addr"`
	DBPath        *string `toml:"db_path"`
	CDPURL        *string `toml:"cdp_url"`
	CDPRescan     *string `toml:"cdp_rescan"`
	HTTPTimeout   *string `toml:"http_timeout"`
	RateLimit     *int    `toml:"rate_limit"`
	LogLevel      *string `toml:"log_level"`
	LogFormat     *string `toml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Interval:   2 * time.Minute,
		Policy:     string(model.PolicyAlways),
		ListenAddr: "127.0.0.1:8380",
		DBPath:     "mmpresence.db",
		CDPRescan:  30 * time.Second,
		RateLimit:  5,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load builds the configuration. Later sources override earlier ones:
// defaults, the TOML file named by MMPRESENCE_CONFIG_FILE, then environment
// variables. A .env file (MMPRESENCE_ENV_FILE, default ".env") is read first
// and only fills variables that are not already set; a missing .env is not an
// error. All values are optional; the result is validated before returning.
func Load() (*Config, error) {
	envFile := ".env"
	if v, ok := os.LookupEnv(EnvPrefix + "ENV_FILE"); ok {
		envFile = v
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Default()

	if path := os.Getenv(EnvPrefix + "CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Domain, fc.Domain)
	setString(&c.DesiredStatus, fc.DesiredStatus)
	setString(&c.Policy, fc.Policy)
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.CDPURL, fc.CDPURL)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.RateLimit != nil {
		c.RateLimit = *fc.RateLimit
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"interval", fc.Interval, &c.Interval},
		{"cdp_rescan", fc.CDPRescan, &c.CDPRescan},
		{"http_timeout", fc.HTTPTimeout, &c.HTTPTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config file %s: %s has invalid duration %q: %w", path, d.key, *d.src, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DOMAIN":         &c.Domain,
		"DESIRED_STATUS": &c.DesiredStatus,
		"POLICY":         &c.Policy,
		"LISTEN_ADDR":    &c.ListenAddr,
		"DB_PATH":        &c.DBPath,
		"CDP_URL":        &c.CDPURL,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_FORMAT":     &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"INTERVAL":     &c.Interval,
		"CDP_RESCAN":   &c.CDPRescan,
		"HTTP_TIMEOUT": &c.HTTPTimeout,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s has invalid duration %q: %w", EnvPrefix, key, v, err)
		}
		*dst = parsed
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT has invalid integer %q: %w", EnvPrefix, v, err)
		}
		c.RateLimit = n
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// SeedSettings returns the configured domain and desired status. They only
// fill values the session store does not already hold.
func (c *Config) SeedSettings() model.Settings {
	return model.Settings{
		Domain:        c.Domain,
		DesiredStatus: model.Status(c.DesiredStatus),
	}
}

// ReassertPolicy returns the configured policy.
func (c *Config) ReassertPolicy() model.ReassertPolicy {
	return model.ReassertPolicy(c.Policy)
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
