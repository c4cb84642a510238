// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package config loads VolunteerHub configuration from defaults, a YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"strconv"
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
)

// EnvPrefix is the prefix for structured environment overrides.
// VOLUNTEERHUB_AUTH__JWT_SECRET maps to auth.jwt_secret.
const EnvPrefix = "VOLUNTEERHUB_"

// DevelopmentSecret is the signing secret used when none is configured.
// It is refused when env is production.
const DevelopmentSecret = "your-secret-key-change-in-production"

// EnvProduction is the env value that enables production checks.
const EnvProduction = "production"

// Config is the complete application configuration.
type Config struct {
	Env      string         `koanf:"env"`
	Log      LogConfig      `koanf:"log"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Payments PaymentsConfig `koanf:"payments"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HTTPConfig controls the public API server.
type HTTPConfig struct {
	Addr          string   `koanf:"addr"`
	CORSOrigins   []string `koanf:"cors_origins"`
	UploadsDir    string   `koanf:"uploads_dir"`
	PublicBaseURL string   `koanf:"public_base_url"`
	RateLimit     Limit    `koanf:"rate_limit"`
}

// MetricsConfig controls the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL            string   `koanf:"url"`
	ConnectTimeout Duration `koanf:"connect_timeout"`
	ConnectRetries uint64   `koanf:"connect_retries"`
	MaxConns       int32    `koanf:"max_conns"`
}

// AuthConfig holds credential and token settings.
type AuthConfig struct {
	JWTSecret  string   `koanf:"jwt_secret"`
	Issuer     string   `koanf:"issuer"`
	SessionTTL Duration `koanf:"session_ttl"`
	ResetTTL   Duration `koanf:"reset_ttl"`
	Hasher     string   `koanf:"hasher"`
	BcryptCost int      `koanf:"bcrypt_cost"`
}

// PaymentsConfig configures the donation gateway.
type PaymentsConfig struct {
	APIURL     string   `koanf:"api_url"`
	SecretKey  string   `koanf:"secret_key"`
	WebsiteURL string   `koanf:"website_url"`
	Timeout    Duration `koanf:"timeout"`
	RateLimit  Limit    `koanf:"rate_limit"`
}

// Limit is a token bucket budget.
type Limit struct {
	Burst     int     `koanf:"burst"`
	PerMinute float64 `koanf:"per_minute"`
}

// Defaults returns the built-in configuration values as a flat key map.
func Defaults() map[string]any {
	return map[string]any{
		"env":                            "development",
		"log.level":                      "info",
		"log.format":                     "json",
		"http.addr":                      ":5000",
		"http.cors_origins":              []string{"http://localhost:*", "http://127.0.0.1:*"},
		"http.uploads_dir":               "uploads",
		"http.public_base_url":           "http://localhost:5000",
		"http.rate_limit.burst":          120,
		"http.rate_limit.per_minute":     600.0,
		"metrics.addr":                   "127.0.0.1:9100",
		"database.connect_timeout":       "30s",
		"database.connect_retries":       5,
		"database.max_conns":             10,
		"auth.jwt_secret":                DevelopmentSecret,
		"auth.issuer":                    "volunteerhub",
		"auth.session_ttl":               "7d",
		"auth.reset_ttl":                 "30m",
		"auth.hasher":                    "bcrypt",
		"auth.bcrypt_cost":               10,
		"payments.api_url":               "https://a.khalti.com",
		"payments.website_url":           "http://localhost:5174",
		"payments.timeout":               "15s",
		"payments.rate_limit.burst":      30,
		"payments.rate_limit.per_minute": 30.0,
	}
}

// conventionalEnv maps well-known unprefixed variables to config keys.
var conventionalEnv = map[string]string{
	"DATABASE_URL":      "database.url",
	"JWT_SECRET":        "auth.jwt_secret",
	"JWT_EXPIRES_IN":    "auth.session_ttl",
	"KHALTI_API_URL":    "payments.api_url",
	"KHALTI_SECRET_KEY": "payments.secret_key",
	"WEBSITE_URL":       "payments.website_url",
	"NODE_ENV":          "env",
	"PORT":              "http.addr",
}

// FlagKeys maps command-line flag names to config keys. Only flags that were
// explicitly set override lower layers.
var FlagKeys = map[string]string{
	"env":          "env",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"uploads-dir":  "http.uploads_dir",
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an optional YAML file path.
	File string
	// Flags is an optional flag set; only changed flags named in FlagKeys apply.
	Flags *pflag.FlagSet
}

// Load builds a Config from defaults, file, environment and flags, then validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", opts.File).
				Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", conventionalEnvValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedEnvValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagValue), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func conventionalEnvValue(key, value string) (string, any) {
	target, ok := conventionalEnv[key]
	if !ok || value == "" {
		return "", nil
	}
	if key == "PORT" {
		return target, ":" + strings.TrimPrefix(value, ":")
	}
	return target, value
}

func prefixedEnvValue(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__", ".")
	if key == "http.cors_origins" {
		return key, strings.Split(value, ",")
	}
	return key, value
}

func flagValue(f *pflag.Flag) (string, any) {
	key, ok := FlagKeys[f.Name]
	if !ok || !f.Changed {
		return "", nil
	}
	return key, f.Value.String()
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log.format", c.Log.Format).
			Errorf("log.format must be 'json' or 'text'")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log.level", c.Log.Level).
			Errorf("log.level must be one of debug, info, warn, error")
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Auth.JWTSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.jwt_secret is required")
	}
	if c.IsProduction() && c.Auth.JWTSecret == DevelopmentSecret {
		return oops.Code("CONFIG_INSECURE_SECRET").
			Errorf("auth.jwt_secret must be overridden in production")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.ResetTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth token lifetimes must be positive")
	}
	switch c.Auth.Hasher {
	case "bcrypt", "argon2id":
	default:
		return oops.Code("CONFIG_INVALID").
			With("auth.hasher", c.Auth.Hasher).
			Errorf("auth.hasher must be 'bcrypt' or 'argon2id'")
	}
	for _, l := range []Limit{c.HTTP.RateLimit, c.Payments.RateLimit} {
		if l.Burst < 0 || l.PerMinute < 0 {
			return oops.Code("CONFIG_INVALID").Errorf("rate limits must not be negative")
		}
	}
	return nil
}

// IsProduction reports whether production checks apply.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Duration is a time.Duration that also accepts a day suffix ("7d") and bare
// seconds ("3600"), the forms JWT_EXPIRES_IN is commonly given in.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats the duration.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration parses "7d", "12h", "30m" or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, oops.Code("CONFIG_INVALID_DURATION").Errorf("empty duration")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, oops.Code("CONFIG_INVALID_DURATION").With("value", s).Wrap(err)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID_DURATION").With("value", s).Wrap(err)
	}
	return parsed, nil
}
