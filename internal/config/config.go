// Package config loads server settings from an optional YAML file, a .env
// file and HABITLY_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/habitly/internal/clock"
	"github.com/mmynk/habitly/internal/streak"
)

// Store kinds.
const (
	StoreSQLite    = "sqlite"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Auth providers.
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Config holds every server setting.
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	Store     string          `yaml:"store"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Firestore FirestoreConfig `yaml:"firestore"`

	Auth AuthConfig `yaml:"auth"`

	Timezone       string `yaml:"timezone"`
	StreakPolicy   string `yaml:"streak_policy"`
	UpdateRetries  int    `yaml:"update_retries"`
	InviteAttempts int    `yaml:"invite_attempts"`

	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins []string        `yaml:"allowed_origins"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type FirestoreConfig struct {
	ProjectID        string `yaml:"project_id"`
	CredentialsFile  string `yaml:"credentials_file"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

type AuthConfig struct {
	// Provider is "jwt" for locally signed tokens or "firebase" for
	// Firebase Authentication ID tokens.
	Provider  string        `yaml:"provider"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	// RPS of zero disables rate limiting.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Port:           8080,
		Store:          StoreSQLite,
		SQLite:         SQLiteConfig{Path: "./data/habitly.db"},
		Auth:           AuthConfig{Provider: AuthJWT, TokenTTL: 24 * time.Hour},
		Timezone:       "Local",
		StreakPolicy:   streak.PolicyStrict.String(),
		UpdateRetries:  5,
		InviteAttempts: 5,
		RateLimit:      RateLimitConfig{RPS: 10, Burst: 30},
		LogLevel:       "info",
	}
}

// Load reads path (skipped when empty), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// A missing .env file is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("HABITLY_HOST", &c.Host)
	str("HABITLY_STORE", &c.Store)
	str("HABITLY_SQLITE_PATH", &c.SQLite.Path)
	str("HABITLY_POSTGRES_URL", &c.Postgres.URL)
	str("HABITLY_FIRESTORE_PROJECT", &c.Firestore.ProjectID)
	str("HABITLY_FIRESTORE_CREDENTIALS", &c.Firestore.CredentialsFile)
	str("HABITLY_FIRESTORE_PREFIX", &c.Firestore.CollectionPrefix)
	str("HABITLY_AUTH_PROVIDER", &c.Auth.Provider)
	str("HABITLY_JWT_SECRET", &c.Auth.JWTSecret)
	str("HABITLY_TIMEZONE", &c.Timezone)
	str("HABITLY_STREAK_POLICY", &c.StreakPolicy)
	str("HABITLY_LOG_FILE", &c.LogFile)
	str("LOG_LEVEL", &c.LogLevel)

	for key, dst := range map[string]*int{
		"HABITLY_PORT":            &c.Port,
		"HABITLY_UPDATE_RETRIES":  &c.UpdateRetries,
		"HABITLY_INVITE_ATTEMPTS": &c.InviteAttempts,
		"HABITLY_RATE_BURST":      &c.RateLimit.Burst,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("HABITLY_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HABITLY_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = d
	}
	if v, ok := lookup("HABITLY_RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HABITLY_RATE_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	if v, ok := lookup("HABITLY_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	return nil
}

// Validate checks the settings needed to serve.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	switch c.Store {
	case StoreSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres url is required"))
		}
	case StoreFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore project id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	switch c.Auth.Provider {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("jwt secret is required"))
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, errors.New("token ttl must be positive"))
		}
	case AuthFirebase:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firebase auth needs the firestore project id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth provider %q", c.Auth.Provider))
	}

	if _, err := clock.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if _, err := streak.ParsePolicy(c.StreakPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.UpdateRetries < 0 {
		errs = append(errs, errors.New("update retries must not be negative"))
	}
	if c.InviteAttempts <= 0 {
		errs = append(errs, errors.New("invite attempts must be positive"))
	}
	if c.RateLimit.RPS < 0 || (c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit needs a positive burst"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Policy returns the parsed streak policy. Call Validate first.
func (c *Config) Policy() streak.Policy {
	p, _ := streak.ParsePolicy(c.StreakPolicy)
	return p
}
