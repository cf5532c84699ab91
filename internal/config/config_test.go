package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/habitly/internal/streak"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.JWTSecret = "secret"
	return cfg
}

func TestDefaultsNeedOnlyASecret(t *testing.T) {
	assert.Error(t, Default().Validate())
	assert.NoError(t, validConfig().Validate())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "habitly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
store: postgres
postgres:
  url: postgres://from-file
auth:
  jwt_secret: file-secret
  token_ttl: 2h
streak_policy: grace
allowed_origins: [app.example.com]
`), 0o600))

	t.Chdir(dir)
	t.Setenv("HABITLY_PORT", "9100")
	t.Setenv("HABITLY_POSTGRES_URL", "postgres://from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://from-env", cfg.Postgres.URL)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"app.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, streak.PolicyGraceDay, cfg.Policy())
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HABITLY_JWT_SECRET=dotenv-secret\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("HABITLY_JWT_SECRET", "")
	os.Unsetenv("HABITLY_JWT_SECRET")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Auth.JWTSecret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"HABITLY_STORE":             "firestore",
		"HABITLY_FIRESTORE_PROJECT": "demo",
		"HABITLY_TOKEN_TTL":         "30m",
		"HABITLY_RATE_RPS":          "2.5",
		"HABITLY_RATE_BURST":        "4",
		"HABITLY_ALLOWED_ORIGINS":   "a.example.com, b.example.com,",
		"LOG_LEVEL":                 "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, StoreFirestore, cfg.Store)
	assert.Equal(t, "demo", cfg.Firestore.ProjectID)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 4, cfg.RateLimit.Burst)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	for key, value := range map[string]string{
		"HABITLY_PORT":      "eighty",
		"HABITLY_TOKEN_TTL":         "forever",
		"HABITLY_RATE_RPS":          "fast",
	} {
		t.Run(key, func(t *testing.T) {
			err := Default().applyEnv(envMap(map[string]string{key: value}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"unknown store", func(c *Config) { c.Store = "mongo" }},
		{"postgres without url", func(c *Config) { c.Store = StorePostgres }},
		{"firestore without project", func(c *Config) { c.Store = StoreFirestore }},
		{"unknown auth", func(c *Config) { c.Auth.Provider = "saml" }},
		{"firebase auth without project", func(c *Config) { c.Auth.Provider = AuthFirebase }},
		{"no ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad policy", func(c *Config) { c.StreakPolicy = "lenient" }},
		{"negative retries", func(c *Config) { c.UpdateRetries = -1 }},
		{"no invite attempts", func(c *Config) { c.InviteAttempts = 0 }},
		{"rate without burst", func(c *Config) { c.RateLimit.Burst = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Addr())
	cfg.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}
