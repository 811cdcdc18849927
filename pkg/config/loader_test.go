package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/oidckit/pkg/config"
	"github.com/dmitrymomot/oidckit/pkg/redis"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

type appConfig struct {
	Addr     string               `env:"ADDR" envDefault:":8080" yaml:"addr"`
	Verbose  bool                 `env:"VERBOSE" yaml:"verbose"`
	Settings usermanager.Settings `envPrefix:"OIDC_" yaml:"oidc"`
	Redis    redis.Config         `yaml:"redis"`
}

type envFileConfig struct {
	Value    string `env:"CFGTEST_ENVFILE_VALUE"`
	Priority string `env:"CFGTEST_ENVFILE_PRIORITY"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		var cfg appConfig
		require.NoError(t, config.Load(&cfg, config.WithEnvironment(map[string]string{})))

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "openid", cfg.Settings.Scope)
		assert.True(t, cfg.Settings.FilterProtocolClaims)
		assert.Equal(t, 15*time.Minute, cfg.Settings.StaleStateAge)
		assert.Equal(t, []usermanager.TokenType{usermanager.TokenTypeAccess, usermanager.TokenTypeRefresh}, cfg.Settings.RevokeTokenTypes)
		assert.Equal(t, "oidc:", cfg.Redis.KeyPrefix)
		assert.Equal(t, 3, cfg.Redis.RetryAttempts)
		assert.Empty(t, cfg.Redis.ConnectionURL)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		var cfg appConfig
		require.NoError(t, config.Load(&cfg,
			config.WithYAMLFile("testdata/oidc.yaml"),
			config.WithEnvironment(map[string]string{}),
		))

		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, "https://yaml.example.com", cfg.Settings.Authority)
		assert.Equal(t, "yaml-client", cfg.Settings.ClientID)
		assert.Equal(t, "openid profile", cfg.Settings.Scope)
		assert.Equal(t, 5*time.Minute, cfg.Settings.StaleStateAge)
		assert.Equal(t, "query", cfg.Settings.ResponseMode)
		assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.ConnectionURL)
		assert.Equal(t, "test:", cfg.Redis.KeyPrefix)
		assert.NoError(t, cfg.Settings.Validate())
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		var cfg appConfig
		require.NoError(t, config.Load(&cfg,
			config.WithYAMLFile("testdata/oidc.yaml"),
			config.WithEnvironment(map[string]string{
				"OIDC_CLIENT_ID":   "env-client",
				"OIDC_SCOPE":       "openid email",
				"REDIS_KEY_PREFIX": "env:",
				"VERBOSE":          "true",
			}),
		))

		assert.Equal(t, "env-client", cfg.Settings.ClientID)
		assert.Equal(t, "openid email", cfg.Settings.Scope)
		assert.Equal(t, "https://yaml.example.com", cfg.Settings.Authority)
		assert.Equal(t, "env:", cfg.Redis.KeyPrefix)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, ":9000", cfg.Addr)
	})

	t.Run("prefix", func(t *testing.T) {
		var cfg appConfig
		require.NoError(t, config.Load(&cfg,
			config.WithPrefix("APP_"),
			config.WithEnvironment(map[string]string{
				"APP_ADDR":           ":7000",
				"APP_OIDC_AUTHORITY": "https://prefixed.example.com",
				"ADDR":               ":1",
			}),
		))

		assert.Equal(t, ":7000", cfg.Addr)
		assert.Equal(t, "https://prefixed.example.com", cfg.Settings.Authority)
	})

	t.Run("env files", func(t *testing.T) {
		t.Setenv("CFGTEST_ENVFILE_PRIORITY", "process")

		var cfg envFileConfig
		require.NoError(t, config.Load(&cfg, config.WithEnvFiles("testdata/.env.test")))
		assert.Equal(t, "from-file", cfg.Value)
		assert.Equal(t, "process", cfg.Priority)
	})

	t.Run("invalid env value", func(t *testing.T) {
		var cfg appConfig
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{"VERBOSE": "sometimes"}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("missing files", func(t *testing.T) {
		var cfg appConfig
		assert.ErrorIs(t, config.Load(&cfg, config.WithYAMLFile("testdata/missing.yaml")), config.ErrReadingFile)
		assert.ErrorIs(t, config.Load(&cfg, config.WithEnvFiles("testdata/.env.missing")), config.ErrReadingFile)
	})

	t.Run("broken yaml", func(t *testing.T) {
		var cfg appConfig
		err := config.Load(&cfg, config.WithYAMLFile("testdata/broken.yaml"))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[appConfig](nil), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	var cfg appConfig
	assert.Panics(t, func() {
		config.MustLoad(&cfg, config.WithYAMLFile("testdata/missing.yaml"))
	})
	assert.NotPanics(t, func() {
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{}))
	})
}
