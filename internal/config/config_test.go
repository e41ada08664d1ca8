package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/config"
)

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := config.Load("/nonexistent/config.yaml", map[string]string{})
	require.NoError(t, err)
	require.Equal(t, config.BackendMemory, cfg.Backend.Kind)
	require.Equal(t, config.AuthNone, cfg.Auth.Mode)
	require.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	env := map[string]string{
		"QUEUEHUB_BACKEND_KIND": "relational",
		"QUEUEHUB_AUTH_MODE":    "restricted",
		"QUEUEHUB_LISTEN_ADDR":  ":9090",
		"QUEUEHUB_ADMIN_TOKEN":  "s3cret",
	}
	cfg, err := config.Load("/nonexistent/config.yaml", env)
	require.NoError(t, err)
	require.Equal(t, config.BackendRelational, cfg.Backend.Kind)
	require.Equal(t, config.AuthRestricted, cfg.Auth.Mode)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, "s3cret", cfg.Auth.AdminToken)
}

func TestWithDefaultPortAppliesOnlyWhenMissing(t *testing.T) {
	out := config.WithDefaultPort([]string{"redis-1", "redis-2:6380"}, "6379")
	require.Equal(t, []string{"redis-1:6379", "redis-2:6380"}, out)
}

func TestToSettingsStripsSecrets(t *testing.T) {
	cfg, err := config.Load("/nonexistent/config.yaml", map[string]string{
		"QUEUEHUB_TOKEN_SECRET": "super-secret",
	})
	require.NoError(t, err)

	settings := cfg.ToSettings()
	require.Equal(t, cfg.Backend.Kind, settings.BackendKind)
	require.Equal(t, cfg.Auth.Mode, settings.AuthMode)
}
