package config_test

import (
	"testing"

	"github.com/nebula-core/nebula/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_RequiresPasswordOutsideLocalInsecure covers the
// "password mandatory" requirement: without NEBULA_LOCAL_INSECURE set,
// a missing store password is a startup error, not a silent default.
func TestLoad_RequiresPasswordOutsideLocalInsecure(t *testing.T) {
	t.Setenv("NEBULA_STORE_PASSWORD", "")
	t.Setenv("NEBULA_LOCAL_INSECURE", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NEBULA_STORE_PASSWORD", "dev-secret")
	t.Setenv("NEBULA_PORT", "")
	t.Setenv("NEBULA_LOG_LEVEL", "")
	t.Setenv("NEBULA_BOOTSTRAP_ENABLED", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.BootstrapEnabled)
	assert.Contains(t, cfg.DSN(), "localhost")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NEBULA_STORE_PASSWORD", "s3cret")
	t.Setenv("NEBULA_PORT", "9090")
	t.Setenv("NEBULA_LOG_LEVEL", "DEBUG")
	t.Setenv("NEBULA_STORE_HOST", "db.internal")
	t.Setenv("NEBULA_BOOTSTRAP_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.False(t, cfg.BootstrapEnabled)
	assert.Contains(t, cfg.DSN(), "db.internal")
}

// TestLoad_LocalInsecureRefusedOutsideDev is the flag's own safety
// rail: NEBULA_LOCAL_INSECURE must not silently work in a non-dev
// NEBULA_ENV.
func TestLoad_LocalInsecureRefusedOutsideDev(t *testing.T) {
	t.Setenv("NEBULA_STORE_PASSWORD", "")
	t.Setenv("NEBULA_LOCAL_INSECURE", "true")
	t.Setenv("NEBULA_ENV", "prod")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_LocalInsecureAllowedInDev(t *testing.T) {
	t.Setenv("NEBULA_STORE_PASSWORD", "")
	t.Setenv("NEBULA_LOCAL_INSECURE", "true")
	t.Setenv("NEBULA_ENV", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.LocalInsecure)
}
