package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "none", cfg.Broker.Driver)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SHOPILENT_DATABASE_DRIVER", "sqlite")
	t.Setenv("SHOPILENT_DATABASE_DSN", "file::memory:")
	t.Setenv("SHOPILENT_OUTBOX_BATCH_SIZE", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("app:\n  port: \":9090\"\ncache:\n  driver: redis\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.App.Port)
	assert.Equal(t, "redis", cfg.Cache.Driver)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("SHOPILENT_BROKER_DRIVER", "carrier-pigeon")

	_, err := Load("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported broker driver")
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.JWT.Secret = "short"
	assert.Error(t, cfg.Validate())
}
