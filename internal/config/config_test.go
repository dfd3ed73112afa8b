package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "rangeshift.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "EPSG:32611", cfg.Ingest.Frame)
	assert.Equal(t, "2006-01-02 15:04:05", cfg.Ingest.TimestampLayout)
	assert.Equal(t, "animal_id", cfg.Ingest.Columns.AnimalID)
	assert.Equal(t, "utm_e", cfg.Ingest.Columns.X)
	assert.Equal(t, "POP_NAME", cfg.Ranges.PopulationField)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RANGESHIFT_STORE_DRIVER", "postgres")
	t.Setenv("RANGESHIFT_INGEST_FRAME", "EPSG:32612")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "EPSG:32612", cfg.Ingest.Frame)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
