package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30, cfg.Analysis.HTTPTimeoutSeconds)
	assert.Equal(t, "warning", cfg.Analysis.UnsupportedVersionSeverity)
	assert.False(t, cfg.Logging.DebugMode)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store.DatabasePath, cfg.Store.DatabasePath)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Execution.OutputDirectory = "/tmp/runs"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs", loaded.Execution.OutputDirectory)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WDLCORE_STORE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("WDLCORE_LOGGING_DEBUG_MODE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/custom/path.db", cfg.Store.DatabasePath)
	assert.True(t, cfg.Logging.DebugMode)

	os.Unsetenv("WDLCORE_STORE_DATABASE_PATH")
	os.Unsetenv("WDLCORE_LOGGING_DEBUG_MODE")
}
