package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lsp-server.toml")
	writeFile(t, path, `
workspace_root = "/srv/project"
log_level = "debug"
max_memory_warning_mb = 2048
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/project", cfg.WorkspaceRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2048, cfg.MaxMemoryWarningMB)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().DebounceMillis, cfg.DebounceMillis)
	assert.Equal(t, Default().BackgroundCheckConcurrency, cfg.BackgroundCheckConcurrency)
}

func TestConfig_DebounceDuration(t *testing.T) {
	cfg := Default()
	cfg.DebounceMillis = 250
	assert.Equal(t, int64(250), cfg.DebounceDuration().Milliseconds())
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}
