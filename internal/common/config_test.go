package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, 48*time.Hour, cfg.DevSkiller.CookieTTL)
	assert.Equal(t, "0 */12 * * *", cfg.DevSkiller.RefreshSchedule)
	assert.Equal(t, 5*time.Minute, cfg.Queue.JobTimeout)
	assert.Equal(t, 3, cfg.Queue.MaxReceive)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 300*time.Second, cfg.Docling.DefaultTimeout)
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"

[server]
port = 9090

[queue]
concurrency = 8
`), 0o644))

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Queue.Concurrency)
	// Untouched sections keep their defaults
	assert.Equal(t, "https://app.devskiller.com", cfg.DevSkiller.BaseURL)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.toml")
	second := filepath.Join(dir, "second.toml")
	require.NoError(t, os.WriteFile(first, []byte("[server]\nport = 1000\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("[server]\nport = 2000\n"), 0o644))

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Server.Port)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/hub.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HUB_SERVER_PORT", "7777")
	t.Setenv("HUB_API_KEY", "env-secret")
	t.Setenv("DEVSKILLER_USERNAME", "user@example.com")
	t.Setenv("DEVSKILLER_PASSWORD", "hunter2")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.APIKey)
	assert.Equal(t, "user@example.com", cfg.DevSkiller.Username)
	assert.Equal(t, "hunter2", cfg.DevSkiller.Password)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := DefaultConfig()

	ApplyFlagOverrides(cfg, 4444, "0.0.0.0")
	assert.Equal(t, 4444, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Zero values leave config untouched
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 4444, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestValidationRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[queue]
concurrency = 0
`), 0o644))

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}
