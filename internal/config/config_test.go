package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(100), cfg.Scan.Count)
	assert.Equal(t, int64(1000), cfg.Scan.HashFilterPageSize)
	assert.Empty(t, cfg.Servers)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
scan:
  count: 50
servers:
  - id: local
    url: redis://localhost:6379/0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(50), cfg.Scan.Count)
	// Not set in the file: defaults survive the unmarshal.
	assert.Equal(t, int64(100), cfg.Scan.HashPageSize)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, map[string]string{"local": "redis://localhost:6379/0"}, cfg.ServerURLs())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("ZEDIS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateRejectsDuplicateServerIDs(t *testing.T) {
	path := writeConfig(t, `
servers:
  - id: a
    url: redis://one
  - id: a
    url: redis://two
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "duplicate server id")
}

func TestValidateRejectsMissingURL(t *testing.T) {
	path := writeConfig(t, "servers:\n  - id: a\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "has no url")
}
