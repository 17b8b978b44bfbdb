package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "classic", cfg.Theme)
	assert.NotEmpty(t, cfg.DataDir)
	assert.False(t, cfg.Debug)
	assert.Zero(t, cfg.QuotaBytes)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "data_dir: /tmp/packs\ntheme: neon\ndebug: true\nquota_bytes: 4096\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/packs", cfg.DataDir)
	assert.Equal(t, "neon", cfg.Theme)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 4096, cfg.QuotaBytes)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "classic", cfg.Theme)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
