package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ReadsYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "system_mass: 92.5\neta: 0.95\nnodata_override: -32768\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 92.5, cfg.SystemMass)
	assert.Equal(t, 0.95, cfg.Eta)
	require.NotNil(t, cfg.NodataOverride)
	assert.Equal(t, -32768.0, *cfg.NodataOverride)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_RejectsNonPositiveMass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system_mass: 0\n"), 0o644))

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidMass)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
