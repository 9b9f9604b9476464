package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, "/var/lib/rocker", cfg.DataDir)
	require.Equal(t, "rocker0", cfg.BridgeName)
	require.Equal(t, "172.28.0.1/16", cfg.BridgeCIDR)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rocker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/rocker-test\nbridge_name: br-test\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/rocker-test", cfg.DataDir)
	require.Equal(t, "br-test", cfg.BridgeName)
	require.Equal(t, "172.28.0.1/16", cfg.BridgeCIDR)
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rocker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/rocker-test\n"), 0644))

	t.Setenv("ROCKER_DATA_DIR", "/tmp/from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env", cfg.DataDir)
}
