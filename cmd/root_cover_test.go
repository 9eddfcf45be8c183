//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// preRunInDir runs the root PersistentPreRunE from a temp working
// directory seeded with the given config.yaml. Empty content means no
// config file at all. The package-level cfg is reset first and
// restored when the test ends.
func preRunInDir(t *testing.T, content string) error {
	t.Helper()

	tmpDir := t.TempDir()
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(content), 0o644))
	}

	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	oldCfg := cfg
	cfg = nil
	t.Cleanup(func() { cfg = oldCfg })

	return rootCmd.PersistentPreRunE(rootCmd, nil)
}

func TestRootCmd_PreRunLoadsConfigFile(t *testing.T) {
	err := preRunInDir(t, `
store:
  driver: sqlite
  path: cards.db
log:
  level: info
  format: console
`)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cards.db", cfg.Store.Path)
}

func TestRootCmd_PreRunDefaultsWithoutConfigFile(t *testing.T) {
	err := preRunInDir(t, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "trello", cfg.Source.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestRootCmd_PreRunEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CARDMAP_SOURCE_KIND", "notion")

	err := preRunInDir(t, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "notion", cfg.Source.Kind)
}

func TestRootCmd_PreRunRejectsBadLogLevel(t *testing.T) {
	err := preRunInDir(t, `
log:
  level: NOT_A_LEVEL
  format: console
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRootCmd_PreRunRejectsMalformedYAML(t *testing.T) {
	err := preRunInDir(t, "invalid: [yaml: bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRootCmd_PostRunSyncsLogger(t *testing.T) {
	// PersistentPostRun calls zap.L().Sync() and must tolerate a bare logger.
	assert.NotPanics(t, func() {
		rootCmd.PersistentPostRun(rootCmd, nil)
	})
}
