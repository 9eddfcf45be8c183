package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "trello", cfg.Source.Kind)
	assert.Equal(t, 3, cfg.Source.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Source.Retry.InitialBackoffMS)
	assert.Equal(t, 30000, cfg.Source.Retry.MaxBackoffMS)
	assert.InDelta(t, 2.0, cfg.Source.Retry.Multiplier, 0.001)
	assert.InDelta(t, 0.25, cfg.Source.Retry.JitterFraction, 0.001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cardmap.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.InDelta(t, 1.0, cfg.Geocode.RatePerSec, 0.001)
	assert.Equal(t, 1, cfg.Geocode.MaxResults)
	assert.Equal(t, 720, cfg.Geocode.CacheTTLHours)
	assert.Equal(t, 1100, cfg.Enrich.DelayMS)
	assert.True(t, cfg.Enrich.Persist)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
source:
  kind: notion
  board: db-123
store:
  driver: postgres
  database_url: postgres://localhost/cardmap
log:
  level: debug
  format: console
server:
  port: 9090
enrich:
  delay_ms: 250
geocode:
  max_results: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "notion", cfg.Source.Kind)
	assert.Equal(t, "db-123", cfg.Source.Board)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/cardmap", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Enrich.DelayMS)
	assert.Equal(t, 3, cfg.Geocode.MaxResults)
	// Defaults still apply for unset values
	assert.Equal(t, 720, cfg.Geocode.CacheTTLHours)
	assert.True(t, cfg.Enrich.Persist)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CARDMAP_STORE_DRIVER", "postgres")
	t.Setenv("CARDMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CARDMAP_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadEnvCredentials(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CARDMAP_TRELLO_KEY", "k-1")
	t.Setenv("CARDMAP_TRELLO_TOKEN", "t-1")
	t.Setenv("CARDMAP_SOURCE_BOARD", "board-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "k-1", cfg.Trello.Key)
	assert.Equal(t, "t-1", cfg.Trello.Token)
	assert.Equal(t, "board-1", cfg.Source.Board)
}

func TestLoadCustomGroups(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
source:
  kind: trello
  board: board-1
  groups:
    - id: field
      name: Field Work
      category_ids: [list-1, list-2]
      default_visible: true
    - id: office
      category_ids: [list-3]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Source.Groups, 2)
	assert.Equal(t, "field", cfg.Source.Groups[0].ID)
	assert.Equal(t, "Field Work", cfg.Source.Groups[0].Name)
	assert.Equal(t, []string{"list-1", "list-2"}, cfg.Source.Groups[0].CategoryIDs)
	assert.True(t, cfg.Source.Groups[0].DefaultVisible)
	assert.Equal(t, "office", cfg.Source.Groups[1].ID)
	assert.False(t, cfg.Source.Groups[1].DefaultVisible)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.Kind = "trello"
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "cardmap.db"
	cfg.Geocode.RatePerSec = 1.0
	cfg.Geocode.MaxResults = 1
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Trello.Key = "k-1"
	cfg.Trello.Token = "t-1"
	cfg.Source.Board = "board-1"

	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_MissingCredentials(t *testing.T) {
	cfg := validDefaults()
	// All source-required fields are empty

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "trello.key is required")
	assert.Contains(t, err.Error(), "trello.token is required")
	assert.Contains(t, err.Error(), "source.board is required")
}

func TestValidateNotionSource(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Kind = "notion"
	cfg.Source.Board = "db-123"
	cfg.Notion.Token = "ntn_token"

	assert.NoError(t, cfg.Validate("run"))

	cfg.Notion.Token = ""
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
}

func TestValidateUnknownSourceKind(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Kind = "jira"
	cfg.Source.Board = "board-1"

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "source.kind must be trello or notion")
}

func TestValidateStatus_StoreOnly(t *testing.T) {
	cfg := validDefaults()
	// No board credentials needed to inspect the store

	assert.NoError(t, cfg.Validate("status"))
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/cardmap"
	assert.NoError(t, cfg.Validate("status"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Trello.Key = "k-1"
	cfg.Trello.Token = "t-1"
	cfg.Source.Board = "board-1"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateGeocodeBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Geocode.RatePerSec = 0
	err := cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.rate_per_sec must be > 0")

	cfg.Geocode.RatePerSec = 1.0
	cfg.Geocode.MaxResults = 0
	err = cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.max_results must be between 1 and 50")

	cfg.Geocode.MaxResults = 51
	err = cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.max_results must be between 1 and 50")

	cfg.Geocode.MaxResults = 50
	assert.NoError(t, cfg.Validate("status"))
}

func TestValidateDelayNonNegative(t *testing.T) {
	cfg := validDefaults()
	cfg.Enrich.DelayMS = -1

	err := cfg.Validate("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.delay_ms must be >= 0")
}

func TestValidateCustomGroups(t *testing.T) {
	cfg := validDefaults()
	cfg.Trello.Key = "k-1"
	cfg.Trello.Token = "t-1"
	cfg.Source.Board = "board-1"
	cfg.Source.Groups = []GroupConfig{
		{ID: "field", CategoryIDs: []string{"list-1"}},
	}

	assert.NoError(t, cfg.Validate("run"))

	cfg.Source.Groups = append(cfg.Source.Groups, GroupConfig{Name: "No ID"})
	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "source.groups[1].id is required")
	assert.Contains(t, err.Error(), "source.groups[1].category_ids is required")
}

func TestRetryConfigBuild(t *testing.T) {
	zero := RetryConfig{}
	built := zero.Build()
	assert.Equal(t, 3, built.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, built.InitialBackoff)
	assert.Equal(t, 30*time.Second, built.MaxBackoff)
	assert.InDelta(t, 2.0, built.Multiplier, 0.001)
	assert.InDelta(t, 0.25, built.JitterFraction, 0.001)

	full := RetryConfig{
		MaxAttempts:      5,
		InitialBackoffMS: 100,
		MaxBackoffMS:     2000,
		Multiplier:       3.0,
		JitterFraction:   0.5,
	}
	built = full.Build()
	assert.Equal(t, 5, built.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, built.InitialBackoff)
	assert.Equal(t, 2*time.Second, built.MaxBackoff)
	assert.InDelta(t, 3.0, built.Multiplier, 0.001)
	assert.InDelta(t, 0.5, built.JitterFraction, 0.001)
}
