package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cardmap/cardmap-cli/internal/resilience"
	"github.com/cardmap/cardmap-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Trello  TrelloConfig  `yaml:"trello" mapstructure:"trello"`
	Notion  NotionConfig  `yaml:"notion" mapstructure:"notion"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Markers MarkersConfig `yaml:"markers" mapstructure:"markers"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourceConfig selects the board backend and the board to load.
type SourceConfig struct {
	Kind   string        `yaml:"kind" mapstructure:"kind"`
	Board  string        `yaml:"board" mapstructure:"board"`
	Groups []GroupConfig `yaml:"groups" mapstructure:"groups"`
	Retry  RetryConfig   `yaml:"retry" mapstructure:"retry"`
}

// GroupConfig defines one custom visibility group. When any groups are
// configured they replace the board-derived one-group-per-list layout.
type GroupConfig struct {
	ID             string   `yaml:"id" mapstructure:"id"`
	Name           string   `yaml:"name" mapstructure:"name"`
	CategoryIDs    []string `yaml:"category_ids" mapstructure:"category_ids"`
	DefaultVisible bool     `yaml:"default_visible" mapstructure:"default_visible"`
}

// RetryConfig tunes the retry wrapper around the initial board fetch.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Build converts the values to a resilience.RetryConfig. Zero fields
// keep the package defaults.
func (r RetryConfig) Build() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMS > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffMS) * time.Millisecond
	}
	if r.MaxBackoffMS > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffMS) * time.Millisecond
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.JitterFraction > 0 {
		cfg.JitterFraction = r.JitterFraction
	}
	return cfg
}

// TrelloConfig holds Trello API credentials.
type TrelloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotionConfig holds the Notion API token and property name overrides.
type NotionConfig struct {
	Token string            `yaml:"token" mapstructure:"token"`
	Props NotionPropsConfig `yaml:"props" mapstructure:"props"`
}

// NotionPropsConfig renames the database properties the source reads
// and writes. Empty fields keep the default schema.
type NotionPropsConfig struct {
	Title     string `yaml:"title" mapstructure:"title"`
	Desc      string `yaml:"desc" mapstructure:"desc"`
	Category  string `yaml:"category" mapstructure:"category"`
	Labels    string `yaml:"labels" mapstructure:"labels"`
	Done      string `yaml:"done" mapstructure:"done"`
	Template  string `yaml:"template" mapstructure:"template"`
	Latitude  string `yaml:"latitude" mapstructure:"latitude"`
	Longitude string `yaml:"longitude" mapstructure:"longitude"`
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxResults    int     `yaml:"max_results" mapstructure:"max_results"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// EnrichConfig tunes the enrichment queue.
type EnrichConfig struct {
	DelayMS int  `yaml:"delay_ms" mapstructure:"delay_ms"`
	Persist bool `yaml:"persist" mapstructure:"persist"`
}

// MarkersConfig points at an optional icon rules file.
type MarkersConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	APIKey         string   `yaml:"api_key" mapstructure:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CARDMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.kind", "trello")
	v.SetDefault("source.retry.max_attempts", 3)
	v.SetDefault("source.retry.initial_backoff_ms", 500)
	v.SetDefault("source.retry.max_backoff_ms", 30000)
	v.SetDefault("source.retry.multiplier", 2.0)
	v.SetDefault("source.retry.jitter_fraction", 0.25)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "cardmap.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "cardmap-cli/1.0 (github.com/cardmap/cardmap-cli)")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.max_results", 1)
	v.SetDefault("geocode.cache_ttl_hours", 720)
	v.SetDefault("enrich.delay_ms", 1100)
	v.SetDefault("enrich.persist", true)

	// Credential keys get empty defaults so environment variables bind
	// without a config file entry.
	v.SetDefault("source.board", "")
	v.SetDefault("trello.key", "")
	v.SetDefault("trello.token", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("server.api_key", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete for the given
// command mode. Missing values are reported together so one run shows
// everything that has to be fixed.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Geocode.RatePerSec <= 0 {
		problems = append(problems, "geocode.rate_per_sec must be > 0")
	}
	if c.Geocode.MaxResults < 1 || c.Geocode.MaxResults > 50 {
		problems = append(problems, "geocode.max_results must be between 1 and 50")
	}
	if c.Enrich.DelayMS < 0 {
		problems = append(problems, "enrich.delay_ms must be >= 0")
	}

	switch mode {
	case "run", "export", "groups":
		problems = append(problems, c.sourceProblems()...)
	case "serve":
		problems = append(problems, c.sourceProblems()...)
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "status":
		// Reads the store only.
	default:
		return eris.Errorf("unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) sourceProblems() []string {
	var problems []string
	switch c.Source.Kind {
	case "trello":
		if c.Trello.Key == "" {
			problems = append(problems, "trello.key is required")
		}
		if c.Trello.Token == "" {
			problems = append(problems, "trello.token is required")
		}
	case "notion":
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
	default:
		problems = append(problems, "source.kind must be trello or notion")
	}
	if c.Source.Board == "" {
		problems = append(problems, "source.board is required")
	}
	for i, g := range c.Source.Groups {
		if g.ID == "" {
			problems = append(problems, fmt.Sprintf("source.groups[%d].id is required", i))
		}
		if len(g.CategoryIDs) == 0 {
			problems = append(problems, fmt.Sprintf("source.groups[%d].category_ids is required", i))
		}
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
