package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig selects and parametrizes the graph/vector backend.
type DatabaseConfig struct {
	// Backend is "memory" or "postgres".
	Backend        string        `mapstructure:"backend" yaml:"backend"`
	DSN            string        `mapstructure:"dsn" yaml:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// ServerConfig parametrizes the HTTP API layer.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// EngineConfig exposes the tunable constants of the resolution engine. None
// of the defaults are load-bearing; every threshold may be overridden per
// deployment.
type EngineConfig struct {
	// MaxSteps caps path length when a request doesn't specify one.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// UnseenEdgePrior is the assumed success rate of a never-observed edge
	// during search, so unexplored routes stay finite-cost without looking
	// reliable.
	UnseenEdgePrior float64 `mapstructure:"unseen_edge_prior" yaml:"unseen_edge_prior"`
	// SimilarityFloor rejects intent matches scoring below it.
	SimilarityFloor float64 `mapstructure:"similarity_floor" yaml:"similarity_floor"`
	// AlternativeCostFactor bounds alternatives to factor x best cost.
	AlternativeCostFactor float64 `mapstructure:"alternative_cost_factor" yaml:"alternative_cost_factor"`
	// MaxAlternatives caps how many distinct alternatives are searched for.
	MaxAlternatives int `mapstructure:"max_alternatives" yaml:"max_alternatives"`

	// Locator signal weights. Title dominates when present.
	TitleWeight     float64 `mapstructure:"title_weight" yaml:"title_weight"`
	StructureWeight float64 `mapstructure:"structure_weight" yaml:"structure_weight"`
	SemanticWeight  float64 `mapstructure:"semantic_weight" yaml:"semantic_weight"`
	// MatchThreshold accepts the best candidate; MatchFloor keeps weaker
	// candidates in the result for the caller to judge.
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`
	MatchFloor     float64 `mapstructure:"match_floor" yaml:"match_floor"`

	// RetrievalTopK is the default page fan-out for context assembly.
	RetrievalTopK int `mapstructure:"retrieval_top_k" yaml:"retrieval_top_k"`
	// HistoryCap bounds the in-memory case log.
	HistoryCap int `mapstructure:"history_cap" yaml:"history_cap"`
	// HistoryPerPolarity caps cases of each polarity in one bundle.
	HistoryPerPolarity int `mapstructure:"history_per_polarity" yaml:"history_per_polarity"`
	// SuggestionConfidence gates suggested_actions in retrieval bundles.
	SuggestionConfidence float64 `mapstructure:"suggestion_confidence" yaml:"suggestion_confidence"`
}

// EmbeddingConfig selects the embedder implementation.
type EmbeddingConfig struct {
	// Provider is "hashing" or "hugot".
	Provider string `mapstructure:"provider" yaml:"provider"`
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir"`
	Dim      int    `mapstructure:"dim" yaml:"dim"`
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfinder")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)

	v.SetDefault("database.backend", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.connect_timeout", 10*time.Second)

	v.SetDefault("server.addr", ":8474")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("engine.max_steps", 10)
	v.SetDefault("engine.unseen_edge_prior", 0.5)
	v.SetDefault("engine.similarity_floor", 0.35)
	v.SetDefault("engine.alternative_cost_factor", 2.0)
	v.SetDefault("engine.max_alternatives", 2)
	v.SetDefault("engine.title_weight", 0.6)
	v.SetDefault("engine.structure_weight", 0.25)
	v.SetDefault("engine.semantic_weight", 0.15)
	v.SetDefault("engine.match_threshold", 0.55)
	v.SetDefault("engine.match_floor", 0.25)
	v.SetDefault("engine.retrieval_top_k", 5)
	v.SetDefault("engine.history_cap", 256)
	v.SetDefault("engine.history_per_polarity", 3)
	v.SetDefault("engine.suggestion_confidence", 0.4)

	v.SetDefault("embedding.provider", "hashing")
	v.SetDefault("embedding.model_dir", "./models")
	v.SetDefault("embedding.dim", 384)
}

// NewDefaultConfig returns a Config populated purely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of in-process defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration from an optional file plus WAYFINDER_* environment
// variables, on top of the defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WAYFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}

	switch c.Embedding.Provider {
	case "hashing", "hugot":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	if c.Engine.UnseenEdgePrior <= 0 || c.Engine.UnseenEdgePrior > 1 {
		return fmt.Errorf("engine.unseen_edge_prior must be in (0, 1], got %v", c.Engine.UnseenEdgePrior)
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be positive, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.MatchFloor > c.Engine.MatchThreshold {
		return fmt.Errorf("engine.match_floor (%v) must not exceed engine.match_threshold (%v)",
			c.Engine.MatchFloor, c.Engine.MatchThreshold)
	}
	return nil
}
