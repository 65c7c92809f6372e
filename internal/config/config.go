// Package config loads archscore configuration from YAML and ARCHSCORE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig selects the snapshot backend: memory, file, sqlite or neo4j.
// Path is used by file and sqlite; URI and credentials by neo4j.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type RangeConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

type RangesConfig struct {
	Nodes RangeConfig `mapstructure:"nodes"`
	Edges RangeConfig `mapstructure:"edges"`
	Depth RangeConfig `mapstructure:"depth"`
}

type WeightsConfig struct {
	Patterns       float64 `mapstructure:"patterns"`
	Complexity     float64 `mapstructure:"complexity"`
	BestPractices  float64 `mapstructure:"best_practices"`
	CriticalIssues float64 `mapstructure:"critical_issues"`
}

// ScoringConfig tunes the scoring engine. Zero values keep the engine
// defaults.
type ScoringConfig struct {
	RegistryPath            string             `mapstructure:"registry_path"`
	RecommendationThreshold float64            `mapstructure:"recommendation_threshold"`
	DensityThreshold        float64            `mapstructure:"density_threshold"`
	TrendWindow             int                `mapstructure:"trend_window"`
	StrictDiagramType       bool               `mapstructure:"strict_diagram_type"`
	Weights                 *WeightsConfig     `mapstructure:"weights"`
	CategoryWeights         map[string]float64 `mapstructure:"category_weights"`
	Ranges                  *RangesConfig      `mapstructure:"ranges"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type VectorConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	OutputPath string `mapstructure:"output_path"`
}

type SecretsConfig struct {
	Provider  string `mapstructure:"provider"`
	FilePath  string `mapstructure:"file_path"`
	EnvPrefix string `mapstructure:"env_prefix"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080", ReadTimeout: 10 * time.Second, WriteTimeout: 30 * time.Second},
		Store:  StoreConfig{Backend: "sqlite", Path: ".archscore/snapshots.db"},
		Scoring: ScoringConfig{
			TrendWindow: 3,
		},
		LLM:      LLMConfig{Provider: "none", Timeout: time.Minute, MaxRetries: 2},
		Vector:   VectorConfig{Host: "localhost", Port: 6334, Collection: "archscore_designs"},
		Temporal: TemporalConfig{Host: "localhost:7233", Namespace: "default", TaskQueue: "archscore"},
		Tracing:  TracingConfig{ServiceName: "archscore", Environment: "development", SampleRate: 1},
		Audit:    AuditConfig{OutputPath: "stderr"},
		Secrets:  SecretsConfig{Provider: "env", EnvPrefix: "ARCHSCORE_"},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("scoring.trend_window", d.Scoring.TrendWindow)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)
	v.SetDefault("vector.host", d.Vector.Host)
	v.SetDefault("vector.port", d.Vector.Port)
	v.SetDefault("vector.collection", d.Vector.Collection)
	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.environment", d.Tracing.Environment)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("audit.output_path", d.Audit.OutputPath)
	v.SetDefault("secrets.provider", d.Secrets.Provider)
	v.SetDefault("secrets.env_prefix", d.Secrets.EnvPrefix)
	// keys without defaults still need an env binding for Unmarshal
	for _, k := range []string{"llm.api_key", "llm.model", "llm.base_url", "store.uri", "store.username", "store.password", "tracing.endpoint", "vector.enabled", "audit.enabled", "secrets.file_path", "scoring.registry_path"} {
		_ = v.BindEnv(k)
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Store.Backend {
	case "", "memory", "file", "sqlite", "neo4j":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown store backend %q, falling back to memory", c.Store.Backend))
	}
	if (c.Store.Backend == "file" || c.Store.Backend == "sqlite") && c.Store.Path == "" {
		warnings = append(warnings, fmt.Sprintf("store backend %s needs store.path", c.Store.Backend))
	}
	if c.Store.Backend == "neo4j" && c.Store.URI == "" {
		warnings = append(warnings, "store backend neo4j needs store.uri")
	}

	if c.LLM.Provider != "" && c.LLM.Provider != "none" && c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}

	if w := c.Scoring.Weights; w != nil {
		sum := w.Patterns + w.Complexity + w.BestPractices + w.CriticalIssues
		if math.Abs(sum-1) > 1e-6 {
			warnings = append(warnings, fmt.Sprintf("scoring weights sum to %.2f, not 1", sum))
		}
	}
	if c.Scoring.TrendWindow != 0 && c.Scoring.TrendWindow < 2 {
		warnings = append(warnings, fmt.Sprintf("scoring.trend_window %d is below 2, using 3", c.Scoring.TrendWindow))
	}
	if t := c.Scoring.RecommendationThreshold; t < 0 || t > 1 {
		warnings = append(warnings, fmt.Sprintf("scoring.recommendation_threshold %.2f is outside [0, 1]", t))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing.sample_rate %.2f is outside [0, 1]", c.Tracing.SampleRate))
	}
	return warnings
}

// Load reads configuration from path and the environment. An empty path
// or a missing file loads defaults and environment only. Warnings are printed to stderr.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	for _, warning := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
	return &cfg, nil
}
