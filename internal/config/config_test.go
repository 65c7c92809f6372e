package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_Default(t *testing.T) {
	if warnings := Default().Validate(); len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "openai"}}
	if !hasWarning(cfg.Validate(), "api_key") {
		t.Error("expected warning about missing api_key")
	}
}

func TestValidate_NoneAndOllamaProviders(t *testing.T) {
	for _, p := range []string{"none", "ollama"} {
		cfg := &Config{LLM: LLMConfig{Provider: p}}
		if hasWarning(cfg.Validate(), "api_key") {
			t.Errorf("provider %q should not require api_key", p)
		}
	}
}

func TestValidate_Store(t *testing.T) {
	tests := []struct {
		name  string
		store StoreConfig
		want  string
	}{
		{"unknown", StoreConfig{Backend: "redis"}, "unknown store backend"},
		{"sqlite_no_path", StoreConfig{Backend: "sqlite"}, "store.path"},
		{"file_no_path", StoreConfig{Backend: "file"}, "store.path"},
		{"neo4j_no_uri", StoreConfig{Backend: "neo4j"}, "store.uri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: tt.store}
			if !hasWarning(cfg.Validate(), tt.want) {
				t.Errorf("expected warning containing %q", tt.want)
			}
		})
	}
}

func TestValidate_Weights(t *testing.T) {
	cfg := &Config{Scoring: ScoringConfig{Weights: &WeightsConfig{Patterns: 0.5, Complexity: 0.5, BestPractices: 0.5}}}
	if !hasWarning(cfg.Validate(), "weights sum") {
		t.Error("expected weight sum warning")
	}

	cfg.Scoring.Weights = &WeightsConfig{Patterns: 0.3, Complexity: 0.2, BestPractices: 0.3, CriticalIssues: 0.2}
	if hasWarning(cfg.Validate(), "weights sum") {
		t.Error("weights summing to 1 should not warn")
	}
}

func TestValidate_TrendWindowAndThresholds(t *testing.T) {
	cfg := &Config{
		Scoring: ScoringConfig{TrendWindow: 1, RecommendationThreshold: 1.5},
		Tracing: TracingConfig{SampleRate: -0.1},
	}
	warnings := cfg.Validate()
	for _, want := range []string{"trend_window", "recommendation_threshold", "sample_rate"} {
		if !hasWarning(warnings, want) {
			t.Errorf("expected warning containing %q, got %v", want, warnings)
		}
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Default()
	if cfg.Store.Backend != d.Store.Backend {
		t.Errorf("store backend = %q, want %q", cfg.Store.Backend, d.Store.Backend)
	}
	if cfg.Scoring.TrendWindow != 3 {
		t.Errorf("trend window = %d, want 3", cfg.Scoring.TrendWindow)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archscore.yaml")
	content := `
store:
  backend: file
  path: /tmp/snapshots
scoring:
  trend_window: 5
  recommendation_threshold: 0.6
  weights:
    patterns: 0.4
    complexity: 0.2
    best_practices: 0.2
    critical_issues: 0.2
  category_weights:
    scalability: 2
  ranges:
    nodes: {min: 2, max: 30}
llm:
  provider: ollama
  timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "file" || cfg.Store.Path != "/tmp/snapshots" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Scoring.TrendWindow != 5 {
		t.Errorf("trend window = %d, want 5", cfg.Scoring.TrendWindow)
	}
	if cfg.Scoring.Weights == nil || cfg.Scoring.Weights.Patterns != 0.4 {
		t.Errorf("weights = %+v", cfg.Scoring.Weights)
	}
	if cfg.Scoring.CategoryWeights["scalability"] != 2 {
		t.Errorf("category weights = %v", cfg.Scoring.CategoryWeights)
	}
	if cfg.Scoring.Ranges == nil || cfg.Scoring.Ranges.Nodes.Max != 30 {
		t.Errorf("ranges = %+v", cfg.Scoring.Ranges)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("llm timeout = %v", cfg.LLM.Timeout)
	}
	// untouched sections keep defaults
	if cfg.Temporal.TaskQueue != "archscore" {
		t.Errorf("task queue = %q", cfg.Temporal.TaskQueue)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARCHSCORE_STORE_BACKEND", "memory")
	t.Setenv("ARCHSCORE_LLM_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
