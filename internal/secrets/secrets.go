// Package secrets resolves credentials from the environment or a JSON file
// when the configuration file leaves them empty.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/efebarandurmaz/archscore/internal/config"
)

// Keys resolved by Resolve.
const (
	SecretLLMAPIKey     = "llm_api_key"
	SecretStorePassword = "store_password"
)

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Manager looks up secrets in a primary provider, then the environment.
// Found values are cached.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager builds a manager from the secrets section of the config.
func NewManager(cfg config.SecretsConfig) (*Manager, error) {
	env := NewEnvProvider(cfg.EnvPrefix)

	var primary Provider
	switch cfg.Provider {
	case "file":
		fp, err := NewFileProvider(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		primary = fp
	case "env", "":
		primary = env
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	m := &Manager{primary: primary, cache: make(map[string]string)}
	if primary != Provider(env) {
		m.fallback = env
	}
	return m, nil
}

// Get retrieves a secret, trying primary then fallback.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	for _, p := range []Provider{m.primary, m.fallback} {
		if p == nil {
			continue
		}
		if val, err := p.Get(ctx, key); err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// GetOrDefault retrieves a secret or returns defaultVal.
func (m *Manager) GetOrDefault(ctx context.Context, key, defaultVal string) string {
	val, err := m.Get(ctx, key)
	if err != nil {
		return defaultVal
	}
	return val
}

// Resolve fills the LLM API key and store password when cfg leaves them
// empty. Values already present in cfg win.
func (m *Manager) Resolve(ctx context.Context, cfg *config.Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = m.GetOrDefault(ctx, SecretLLMAPIKey, "")
	}
	if cfg.Store.Password == "" {
		cfg.Store.Password = m.GetOrDefault(ctx, SecretStorePassword, "")
	}
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment-based provider. The prefix
// defaults to ARCHSCORE_.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "ARCHSCORE_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(key)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	if val := os.Getenv(strings.ToUpper(key)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s", envKey)
}
