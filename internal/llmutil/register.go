package llmutil

import (
	"github.com/efebarandurmaz/archscore/internal/llm"
	"github.com/efebarandurmaz/archscore/internal/llm/anthropic"
	"github.com/efebarandurmaz/archscore/internal/llm/openai"
)

// RegisterDefaultProviders registers the built-in provider constructors
// (anthropic, openai and the OpenAI-compatible presets) into factory.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	for _, name := range []string{"groq", "ollama", "deepseek", "custom"} {
		preset := llm.KnownProviders[name]
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = preset
			}
			return openai.New(c.APIKey, c.Model, base), nil
		})
	}
}
