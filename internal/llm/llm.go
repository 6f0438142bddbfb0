// Package llm provides the language-model agent boundary.
package llm

import (
	"context"
	"errors"
	"fmt"

	"lore/internal/config"
)

// ErrInference is returned when a language-model call fails (network,
// quota, malformed response).
var ErrInference = errors.New("llm inference failed")

// Agent accepts a prompt and returns the model's text output. The system
// prompt is fixed at construction time.
type Agent interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// NewAgent creates an agent for the configured provider. The provider set
// is closed; config validation guarantees the name is one of the variants.
func NewAgent(cfg config.LLMConfig, systemPrompt string) (Agent, error) {
	switch cfg.Provider {
	case config.ModelOllama:
		return NewOllamaAgent(cfg.BaseURL, cfg.Model, systemPrompt, cfg.Temperature), nil
	case config.ModelOpenAI:
		return NewOpenAIAgent(cfg, systemPrompt)
	default:
		return nil, fmt.Errorf("%w: llm provider %q", config.ErrUnsupportedProvider, cfg.Provider)
	}
}
