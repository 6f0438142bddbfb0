// Package embedder provides the embedding-provider boundary.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"lore/internal/config"
)

// ErrEmbedding is returned when an embedding call fails.
var ErrEmbedding = errors.New("embedding failed")

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed returns one embedding per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// New creates an embedder for the configured provider. The provider set is
// closed; config validation guarantees the name is one of the variants.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingOllama:
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model), nil
	case config.EmbeddingOpenAI:
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", config.ErrUnsupportedProvider, cfg.Provider)
	}
}
