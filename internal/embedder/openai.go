package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"lore/internal/config"
)

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API (or
// any OpenAI-compatible server) via langchaingo.
type OpenAIEmbedder struct {
	embedder *embeddings.EmbedderImpl
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token; OpenAI-compatible local servers
		// accept any value.
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEmbedder{embedder: emb}, nil
}

// Embed returns one embedding per input text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: openai embed: %v", ErrEmbedding, err)
	}
	return vecs, nil
}

// EmbedQuery embeds a single text.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: openai embed query: %v", ErrEmbedding, err)
	}
	return vec, nil
}
