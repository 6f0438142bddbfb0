// Package summarizer turns code chunks into searchable natural-language
// summaries and stores them in the vector index.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"lore/internal/chunker"
	"lore/internal/embedder"
	"lore/internal/llm"
	"lore/internal/vectorstore"
)

// ErrSummarization is returned when the agent fails to summarize a chunk.
var ErrSummarization = errors.New("summarization failed")

// ErrEmptyChunk is returned for chunks with no content.
var ErrEmptyChunk = errors.New("chunk content is empty")

const systemPrompt = `You are an expert code analyzer specializing in creating searchable and contextual code summaries.
Your summaries will be used in a RAG system to help developers understand complex codebases.
Focus on the following points:
1. The main purpose and functionality
- Use precise technical terms
- Preserve class/function/variable names exactly
- State the primary purpose
2. Narrow down key implementation details
- Focus on key algorithms, patterns, or design choices
- Highlight important method signatures and interfaces
3. Any notable dependencies or requirements
- Reference related classes/functions by exact name
- List external dependencies
- Note any inherited or implemented interfaces

Provide a clean, concise and focused summary. Don't include unnecessary nor generic details.`

// SystemPrompt is the instruction prompt the summarizer's agent must be
// constructed with.
func SystemPrompt() string { return systemPrompt }

// ProgressFunc reports batch progress after each processed chunk.
type ProgressFunc func(done, total int)

// Summarizer summarizes chunks and upserts them into a vector collection.
// All collaborators are injected; the summarizer holds no ambient state.
type Summarizer struct {
	agent      llm.Agent
	embedder   embedder.Embedder
	collection vectorstore.Collection
	logger     *zap.Logger
}

// New creates a Summarizer.
func New(agent llm.Agent, emb embedder.Embedder, collection vectorstore.Collection, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		agent:      agent,
		embedder:   emb,
		collection: collection,
		logger:     logger,
	}
}

// SummarizeChunk asks the agent for a natural-language summary of one chunk.
func (s *Summarizer) SummarizeChunk(ctx context.Context, chunk chunker.CodeChunk) (string, error) {
	if strings.TrimSpace(chunk.Content) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyChunk, chunk.ID())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s code chunk:\n\n%s\n", chunk.Kind, chunk.Content)
	if chunk.Docstring != "" {
		fmt.Fprintf(&b, "\nDocstring: %s\n", chunk.Docstring)
	}
	b.WriteString("\nProvide a concise summary.")

	summary, err := s.agent.Run(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("%w: chunk %s: %v", ErrSummarization, chunk.ID(), err)
	}
	return strings.TrimSpace(summary), nil
}

// ProcessAndStoreChunk summarizes a chunk, embeds the summary, and upserts
// the record under the chunk's deterministic id.
func (s *Summarizer) ProcessAndStoreChunk(ctx context.Context, chunk chunker.CodeChunk) error {
	summary, err := s.SummarizeChunk(ctx, chunk)
	if err != nil {
		return err
	}

	embedding, err := s.embedder.EmbedQuery(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed summary for %s: %w", chunk.ID(), err)
	}

	doc := vectorstore.Document{
		ID:        chunk.ID(),
		Content:   summary,
		Embedding: embedding,
		Metadata:  metadataFor(chunk),
	}
	if err := s.collection.AddDocuments(ctx, []vectorstore.Document{doc}); err != nil {
		return fmt.Errorf("store chunk %s: %w", chunk.ID(), err)
	}

	s.logger.Debug("chunk stored",
		zap.String("id", chunk.ID()),
		zap.String("kind", string(chunk.Kind)),
		zap.Int("summary_len", len(summary)),
	)
	return nil
}

// ProcessChunks processes chunks sequentially and returns how many were
// stored. A failing chunk is logged and skipped; the batch never aborts on
// chunk errors. The returned error is non-nil only when the context is
// canceled.
func (s *Summarizer) ProcessChunks(ctx context.Context, chunks []chunker.CodeChunk, onProgress ProgressFunc) (int, error) {
	total := len(chunks)
	stored := 0
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if err := s.ProcessAndStoreChunk(ctx, chunk); err != nil {
			s.logger.Warn("skipping chunk",
				zap.String("id", chunk.ID()),
				zap.Error(err),
			)
		} else {
			stored++
		}
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}
	return stored, nil
}

// metadataFor builds the denormalized metadata projection stored alongside
// each record, used to reconstruct source-location links in answers.
func metadataFor(c chunker.CodeChunk) map[string]string {
	return map[string]string{
		"file_path":  c.FilePath,
		"start_line": strconv.Itoa(c.StartLine),
		"end_line":   strconv.Itoa(c.EndLine),
		"kind":       string(c.Kind),
		"name":       c.Name,
		"docstring":  c.Docstring,
	}
}
