// Package chat implements the retrieval-augmented question pipeline: embed
// the question, fetch the nearest indexed summaries, and have the agent
// synthesize an answer grounded in them.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"lore/internal/embedder"
	"lore/internal/llm"
	"lore/internal/vectorstore"
)

// ErrNoResults is returned when retrieval finds nothing relevant to ground
// an answer on.
var ErrNoResults = errors.New("no relevant code context found")

// Status tags a progress update. The pipeline moves retrieving -> answering
// -> complete; error is terminal and reachable from any state.
type Status string

const (
	StatusRetrieving Status = "retrieving"
	StatusAnswering  Status = "answering"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether the status ends the progress sequence.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// RetrievedContext is one indexed summary returned by the nearest-neighbor
// query, with its source location rebuilt from stored metadata.
type RetrievedContext struct {
	ID        string
	Summary   string
	FilePath  string
	StartLine int
	EndLine   int
	Kind      string
	Name      string
	Distance  float32
}

// Result is the final answer plus the context it was grounded on.
type Result struct {
	Answer   string
	Contexts []RetrievedContext
}

// Progress is one update in the streamed sequence. Result is set only on
// StatusComplete, Err only on StatusError.
type Progress struct {
	Status  Status
	Message string
	Result  *Result
	Err     error
}

// Pipeline answers questions about an indexed codebase. Collaborators are
// injected; the pipeline holds no ambient state.
type Pipeline struct {
	agent      llm.Agent
	embedder   embedder.Embedder
	collection vectorstore.Collection
	topK       int
	logger     *zap.Logger
}

// NewPipeline creates a Pipeline. The agent must be constructed with
// SystemPrompt as its instruction prompt.
func NewPipeline(agent llm.Agent, emb embedder.Embedder, collection vectorstore.Collection, topK int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		agent:      agent,
		embedder:   emb,
		collection: collection,
		topK:       topK,
		logger:     logger,
	}
}

// Retrieve embeds the question and returns the topK nearest indexed
// summaries. An empty result is ErrNoResults.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]RetrievedContext, error) {
	embedding, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	res, err := p.collection.Query(ctx, embedding, p.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if res.Len() == 0 {
		return nil, ErrNoResults
	}

	contexts := make([]RetrievedContext, res.Len())
	for i := range res.IDs {
		meta := res.Metadatas[i]
		start, _ := strconv.Atoi(meta["start_line"])
		end, _ := strconv.Atoi(meta["end_line"])
		contexts[i] = RetrievedContext{
			ID:        res.IDs[i],
			Summary:   res.Documents[i],
			FilePath:  meta["file_path"],
			StartLine: start,
			EndLine:   end,
			Kind:      meta["kind"],
			Name:      meta["name"],
			Distance:  res.Distances[i],
		}
	}
	return contexts, nil
}

// Process runs the full pipeline synchronously: retrieve, then answer.
func (p *Pipeline) Process(ctx context.Context, question string) (*Result, error) {
	contexts, err := p.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	answer, err := p.agent.Run(ctx, buildPrompt(question, contexts))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Result{Answer: answer, Contexts: contexts}, nil
}

// StreamProgress runs the pipeline in a goroutine and streams tagged
// progress updates on the returned channel. The sequence is finite and
// always ends with exactly one terminal update: StatusComplete carrying the
// result, or StatusError carrying the failure. The channel is unbuffered
// and closed after the terminal update; a canceled context stops delivery.
func (p *Pipeline) StreamProgress(ctx context.Context, question string) <-chan Progress {
	out := make(chan Progress)

	go func() {
		defer close(out)

		emit := func(u Progress) bool {
			select {
			case out <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(Progress{Status: StatusRetrieving, Message: "Searching the codebase index..."}) {
			return
		}

		contexts, err := p.Retrieve(ctx, question)
		if err != nil {
			p.logger.Warn("retrieval failed", zap.Error(err))
			emit(Progress{Status: StatusError, Message: "Retrieval failed.", Err: err})
			return
		}

		if !emit(Progress{
			Status:  StatusAnswering,
			Message: fmt.Sprintf("Found %d relevant chunks. Generating answer...", len(contexts)),
		}) {
			return
		}

		answer, err := p.agent.Run(ctx, buildPrompt(question, contexts))
		if err != nil {
			p.logger.Warn("generation failed", zap.Error(err))
			emit(Progress{Status: StatusError, Message: "Answer generation failed.", Err: fmt.Errorf("generate answer: %w", err)})
			return
		}

		emit(Progress{
			Status:  StatusComplete,
			Message: "Done.",
			Result:  &Result{Answer: answer, Contexts: contexts},
		})
	}()

	return out
}
