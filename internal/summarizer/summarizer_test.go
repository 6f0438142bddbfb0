package summarizer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lore/internal/chunker"
	"lore/internal/summarizer"
	"lore/internal/vectorstore"
)

// stubAgent returns a fixed summary, or an error for chunks whose prompt
// contains failOn.
type stubAgent struct {
	summary string
	failOn  string
	calls   int
}

func (a *stubAgent) Run(ctx context.Context, prompt string) (string, error) {
	a.calls++
	if a.failOn != "" && strings.Contains(prompt, a.failOn) {
		return "", errors.New("model unavailable")
	}
	return a.summary, nil
}

// stubEmbedder returns a fixed-dimension zero vector for every input.
type stubEmbedder struct {
	dim    int
	failed bool
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.failed {
		return nil, errors.New("embedding service down")
	}
	return make([]float32, e.dim), nil
}

// memCollection records upserts in a map keyed by document ID.
type memCollection struct {
	docs map[string]vectorstore.Document
	adds int
}

func newMemCollection() *memCollection {
	return &memCollection{docs: map[string]vectorstore.Document{}}
}

func (c *memCollection) AddDocuments(ctx context.Context, docs []vectorstore.Document) error {
	c.adds++
	for _, d := range docs {
		c.docs[d.ID] = d
	}
	return nil
}

func (c *memCollection) Query(ctx context.Context, embedding []float32, topK int) (vectorstore.QueryResult, error) {
	return vectorstore.QueryResult{}, nil
}

func testChunk() chunker.CodeChunk {
	return chunker.CodeChunk{
		FilePath:  "a.py",
		StartLine: 1,
		EndLine:   10,
		Kind:      chunker.KindFunction,
		Name:      "parse",
		Content:   "def parse(): ...",
		Docstring: "Parses the thing.",
	}
}

func TestProcessAndStoreChunkRecord(t *testing.T) {
	col := newMemCollection()
	s := summarizer.New(
		&stubAgent{summary: "stub summary"},
		&stubEmbedder{dim: 8},
		col,
		zap.NewNop(),
	)

	err := s.ProcessAndStoreChunk(context.Background(), testChunk())
	require.NoError(t, err)

	doc, ok := col.docs["a.py:1-10"]
	require.True(t, ok, "record must be keyed by file_path:start-end")
	assert.Equal(t, "stub summary", doc.Content)
	assert.Equal(t, make([]float32, 8), doc.Embedding)
	assert.Equal(t, "a.py", doc.Metadata["file_path"])
	assert.Equal(t, "1", doc.Metadata["start_line"])
	assert.Equal(t, "10", doc.Metadata["end_line"])
	assert.Equal(t, "function", doc.Metadata["kind"])
	assert.Equal(t, "parse", doc.Metadata["name"])
	assert.Equal(t, "Parses the thing.", doc.Metadata["docstring"])
}

func TestReprocessingUpsertsSameID(t *testing.T) {
	col := newMemCollection()
	s := summarizer.New(
		&stubAgent{summary: "stub summary"},
		&stubEmbedder{dim: 4},
		col,
		zap.NewNop(),
	)

	chunk := testChunk()
	require.NoError(t, s.ProcessAndStoreChunk(context.Background(), chunk))
	require.NoError(t, s.ProcessAndStoreChunk(context.Background(), chunk))

	assert.Len(t, col.docs, 1, "reprocessing the same chunk must not duplicate records")
	assert.Equal(t, 2, col.adds)
}

func TestSummarizeChunkPromptIncludesKindAndDocstring(t *testing.T) {
	var captured string
	agent := &capturingAgent{onRun: func(p string) { captured = p }}
	s := summarizer.New(agent, &stubEmbedder{dim: 2}, newMemCollection(), zap.NewNop())

	_, err := s.SummarizeChunk(context.Background(), testChunk())
	require.NoError(t, err)
	assert.Contains(t, captured, "function code chunk")
	assert.Contains(t, captured, "def parse(): ...")
	assert.Contains(t, captured, "Docstring: Parses the thing.")
}

type capturingAgent struct {
	onRun func(prompt string)
}

func (a *capturingAgent) Run(ctx context.Context, prompt string) (string, error) {
	a.onRun(prompt)
	return "ok", nil
}

func TestSummarizeChunkEmptyContent(t *testing.T) {
	s := summarizer.New(&stubAgent{summary: "x"}, &stubEmbedder{dim: 2}, newMemCollection(), zap.NewNop())

	chunk := testChunk()
	chunk.Content = "   "
	_, err := s.SummarizeChunk(context.Background(), chunk)
	assert.ErrorIs(t, err, summarizer.ErrEmptyChunk)
}

func TestSummarizeChunkAgentFailure(t *testing.T) {
	s := summarizer.New(&stubAgent{failOn: "def parse"}, &stubEmbedder{dim: 2}, newMemCollection(), zap.NewNop())

	_, err := s.SummarizeChunk(context.Background(), testChunk())
	assert.ErrorIs(t, err, summarizer.ErrSummarization)
}

func TestProcessChunksSkipsFailures(t *testing.T) {
	col := newMemCollection()
	s := summarizer.New(
		&stubAgent{summary: "stub summary", failOn: "func Broken"},
		&stubEmbedder{dim: 4},
		col,
		zap.NewNop(),
	)

	chunks := []chunker.CodeChunk{
		{FilePath: "a.go", StartLine: 1, EndLine: 5, Kind: chunker.KindFunction, Name: "Good", Content: "func Good() {}"},
		{FilePath: "a.go", StartLine: 7, EndLine: 9, Kind: chunker.KindFunction, Name: "Broken", Content: "func Broken() {}"},
		{FilePath: "b.go", StartLine: 1, EndLine: 3, Kind: chunker.KindFunction, Name: "Also", Content: "func Also() {}"},
	}

	var reported []int
	stored, err := s.ProcessChunks(context.Background(), chunks, func(done, total int) {
		require.Equal(t, 3, total)
		reported = append(reported, done)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stored)
	assert.Len(t, col.docs, 2, "failing chunk is skipped, others are stored")
	assert.Contains(t, col.docs, "a.go:1-5")
	assert.Contains(t, col.docs, "b.go:1-3")
	assert.NotContains(t, col.docs, "a.go:7-9")
	assert.Equal(t, []int{1, 2, 3}, reported, "progress is reported for skipped chunks too")
}

func TestProcessChunksSequential(t *testing.T) {
	agent := &stubAgent{summary: "s"}
	col := newMemCollection()
	s := summarizer.New(agent, &stubEmbedder{dim: 2}, col, zap.NewNop())

	var chunks []chunker.CodeChunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunker.CodeChunk{
			FilePath:  "f.go",
			StartLine: i*10 + 1,
			EndLine:   i*10 + 5,
			Kind:      chunker.KindFunction,
			Name:      fmt.Sprintf("F%d", i),
			Content:   fmt.Sprintf("func F%d() {}", i),
		})
	}

	stored, err := s.ProcessChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, stored)
	assert.Equal(t, 5, agent.calls)
	assert.Len(t, col.docs, 5)
}

func TestProcessChunksHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := summarizer.New(&stubAgent{summary: "s"}, &stubEmbedder{dim: 2}, newMemCollection(), zap.NewNop())
	_, err := s.ProcessChunks(ctx, []chunker.CodeChunk{testChunk()}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedFailurePropagates(t *testing.T) {
	s := summarizer.New(&stubAgent{summary: "s"}, &stubEmbedder{dim: 2, failed: true}, newMemCollection(), zap.NewNop())
	err := s.ProcessAndStoreChunk(context.Background(), testChunk())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed summary")
}
