package evaluation_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lore/internal/chat"
	"lore/internal/evaluation"
)

type stubJudge struct {
	output string
	err    error
}

func (j *stubJudge) Run(ctx context.Context, prompt string) (string, error) {
	return j.output, j.err
}

func perfectJudge() *stubJudge {
	return &stubJudge{output: `{"chunk_relevance": 1.0, "answer_correctness": 1.0, "code_reference": 1.0, "feedback": "solid"}`}
}

func chatStub(answer string) evaluation.ProcessChatFunc {
	return func(ctx context.Context, question string) (*chat.Result, error) {
		return &chat.Result{Answer: answer}, nil
	}
}

func TestTotalScoreWeights(t *testing.T) {
	perfect := evaluation.Result{ChunkRelevance: 1, AnswerCorrectness: 1, CodeReference: 1}
	assert.InDelta(t, 2.0, perfect.TotalScore(2), 1e-9)
	assert.InDelta(t, 1.0, perfect.TotalScore(1), 1e-9)

	zero := evaluation.Result{}
	assert.Equal(t, 0.0, zero.TotalScore(1))
	assert.Equal(t, 0.0, zero.TotalScore(3))

	partial := evaluation.Result{ChunkRelevance: 0.5, AnswerCorrectness: 1, CodeReference: 0}
	assert.InDelta(t, 0.6, partial.TotalScore(1), 1e-9)
}

func TestEvaluateSingleParsesJudgeOutput(t *testing.T) {
	judge := &stubJudge{output: `{"chunk_relevance": 0.8, "answer_correctness": 0.9, "code_reference": 0.5, "feedback": "missed a file"}`}
	e := evaluation.New(judge, zap.NewNop())

	res, err := e.EvaluateSingle(context.Background(), evaluation.Case{Question: "q", Difficulty: 1}, &chat.Result{Answer: "a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.ChunkRelevance, 1e-9)
	assert.InDelta(t, 0.9, res.AnswerCorrectness, 1e-9)
	assert.InDelta(t, 0.5, res.CodeReference, 1e-9)
	assert.Equal(t, "missed a file", res.Feedback)
}

func TestEvaluateSingleStripsMarkdownFence(t *testing.T) {
	judge := &stubJudge{output: "```json\n{\"chunk_relevance\": 1, \"answer_correctness\": 1, \"code_reference\": 1, \"feedback\": \"ok\"}\n```"}
	e := evaluation.New(judge, zap.NewNop())

	res, err := e.EvaluateSingle(context.Background(), evaluation.Case{Question: "q"}, &chat.Result{Answer: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.ChunkRelevance)
}

func TestEvaluateSingleClampsScores(t *testing.T) {
	judge := &stubJudge{output: `{"chunk_relevance": 1.7, "answer_correctness": -0.3, "code_reference": 0.5, "feedback": ""}`}
	e := evaluation.New(judge, zap.NewNop())

	res, err := e.EvaluateSingle(context.Background(), evaluation.Case{Question: "q"}, &chat.Result{Answer: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.ChunkRelevance)
	assert.Equal(t, 0.0, res.AnswerCorrectness)
}

func TestEvaluateSingleUnparseableOutput(t *testing.T) {
	judge := &stubJudge{output: "I think the answer is pretty good overall."}
	e := evaluation.New(judge, zap.NewNop())

	_, err := e.EvaluateSingle(context.Background(), evaluation.Case{Question: "q"}, &chat.Result{Answer: "a"})
	assert.ErrorIs(t, err, evaluation.ErrJudge)
}

func TestEvaluateBatchKeepsOrderAndScoresAll(t *testing.T) {
	e := evaluation.New(perfectJudge(), zap.NewNop())

	cases := []evaluation.Case{
		{Question: "first", Difficulty: 1},
		{Question: "second", Difficulty: 2},
		{Question: "third", Difficulty: 3},
	}

	items, err := e.EvaluateBatch(context.Background(), cases, chatStub("answer"), 2)
	require.NoError(t, err)
	require.Len(t, items, 3)

	for i, item := range items {
		assert.Equal(t, cases[i].Question, item.Case.Question)
		require.NoError(t, item.Err)
		assert.InDelta(t, float64(cases[i].Difficulty), item.Result.TotalScore(item.Case.Difficulty), 1e-9)
	}
}

func TestEvaluateBatchSerializesWithLimitOne(t *testing.T) {
	e := evaluation.New(perfectJudge(), zap.NewNop())

	var inFlight, maxInFlight int32
	var mu sync.Mutex
	process := func(ctx context.Context, question string) (*chat.Result, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		mu.Lock()
		if cur > maxInFlight {
			maxInFlight = cur
		}
		mu.Unlock()
		defer atomic.AddInt32(&inFlight, -1)
		return &chat.Result{Answer: "a"}, nil
	}

	var cases []evaluation.Case
	for i := 0; i < 8; i++ {
		cases = append(cases, evaluation.Case{Question: fmt.Sprintf("q%d", i), Difficulty: 1})
	}

	_, err := e.EvaluateBatch(context.Background(), cases, process, 1)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), maxInFlight, "at most one chat call in flight")
}

func TestEvaluateBatchIsolatesCaseFailures(t *testing.T) {
	e := evaluation.New(perfectJudge(), zap.NewNop())

	process := func(ctx context.Context, question string) (*chat.Result, error) {
		if question == "broken" {
			return nil, errors.New("pipeline exploded")
		}
		return &chat.Result{Answer: "a"}, nil
	}

	cases := []evaluation.Case{
		{Question: "fine", Difficulty: 1},
		{Question: "broken", Difficulty: 1},
		{Question: "also fine", Difficulty: 1},
	}

	items, err := e.EvaluateBatch(context.Background(), cases, process, 2)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	assert.Error(t, items[1].Err)
	assert.NoError(t, items[2].Err)
}

func TestLoadCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	content := `cases:
  - question: "How does indexing work?"
    expected_files: ["internal/indexer/indexer.go"]
    expected_concepts: ["chunking", "summarization"]
    expected_code_refs: ["Indexer.Index"]
    difficulty: 2
  - question: "Where is config loaded?"
    difficulty: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cases, err := evaluation.LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "How does indexing work?", cases[0].Question)
	assert.Equal(t, []string{"internal/indexer/indexer.go"}, cases[0].ExpectedFiles)
	assert.Equal(t, 2, cases[0].Difficulty)
	assert.Equal(t, 3, cases[1].Difficulty, "difficulty is capped at 3")
}

func TestLoadCasesRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases: []\n"), 0o644))

	_, err := evaluation.LoadCases(path)
	assert.Error(t, err)
}
