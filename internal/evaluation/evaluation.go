// Package evaluation scores chat answers against expected results using a
// second language model as the judge.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"lore/internal/chat"
	"lore/internal/llm"
)

// ErrJudge is returned when the judge call fails or its output cannot be
// parsed.
var ErrJudge = errors.New("judge evaluation failed")

// Metric weights for the total score. They sum to 1 so a perfect answer at
// difficulty d scores exactly d.
const (
	weightChunkRelevance    = 0.4
	weightAnswerCorrectness = 0.4
	weightCodeReference     = 0.2
)

const judgeSystemPrompt = `You are an expert evaluator of code question-answering systems.
You will be shown a question about a codebase, the expected answer characteristics, the retrieved code context, and the answer produced by the system under test.

Score the answer on three metrics, each a number between 0.0 and 1.0:
- chunk_relevance: how relevant the retrieved chunks are to the question
- answer_correctness: how correct and complete the answer is against the expectations
- code_reference: how well the answer references concrete files, functions, and line numbers

Respond with ONLY a JSON object, no prose:
{"chunk_relevance": <float>, "answer_correctness": <float>, "code_reference": <float>, "feedback": "<one or two sentences>"}`

// JudgeSystemPrompt is the instruction prompt the judge agent must be
// constructed with.
func JudgeSystemPrompt() string { return judgeSystemPrompt }

// Case is one evaluation scenario.
type Case struct {
	Question         string   `yaml:"question"`
	ExpectedFiles    []string `yaml:"expected_files"`
	ExpectedConcepts []string `yaml:"expected_concepts"`
	ExpectedCodeRefs []string `yaml:"expected_code_refs"`
	// Difficulty scales the total score; 1 is easy, 3 is hard.
	Difficulty int `yaml:"difficulty"`
}

// Result holds the judge's per-metric scores for one case.
type Result struct {
	ChunkRelevance    float64
	AnswerCorrectness float64
	CodeReference     float64
	Feedback          string
}

// TotalScore is the difficulty-weighted sum of the metrics. Perfect metrics
// at difficulty 2 score 2.0; all-zero metrics score 0 at any difficulty.
func (r Result) TotalScore(difficulty int) float64 {
	return float64(difficulty) * (r.ChunkRelevance*weightChunkRelevance +
		r.AnswerCorrectness*weightAnswerCorrectness +
		r.CodeReference*weightCodeReference)
}

// BatchItem pairs a case with its outcome. Err is set when the case's chat
// call or judge call failed; the rest of the batch is unaffected.
type BatchItem struct {
	Case   Case
	Result Result
	Err    error
}

// ProcessChatFunc produces a chat result for a question. The batch runner
// takes it as a parameter so evaluation never depends on pipeline wiring.
type ProcessChatFunc func(ctx context.Context, question string) (*chat.Result, error)

// Evaluator scores chat results with a judge agent.
type Evaluator struct {
	judge  llm.Agent
	logger *zap.Logger
}

// New creates an Evaluator. The judge agent must be constructed with
// JudgeSystemPrompt as its instruction prompt.
func New(judge llm.Agent, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{judge: judge, logger: logger}
}

// EvaluateSingle scores one chat result against its case.
func (e *Evaluator) EvaluateSingle(ctx context.Context, c Case, res *chat.Result) (Result, error) {
	raw, err := e.judge.Run(ctx, buildJudgePrompt(c, res))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrJudge, err)
	}

	parsed, err := parseJudgeOutput(raw)
	if err != nil {
		return Result{}, err
	}
	return parsed, nil
}

// EvaluateBatch runs every case through processChat and then through the
// judge, with at most maxConcurrent cases in flight. A failing case is
// reported in its BatchItem and never blocks the others. Results keep the
// input order.
func (e *Evaluator) EvaluateBatch(ctx context.Context, cases []Case, processChat ProcessChatFunc, maxConcurrent int64) ([]BatchItem, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent must be positive, got %d", maxConcurrent)
	}

	sem := semaphore.NewWeighted(maxConcurrent)
	items := make([]BatchItem, len(cases))
	done := make(chan int, len(cases))

	for i, c := range cases {
		items[i].Case = c

		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire evaluation slot: %w", err)
		}
		go func(i int, c Case) {
			defer sem.Release(1)
			defer func() { done <- i }()

			res, err := processChat(ctx, c.Question)
			if err != nil {
				items[i].Err = fmt.Errorf("chat: %w", err)
				return
			}
			score, err := e.EvaluateSingle(ctx, c, res)
			if err != nil {
				items[i].Err = err
				return
			}
			items[i].Result = score
		}(i, c)
	}

	for range cases {
		<-done
	}

	for _, item := range items {
		if item.Err != nil {
			e.logger.Warn("evaluation case failed",
				zap.String("question", item.Case.Question),
				zap.Error(item.Err),
			)
		}
	}
	return items, nil
}

// buildJudgePrompt serializes the case and the chat result for the judge.
func buildJudgePrompt(c Case, res *chat.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", c.Question)

	b.WriteString("Expected answer characteristics:\n")
	fmt.Fprintf(&b, "- Files: %s\n", strings.Join(c.ExpectedFiles, ", "))
	fmt.Fprintf(&b, "- Concepts: %s\n", strings.Join(c.ExpectedConcepts, ", "))
	fmt.Fprintf(&b, "- Code references: %s\n\n", strings.Join(c.ExpectedCodeRefs, ", "))

	b.WriteString("Retrieved context:\n")
	for _, rc := range res.Contexts {
		fmt.Fprintf(&b, "- %s (lines %d-%d): %s\n", rc.FilePath, rc.StartLine, rc.EndLine, rc.Summary)
	}

	fmt.Fprintf(&b, "\nAnswer under evaluation:\n%s\n", res.Answer)
	return b.String()
}

// judgeOutput is the judge's JSON shape.
type judgeOutput struct {
	ChunkRelevance    float64 `json:"chunk_relevance"`
	AnswerCorrectness float64 `json:"answer_correctness"`
	CodeReference     float64 `json:"code_reference"`
	Feedback          string  `json:"feedback"`
}

// parseJudgeOutput decodes the judge's JSON reply. Models often wrap JSON in
// a markdown fence, so the fence is stripped first; scores outside [0,1]
// are clamped.
func parseJudgeOutput(raw string) (Result, error) {
	cleaned := stripJSONFence(raw)

	var out judgeOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return Result{}, fmt.Errorf("%w: unparseable judge output: %v", ErrJudge, err)
	}

	return Result{
		ChunkRelevance:    clamp01(out.ChunkRelevance),
		AnswerCorrectness: clamp01(out.AnswerCorrectness),
		CodeReference:     clamp01(out.CodeReference),
		Feedback:          out.Feedback,
	}, nil
}

func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
