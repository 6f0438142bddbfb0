package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lore/internal/chat"
	"lore/internal/evaluation"
	"lore/internal/llm"
)

var flagCases string

var evalCmd = &cobra.Command{
	Use:   "eval [cases.yaml]",
	Short: "Score the chat pipeline against a YAML suite of expected answers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		casesPath := flagCases
		if len(args) == 1 {
			casesPath = args[0]
		}
		cases, err := evaluation.LoadCases(casesPath)
		if err != nil {
			return err
		}

		pipeline, store, err := buildPipeline(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		judge, err := llm.NewAgent(cfg.LLM, evaluation.JudgeSystemPrompt())
		if err != nil {
			return err
		}
		evaluator := evaluation.New(judge, logger)

		fmt.Printf("Evaluating %d cases (max %d concurrent)...\n\n", len(cases), cfg.Evaluation.MaxConcurrent)

		processChat := func(ctx context.Context, question string) (*chat.Result, error) {
			return pipeline.Process(ctx, question)
		}
		items, err := evaluator.EvaluateBatch(cmd.Context(), cases, processChat, int64(cfg.Evaluation.MaxConcurrent))
		if err != nil {
			return err
		}

		var total float64
		failed := 0
		for i, item := range items {
			fmt.Printf("%d. %s\n", i+1, item.Case.Question)
			if item.Err != nil {
				failed++
				fmt.Printf("   FAILED: %v\n\n", item.Err)
				continue
			}
			score := item.Result.TotalScore(item.Case.Difficulty)
			total += score
			fmt.Printf("   relevance=%.2f correctness=%.2f references=%.2f total=%.2f (difficulty %d)\n",
				item.Result.ChunkRelevance, item.Result.AnswerCorrectness, item.Result.CodeReference,
				score, item.Case.Difficulty)
			if item.Result.Feedback != "" {
				fmt.Printf("   %s\n", item.Result.Feedback)
			}
			fmt.Println()
		}

		fmt.Printf("Total score: %.2f across %d cases (%d failed)\n", total, len(items), failed)
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&flagCases, "cases", "eval_cases.yaml", "path to the YAML evaluation suite")
	rootCmd.AddCommand(evalCmd)
}
