package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"lore/internal/embedder"
	"lore/internal/indexer"
	"lore/internal/llm"
	"lore/internal/summarizer"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a codebase: chunk, summarize, and embed its source files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		store, col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		emb, err := embedder.New(cfg.Embedding)
		if err != nil {
			return err
		}
		agent, err := llm.NewAgent(cfg.LLM, summarizer.SystemPrompt())
		if err != nil {
			return err
		}

		sum := summarizer.New(agent, emb, col, logger)
		idx := indexer.New(sum, logger)

		fmt.Printf("Indexing %s...\n", root)
		start := time.Now()

		var bar *progressbar.ProgressBar
		stats, err := idx.Index(cmd.Context(), root, func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "summarizing")
			}
			_ = bar.Set(done)
		})
		if stats != nil {
			fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("  Files:   %d scanned\n", stats.FilesScanned)
			fmt.Printf("  Chunks:  %d found, %d stored\n", stats.ChunksFound, stats.ChunksStored)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
