// Package cmd implements the lore command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lore/internal/chat"
	"lore/internal/config"
	"lore/internal/embedder"
	"lore/internal/llm"
	"lore/internal/logging"
	"lore/internal/vectorstore"
)

var (
	flagConfig string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lore",
	Short: "Ask questions about your codebase, powered by RAG",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real config comes from the file and LORE_* vars.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "lore.yaml", "path to the YAML config file")
}

// openCollection wires the configured vector store and returns its chunk
// collection. The caller must Close the returned store.
func openCollection(cmd *cobra.Command) (vectorstore.Store, vectorstore.Collection, error) {
	store, err := vectorstore.New(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	col, err := store.GetOrCreateCollection(cmd.Context(), cfg.Database.Collection, vectorstore.SpaceCosine)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, col, nil
}

// buildPipeline wires the full question-answering pipeline. The caller must
// Close the returned store.
func buildPipeline(cmd *cobra.Command) (*chat.Pipeline, vectorstore.Store, error) {
	store, col, err := openCollection(cmd)
	if err != nil {
		return nil, nil, err
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	agent, err := llm.NewAgent(cfg.LLM, chat.SystemPrompt())
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return chat.NewPipeline(agent, emb, col, cfg.Chat.TopK, logger), store, nil
}

// printSources lists retrieved source locations under an answer.
func printSources(contexts []chat.RetrievedContext) {
	fmt.Println("Sources:")
	for _, c := range contexts {
		fmt.Printf("  %s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
		if c.Name != "" {
			fmt.Printf(" (%s %s)", c.Kind, c.Name)
		}
		fmt.Println()
	}
}
