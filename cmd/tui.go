package cmd

import (
	"github.com/spf13/cobra"

	"lore/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive chat UI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, _ []string) error {
	pipeline, store, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	return tui.Run(pipeline)
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
