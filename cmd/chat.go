package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lore/internal/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your indexed codebase",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, store, err := buildPipeline(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("lore chat (type /help for commands, /exit to quit)")
		fmt.Println()

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			switch question {
			case "/exit", "/quit":
				fmt.Println("Goodbye.")
				return nil
			case "/help":
				fmt.Println("Commands:")
				fmt.Println("  /exit   - quit chat")
				fmt.Println("  /help   - show this help")
				continue
			}

			for update := range pipeline.StreamProgress(cmd.Context(), question) {
				switch update.Status {
				case chat.StatusRetrieving, chat.StatusAnswering:
					fmt.Printf("[%s]\n", update.Message)
				case chat.StatusComplete:
					fmt.Println()
					fmt.Println(update.Result.Answer)
					fmt.Println()
					printSources(update.Result.Contexts)
					fmt.Println()
				case chat.StatusError:
					fmt.Fprintf(os.Stderr, "error: %v\n", update.Err)
				}
			}
		}

		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
