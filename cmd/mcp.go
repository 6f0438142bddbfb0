package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"lore/internal/chat"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing codebase search and QA tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	pipeline, store, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	s := mcpserver.NewMCPServer("lore", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchCodebaseTool(), makeSearchHandler(pipeline))
	s.AddTool(askCodebaseTool(), makeAskHandler(pipeline))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the indexed codebase. Returns summaries of relevant code with file paths and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query to search the codebase"),
		),
	)
}

func askCodebaseTool() mcp.Tool {
	return mcp.NewTool("ask_codebase",
		mcp.WithDescription("Ask a question about the indexed codebase and get a grounded answer with source references."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(pipeline *chat.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		contexts, err := pipeline.Retrieve(ctx, query)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, contexts)), nil
	}
}

func makeAskHandler(pipeline *chat.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := req.GetString("question", "")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		res, err := pipeline.Process(ctx, question)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(res.Answer)
		sb.WriteString("\n\n## Sources\n\n")
		for _, c := range res.Contexts {
			fmt.Fprintf(&sb, "- `%s:%d-%d`", c.FilePath, c.StartLine, c.EndLine)
			if c.Name != "" {
				fmt.Fprintf(&sb, " (%s %s)", c.Kind, c.Name)
			}
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, contexts []chat.RetrievedContext) string {
	if len(contexts) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(contexts))

	for i, c := range contexts {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, c.FilePath)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**Name:** %s  \n**Lines:** %d-%d  \n**Distance:** %.3f\n\n",
			c.Kind, c.Name, c.StartLine, c.EndLine, c.Distance)
		sb.WriteString(c.Summary)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
