package chat

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a code intelligence assistant. You answer questions about a codebase using the retrieved code summaries provided below.

Focus on answering how, why, and where questions about the code. Explain architecture, data flow, and relationships between components. Reference specific file paths and line numbers when relevant.

Do not generate new code unless explicitly asked. Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// SystemPrompt is the instruction prompt the pipeline's agent must be
// constructed with.
func SystemPrompt() string { return systemPrompt }

// buildPrompt formats the retrieved context and the question into a single
// user prompt for the agent.
func buildPrompt(question string, contexts []RetrievedContext) string {
	var b strings.Builder
	b.WriteString("Here are summaries of the relevant source code:\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "--- Context %d: %s", i+1, c.FilePath)
		if c.Name != "" {
			fmt.Fprintf(&b, " [%s %s]", c.Kind, c.Name)
		}
		fmt.Fprintf(&b, " (lines %d-%d) ---\n", c.StartLine, c.EndLine)
		b.WriteString(c.Summary)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
