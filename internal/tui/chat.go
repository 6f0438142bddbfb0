package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"lore/internal/chat"
)

type chatModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	pipeline    *chat.Pipeline
	messages    []chatMessage
	stream      <-chan chat.Progress
	stopStream  context.CancelFunc
	status      string
	busy        bool
	width       int
	height      int
	initialized bool
}

type chatMessage struct {
	role     string
	content  string
	contexts []chat.RetrievedContext
}

// progressMsg wraps one pipeline progress update.
type progressMsg chat.Progress

// streamDoneMsg is sent when the progress channel closes.
type streamDoneMsg struct{}

func newChatModel(pipeline *chat.Pipeline) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about your codebase..."
	ti.CharLimit = 2000
	ti.Focus()

	return chatModel{
		spinner:  sp,
		input:    ti,
		pipeline: pipeline,
	}
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Welcome to lore chat! Ask a question about your codebase.\n\nCommands: /help, /clear, /exit"))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

// cancel stops any in-flight stream so its producer goroutine exits.
func (m *chatModel) cancel() {
	if m.stopStream != nil {
		m.stopStream()
		m.stopStream = nil
	}
}

// waitForProgress reads the next update from the stream.
func waitForProgress(ch <-chan chat.Progress) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return streamDoneMsg{}
		}
		return progressMsg(u)
	}
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case progressMsg:
		u := chat.Progress(msg)
		switch u.Status {
		case chat.StatusRetrieving, chat.StatusAnswering:
			m.status = u.Message
		case chat.StatusComplete:
			m.messages = append(m.messages, chatMessage{
				role:     "assistant",
				content:  u.Result.Answer,
				contexts: u.Result.Contexts,
			})
		case chat.StatusError:
			m.messages = append(m.messages, chatMessage{role: "error", content: u.Err.Error()})
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, waitForProgress(m.stream)

	case streamDoneMsg:
		m.cancel()
		m.busy = false
		m.stream = nil
		m.status = ""
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			// Re-render so the spinner frame updates.
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				m.cancel()
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			case "/help":
				helpText := "Commands:\n  /clear  - clear conversation\n  /exit   - quit\n  /help   - show this help"
				m.messages = append(m.messages, chatMessage{role: "system", content: helpText})
				m.viewport.SetContent(m.renderMessages())
				m.viewport.GotoBottom()
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: question})
			m.busy = true
			m.status = "Starting..."
			ctx, cancel := context.WithCancel(context.Background())
			m.stopStream = cancel
			m.stream = m.pipeline.StreamProgress(ctx, question)
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()

			return m, tea.Batch(m.spinner.Tick, waitForProgress(m.stream))
		}
	}

	if !m.busy {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n")
			if len(msg.contexts) > 0 {
				sb.WriteString(dimStyle.Render(renderSources(msg.contexts)) + "\n")
			}
			sb.WriteString("\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.busy {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render(m.status) + "\n")
	}

	return sb.String()
}

// renderSources lists the retrieved locations under an answer.
func renderSources(contexts []chat.RetrievedContext) string {
	var sb strings.Builder
	sb.WriteString("Sources:\n")
	for _, c := range contexts {
		fmt.Fprintf(&sb, "  %s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
		if c.Name != "" {
			fmt.Fprintf(&sb, " (%s %s)", c.Kind, c.Name)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m chatModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	if m.busy {
		statusText = m.status
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" lore chat | %s", statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
