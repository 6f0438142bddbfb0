// Package tui renders the interactive chat surface. It consumes the chat
// pipeline's progress stream and displays answers as markdown.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"lore/internal/chat"
)

// Model is the top-level Bubble Tea model.
type Model struct {
	chat   chatModel
	width  int
	height int
}

// New creates the TUI model around an already wired chat pipeline.
func New(pipeline *chat.Pipeline) Model {
	return Model{chat: newChatModel(pipeline)}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.chat.cancel()
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.chat.View(m.width, m.height)
}

// Run starts the TUI program.
func Run(pipeline *chat.Pipeline) error {
	p := tea.NewProgram(New(pipeline), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
