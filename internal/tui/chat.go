// Package tui implements the interactive chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// QueryPort is the TUI-facing subset of the query pipeline.
type QueryPort interface {
	Answer(ctx context.Context, question, namespace string, topK int) (domain.Answer, error)
}

type entryState int

const (
	entryPending entryState = iota
	entryComplete
	entryFailed
)

// entry is one question and its eventual answer in the transcript.
type entry struct {
	question string
	answer   domain.Answer
	err      error
	state    entryState
}

// answerMsg delivers a finished answer for the entry at index.
type answerMsg struct {
	index  int
	answer domain.Answer
}

// answerErrMsg delivers a failure for the entry at index.
type answerErrMsg struct {
	index int
	err   error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service   QueryPort
	namespace string
	input     textinput.Model
	viewport  viewport.Model
	entries   []entry
	status    string
	ready     bool
}

// New creates a new chat model instance.
func New(service QueryPort, namespace string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:   service,
		namespace: namespace,
		input:     ti,
		viewport:  vp,
		status:    "Ready. Ask away.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.entries = append(m.entries, entry{question: q, state: entryPending})
			index := len(m.entries) - 1
			m.input.SetValue("")
			m.status = "Thinking..."
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, m.askCmd(index, q)
		}
	case answerMsg:
		if msg.index < len(m.entries) {
			m.entries[msg.index].answer = msg.answer
			m.entries[msg.index].state = entryComplete
		}
		m.status = "Ready."
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case answerErrMsg:
		if msg.index < len(m.entries) {
			m.entries[msg.index].err = msg.err
			m.entries[msg.index].state = entryFailed
		}
		m.status = "Error: " + msg.err.Error()
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// askCmd runs the query pipeline off the UI loop and reports back by message.
func (m Model) askCmd(index int, question string) tea.Cmd {
	service, namespace := m.service, m.namespace
	return func() tea.Msg {
		answer, err := service.Answer(context.Background(), question, namespace, 0)
		if err != nil {
			return answerErrMsg{index: index, err: err}
		}
		return answerMsg{index: index, answer: answer}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Mad Matt AI")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := questionBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + e.question))
		b.WriteString("\n")
		switch e.state {
		case entryPending:
			b.WriteString(pendingStyle.Render("..."))
		case entryFailed:
			b.WriteString(errorStyle.Render("error: " + e.err.Error()))
		case entryComplete:
			b.WriteString(e.answer.Text)
			if sources := renderSources(e.answer.Context); sources != "" {
				b.WriteString("\n")
				b.WriteString(sourceStyle.Render(sources))
			}
		}
	}
	return b.String()
}

func renderSources(records []domain.ScoredRecord) string {
	if len(records) == 0 {
		return ""
	}
	parts := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		name := r.Metadata[domain.MetaSource]
		if name == "" {
			name = r.ID
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		parts = append(parts, fmt.Sprintf("%s (%.2f)", name, r.Score))
	}
	return "sources: " + strings.Join(parts, ", ")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	pendingStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
