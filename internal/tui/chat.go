// Package tui is an interactive terminal client for a tutoring session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/widen/internal/progression"
	"github.com/abhisek/widen/internal/question"
)

var (
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#14B8A6"))
	learnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8FAFC")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F43F5E"))
)

type startedMsg struct{ outcome *progression.Outcome }
type respondedMsg struct{ outcome *progression.Outcome }
type failedMsg struct{ err error }

// ChatModel drives one session from the first question to completion.
type ChatModel struct {
	engine *progression.Engine
	topic  string
	userID string

	input      textinput.Model
	transcript []string
	sessionID  string
	level      int
	completed  bool
	waiting    bool
	errMsg     string
	width      int
	height     int
}

func NewChat(engine *progression.Engine, topic, userID string) ChatModel {
	ti := textinput.New()
	ti.Placeholder = "Type your answer..."
	ti.Focus()

	return ChatModel{
		engine:  engine,
		topic:   topic,
		userID:  userID,
		input:   ti,
		waiting: true,
	}
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(m.start(), m.input.Focus())
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case startedMsg:
		m.sessionID = msg.outcome.SessionID
		m.level = msg.outcome.Level
		m.waiting = false
		m.appendAssistant(msg.outcome.Message)
		return m, nil

	case respondedMsg:
		m.level = msg.outcome.Level
		m.waiting = false
		m.appendAssistant(msg.outcome.Message)
		if msg.outcome.Completed {
			m.completed = true
			m.appendStatus("Session complete. Your report is ready: widen report " + m.sessionID)
		}
		return m, nil

	case failedMsg:
		m.waiting = false
		m.errMsg = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Sequence(m.end(), tea.Quit)
		case "enter":
			if m.waiting || m.completed {
				return m, nil
			}
			answer := strings.TrimSpace(m.input.Value())
			if answer == "" {
				return m, nil
			}
			m.appendLearner(answer)
			m.input.Reset()
			m.waiting = true
			m.errMsg = ""
			return m, m.respond(answer)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) View() tea.View {
	return tea.NewView(m.render())
}

func (m ChatModel) render() string {
	var b strings.Builder

	for _, line := range m.tail() {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("error: "+m.errMsg) + "\n")
	}

	switch {
	case m.waiting:
		b.WriteString(statusStyle.Render("thinking...") + "\n")
	case m.completed:
		b.WriteString(statusStyle.Render("Press Esc to leave.") + "\n")
	default:
		b.WriteString(statusStyle.Render(fmt.Sprintf("level %d/%d (%s)", m.level, question.MaxLevel, question.LevelName(m.level))) + "\n")
		b.WriteString(m.input.View() + "\n")
	}

	return b.String()
}

// tail keeps the transcript within the window so the newest exchange stays
// visible.
func (m ChatModel) tail() []string {
	if m.height == 0 {
		return m.transcript
	}
	budget := m.height - 4
	if budget < 1 {
		budget = 1
	}
	lines := m.transcript
	total := 0
	start := len(lines)
	for start > 0 && total+strings.Count(lines[start-1], "\n")+1 <= budget {
		total += strings.Count(lines[start-1], "\n") + 1
		start--
	}
	return lines[start:]
}

func (m *ChatModel) appendAssistant(text string) {
	m.transcript = append(m.transcript, assistantStyle.Render(text))
}

func (m *ChatModel) appendLearner(text string) {
	m.transcript = append(m.transcript, learnerStyle.Render("> "+text))
}

func (m *ChatModel) appendStatus(text string) {
	m.transcript = append(m.transcript, statusStyle.Render(text))
}

func (m ChatModel) start() tea.Cmd {
	return func() tea.Msg {
		out, err := m.engine.Start(context.Background(), m.topic, m.userID)
		if err != nil {
			return failedMsg{err: err}
		}
		return startedMsg{outcome: out}
	}
}

func (m ChatModel) respond(answer string) tea.Cmd {
	sessionID := m.sessionID
	return func() tea.Msg {
		out, err := m.engine.Respond(context.Background(), sessionID, answer)
		if err != nil {
			return failedMsg{err: err}
		}
		return respondedMsg{outcome: out}
	}
}

// end force-completes an abandoned session so the sweeps can report on it.
func (m ChatModel) end() tea.Cmd {
	sessionID := m.sessionID
	completed := m.completed
	engine := m.engine
	return func() tea.Msg {
		if sessionID != "" && !completed {
			_, _ = engine.End(context.Background(), sessionID)
		}
		return nil
	}
}

// Run starts the chat program and blocks until it exits.
func Run(engine *progression.Engine, topic, userID string) error {
	p := tea.NewProgram(NewChat(engine, topic, userID))
	_, err := p.Run()
	return err
}
