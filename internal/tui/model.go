// Package tui is the interactive terminal front end of a chat session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"nutrichat/internal/chat"
	"nutrichat/internal/models"
)

// Conversation is the part of chat.Session the terminal drives.
type Conversation interface {
	Ready() <-chan struct{}
	LoadErr() error
	Changes() <-chan struct{}
	AwaitingReply() bool
	Submit(ctx context.Context, text string) (models.MessageID, error)
	Messages() iter.Seq[models.Message]
	Close()
}

var _ Conversation = (*chat.Session)(nil)

type (
	readyMsg     struct{ err error }
	changedMsg   struct{}
	submittedMsg struct{ err error }
)

type Model struct {
	conv     Conversation
	username string
	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme
	now      func() time.Time

	width, height int
	ready         bool
	status        string
	statusErr     bool
}

func New(conv Conversation, username string) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Ask about food, diet or meal planning"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	return Model{
		conv:     conv,
		username: username,
		input:    input,
		timeline: timeline,
		spinner:  sp,
		theme:    newTheme(),
		now:      time.Now,
		status:   "loading history...",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitReady(m.conv),
		waitChange(m.conv),
	)
}

func waitReady(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		<-conv.Ready()
		return readyMsg{err: conv.LoadErr()}
	}
}

func waitChange(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		<-conv.Changes()
		return changedMsg{}
	}
}

func submit(conv Conversation, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := conv.Submit(context.Background(), text)
		return submittedMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.render()
	case readyMsg:
		m.ready = true
		if msg.err != nil {
			m.setStatus("history unavailable: "+rootCause(msg.err), true)
		} else {
			m.setStatus("ready", false)
		}
		m.render()
	case changedMsg:
		m.render()
		cmds = append(cmds, waitChange(m.conv))
	case submittedMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.conv.AwaitingReply() {
			m.render()
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.conv.Close()
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.setStatus("", false)
			return m, submit(m.conv, text)
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) resize() {
	inputHeight := 3
	headerHeight := 1
	statusHeight := 1
	m.timeline.Width = m.width
	m.timeline.Height = max(1, m.height-inputHeight-headerHeight-statusHeight)
	m.input.Width = max(10, m.width-6)
}

// render rebuilds the whole timeline from a fresh snapshot. Nothing is drawn
// until the session has finished loading history.
func (m *Model) render() {
	if !m.ready {
		return
	}
	var msgs []models.Message
	for msg := range m.conv.Messages() {
		msgs = append(msgs, msg)
	}
	atBottom := m.timeline.AtBottom()
	m.timeline.SetContent(renderTimeline(msgs, m.theme, m.spinner.View(), m.timeline.Width, m.now()))
	if atBottom || m.conv.AwaitingReply() {
		m.timeline.GotoBottom()
	}
}

func (m Model) View() string {
	header := m.theme.header.Render("NUTRI-BOT")
	if m.username != "" {
		header += m.theme.stamp.Render("signed in as " + m.username)
	}
	status := m.theme.status.Render(m.status)
	if m.statusErr {
		status = m.theme.errStatus.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.timeline.View(),
		status,
		m.theme.input.Render(m.input.View()),
	)
}

func renderTimeline(msgs []models.Message, th theme, spin string, width int, now time.Time) string {
	if len(msgs) == 0 {
		return th.status.Render("No conversation yet. Say hi!")
	}
	body := lipgloss.NewStyle()
	if width > 4 {
		body = body.Width(width - 2)
	}
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		label := th.user.Render("You")
		if msg.Role == models.RoleAssistant {
			label = th.assistant.Render("NUTRI-BOT")
		}
		head := label + " " + th.stamp.Render(stamp(msg.CreatedAt, now))

		var content string
		switch msg.Status {
		case models.StatusPending:
			content = spin + " " + th.pending.Render(msg.Content)
		case models.StatusFailed:
			content = th.failed.Render(msg.Content)
		default:
			content = msg.Content
		}
		blocks = append(blocks, head+"\n"+body.Render(content))
	}
	return strings.Join(blocks, "\n\n")
}

func stamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func rootCause(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// Run drives the terminal until the user quits.
func Run(conv Conversation, username string) error {
	p := tea.NewProgram(New(conv, username), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
