package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/estatechat/chatsync/pkg/api"
	"github.com/estatechat/chatsync/pkg/brief"
	"github.com/estatechat/chatsync/pkg/chat"
)

type theme struct {
	header     lipgloss.Style
	user       lipgloss.Style
	assistant  lipgloss.Style
	optimistic lipgloss.Style
	status     lipgloss.Style
	errStatus  lipgloss.Style
	help       lipgloss.Style
	inputPanel lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#6c7086")

	return theme{
		header: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true).
			Padding(0, 1),
		user:       lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant:  lipgloss.NewStyle().Foreground(blue).Bold(true),
		optimistic: lipgloss.NewStyle().Foreground(muted),
		status:     lipgloss.NewStyle().Foreground(blue),
		errStatus:  lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:       lipgloss.NewStyle().Foreground(muted),
		inputPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
	}
}

type timelineMsg chat.Event

type sendDoneMsg struct {
	content string
	result  *chat.SendResult
	err     error
}

type briefMsg struct {
	brief *api.Brief
	err   error
}

type chatModel struct {
	ctx    context.Context
	conv   *chat.Conversation
	briefs *brief.Manager
	events <-chan chat.Event

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme

	width   int
	height  int
	ready   bool
	sending bool
	status  string
	failed  bool

	// provisional entries whose send already committed; rendered as
	// delivered even though the poll has not superseded them yet
	settled map[string]struct{}
}

func newChatModel(ctx context.Context, conv *chat.Conversation, briefs *brief.Manager, events <-chan chat.Event) chatModel {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 1000
	input.Placeholder = "Ask about buying, renting or selling. Ctrl+C to quit."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	return chatModel{
		ctx:      ctx,
		conv:     conv,
		briefs:   briefs,
		events:   events,
		input:    input,
		timeline: timeline,
		spinner:  sp,
		theme:    newTheme(),
		status:   "connected",
		settled:  map[string]struct{}{},
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitForEvent(),
	)
}

func (m chatModel) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return timelineMsg(e)
	}
}

func (m chatModel) sendCmd(content string) tea.Cmd {
	ctx := m.ctx
	conv := m.conv
	return func() tea.Msg {
		res, err := conv.Send(ctx, content)
		return sendDoneMsg{content: content, result: res, err: err}
	}
}

func (m chatModel) applyEntitiesCmd() tea.Cmd {
	if m.briefs == nil {
		return nil
	}
	ctx := m.ctx
	briefs := m.briefs
	view := m.conv.View()
	return func() tea.Msg {
		for i := len(view) - 1; i >= 0; i-- {
			if view[i].Role == chat.RoleAssistant && len(view[i].Entities) > 0 {
				b, err := briefs.ApplyEntities(ctx, view[i].Entities)
				return briefMsg{brief: b, err: err}
			}
		}
		return nil
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.timeline.Width = msg.Width
		m.timeline.Height = msg.Height - 6
		m.input.Width = msg.Width - 6
		m.ready = true
		m.timeline.SetContent(m.renderTimeline())
		m.timeline.GotoBottom()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			if content == "" || m.sending {
				break
			}
			m.sending = true
			m.failed = false
			m.status = "sending"
			m.input.Reset()
			cmds = append(cmds, m.sendCmd(content), m.spinner.Tick)
		}

	case timelineMsg:
		switch msg.Type {
		case chat.EventSessionExpired:
			m.failed = true
			m.status = "session expired, restart to continue"
		case chat.EventStaleDropped:
			m.failed = true
			m.status = "a message could not be delivered"
		}
		switch msg.Type {
		case chat.EventSuperseded, chat.EventSendRolledBack, chat.EventStaleDropped:
			delete(m.settled, msg.MessageID)
		}
		m.timeline.SetContent(m.renderTimeline())
		m.timeline.GotoBottom()
		cmds = append(cmds, m.waitForEvent())

	case sendDoneMsg:
		m.sending = false
		if msg.err != nil {
			m.failed = true
			m.status = sendFailureStatus(msg.err)
			// put the text back so the user can retry with enter
			var sendErr *chat.SendError
			if errors.As(msg.err, &sendErr) {
				m.input.SetValue(sendErr.Content)
			} else {
				m.input.SetValue(msg.content)
			}
		} else {
			m.failed = false
			m.status = "connected"
			if msg.result != nil {
				m.settled[msg.result.ProvisionalID] = struct{}{}
			}
			cmds = append(cmds, m.applyEntitiesCmd())
		}
		m.timeline.SetContent(m.renderTimeline())
		m.timeline.GotoBottom()

	case briefMsg:
		if msg.err != nil && !errors.Is(msg.err, brief.ErrNoBrief) {
			m.failed = true
			m.status = "brief update failed"
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.sending {
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.timeline, cmd = m.timeline.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) renderTimeline() string {
	var b strings.Builder

	for _, msg := range m.conv.View() {
		label := m.theme.assistant.Render("assistant")
		body := msg.Content
		if msg.Role == chat.RoleUser {
			label = m.theme.user.Render("you")
		}
		if msg.Optimistic() {
			if _, ok := m.settled[msg.ID]; !ok {
				body = m.theme.optimistic.Render(body + "  (sending)")
			}
		}
		b.WriteString(label)
		b.WriteString("  ")
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	return b.String()
}

func (m chatModel) headerLine() string {
	session := m.conv.Session()
	if session == nil {
		return m.theme.header.Render("estatechat")
	}

	parts := []string{
		"estatechat",
		"session " + shortID(session.ID),
	}
	if session.Language != "" {
		parts = append(parts, session.Language)
	}
	if m.briefs != nil {
		if b := m.briefs.Current(); b != nil {
			parts = append(parts, fmt.Sprintf("brief %.0f%%", brief.Completeness(b)))
		}
	}
	return m.theme.header.Render(strings.Join(parts, " · "))
}

func (m chatModel) statusLine() string {
	status := m.status
	if m.sending {
		status = m.spinner.View() + " " + status
	}
	if m.failed {
		return m.theme.errStatus.Render(status)
	}
	return m.theme.status.Render(status)
}

func (m chatModel) View() string {
	if !m.ready {
		return "loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerLine(),
		m.timeline.View(),
		m.theme.inputPanel.Width(m.width-2).Render(m.input.View()),
		lipgloss.JoinHorizontal(lipgloss.Left,
			m.statusLine(),
			"  ",
			m.theme.help.Render("enter send · ctrl+c quit"),
		),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sendFailureStatus(err error) string {
	var sendErr *chat.SendError
	if errors.As(err, &sendErr) && sendErr.Retryable() {
		return "send failed, press enter to retry"
	}
	if errors.Is(err, chat.ErrInvalidState) || api.IsSessionGone(err) {
		return "session expired, restart to continue"
	}
	return "send failed: " + err.Error()
}
