package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/conversations"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 72

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	responseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("183"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type session interface {
	StartListening(ctx context.Context) error
	Retry(ctx context.Context) error
	StopListening() error
	Teardown()
	Status() orchestration.Status
}

type eventMsg struct{ event events.Event }

type errorMsg struct {
	err              error
	retryable        bool
	requiresSettings bool
}

type actionDoneMsg struct {
	action string
	err    error
}

type model struct {
	ctx     context.Context
	session session

	status orchestration.Status
	notice string
	width  int

	spinner spinner.Model
	meter   progress.Model
}

func newModel(ctx context.Context, session session) model {
	return model{
		ctx:     ctx,
		session: session,
		status:  session.Status(),
		width:   defaultWidth,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		meter:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.meter.Width = max(10, msg.Width-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.status = m.session.Status()
		if changed, ok := msg.event.(events.StateChanged); ok && changed.To == conversations.StateListening {
			m.notice = ""
		}
		return m, nil

	case errorMsg:
		m.status = m.session.Status()
		m.notice = describeError(msg)
		return m, nil

	case actionDoneMsg:
		m.status = m.session.Status()
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s: %v", msg.action, msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc":
		m.session.Teardown()
		m.status = m.session.Status()
		return m, nil

	case "r":
		return m, m.action("retry", m.session.Retry)

	case " ", "space", "enter":
		switch m.status.State {
		case conversations.StateListening:
			return m, m.action("stop", func(context.Context) error { return m.session.StopListening() })
		case conversations.StateProcessing, conversations.StateSpeaking:
			m.session.Teardown()
			m.status = m.session.Status()
			return m, nil
		case conversations.StateFailed, conversations.StatePermissionBlocked:
			return m, m.action("retry", m.session.Retry)
		default:
			m.notice = ""
			return m, m.action("start", m.session.StartListening)
		}
	}
	return m, nil
}

// action runs a blocking session call off the update loop.
func (m model) action(name string, call func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: name, err: call(ctx)}
	}
}

func describeError(msg errorMsg) string {
	switch {
	case msg.requiresSettings:
		return fmt.Sprintf("%v (open system settings to allow access)", msg.err)
	case msg.retryable:
		return fmt.Sprintf("%v (press r to retry)", msg.err)
	default:
		return msg.err.Error()
	}
}

func (m model) View() string {
	width := max(20, m.width-4)

	var b strings.Builder
	b.WriteString(titleStyle.Render("ema voice"))
	b.WriteString("\n\n")

	state := m.status.Description()
	if m.status.State == conversations.StateProcessing {
		state = m.spinner.View() + " " + state
	}
	b.WriteString(stateStyle.Render(state))
	b.WriteString("\n")

	if m.status.Visualization() != orchestration.VisualizationIdle {
		b.WriteString(m.meter.ViewAs(m.status.Level()))
		b.WriteString("\n")
	}

	if m.status.Transcript != "" {
		b.WriteString("\n")
		b.WriteString(userStyle.Render(wordwrap.String("you: "+m.status.Transcript, width)))
		b.WriteString("\n")
	}
	if m.status.Response != "" {
		b.WriteString("\n")
		b.WriteString(responseStyle.Render(wordwrap.String("ema: "+m.status.Response, width)))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(wordwrap.String(m.notice, width)))
		b.WriteString("\n")
	}
	if m.status.CanRetry() {
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d retries left", m.status.Retry.Remaining())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space: talk/stop • r: retry • esc: cancel • q: quit"))

	return boxStyle.Render(b.String())
}
