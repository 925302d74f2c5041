package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

const title = "🧠 Generative AI Chat Assistant"

// TranscriptMsg tells the model that the transcript changed.
type TranscriptMsg transcript.Event

type sendDoneMsg struct {
	err error
}

// Model is the terminal chat widget: a draft input above a scrolling transcript.
type Model struct {
	ctx        context.Context
	controller *dispatch.Controller
	markdown   bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer transcriptRenderer

	pending int
	lastErr string
	width   int
	height  int
	ready   bool
}

// NewModel creates the widget for controller. Sends run with ctx.
func NewModel(ctx context.Context, controller *dispatch.Controller, markdown bool) Model {
	input := textinput.New()
	input.Placeholder = "Type a message and press Enter"
	input.Prompt = "> "
	input.CharLimit = 0
	input.SetValue(controller.Draft())
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	return Model{
		ctx:        ctx,
		controller: controller,
		markdown:   markdown,
		input:      input,
		spinner:    sp,
	}
}

// Forward subscribes send to transcript changes; typically send is tea.Program.Send.
func Forward(store *transcript.Store, send func(tea.Msg)) (cancel func()) {
	return store.Subscribe(func(ev transcript.Event) {
		send(TranscriptMsg(ev))
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case TranscriptMsg:
		m.refresh()
		return m, nil

	case sendDoneMsg:
		m.pending--
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.lastErr = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.controller.SetDraft(m.input.Value())

	return m, tea.Batch(cmds...)
}

// submit hands the draft to the controller without blocking the input.
func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	m.input.Reset()
	if strings.TrimSpace(text) == "" {
		m.controller.SetDraft("")
		return nil
	}

	m.controller.SetDraft(text)
	m.pending++
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		_, err := controller.Send(ctx, text)
		return sendDoneMsg{err: err}
	}
}

func (m *Model) layout() {
	inputHeight := 1
	headerHeight := 2
	statusHeight := 1
	vpHeight := m.height - headerHeight - statusHeight - inputHeight - 1
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.Width = m.width - lipgloss.Width(m.input.Prompt) - 1
	m.renderer = newTranscriptRenderer(m.markdown, m.width-4)
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderer.render(m.controller.Transcript().Messages()))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}

	var status string
	switch {
	case m.pending > 0:
		status = fmt.Sprintf("%s waiting for %d %s", m.spinner.View(), m.pending, plural(m.pending, "reply", "replies"))
		status = statusStyle.Render(status)
	case m.lastErr != "":
		status = errorStyle.Render(m.lastErr)
	default:
		status = statusStyle.Render("enter: send • pgup/pgdn: scroll • esc: quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		"",
		m.viewport.View(),
		status,
		m.input.View(),
	)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
