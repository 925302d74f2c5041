package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/zhouzirui/chatbox/internal/model/chat"
)

const sourcePreview = 120

var (
	userLabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botLabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	systemLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	sourceStyle      = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// FormatLine renders msg as plain text, e.g. "You: Hello".
func FormatLine(msg chat.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", msg.Sender.Label(), msg.Text)
	for _, src := range msg.Sources {
		fmt.Fprintf(&b, "\n  - %s", previewSource(src))
	}
	return b.String()
}

func previewSource(src chat.Source) string {
	return lo.Ellipsis(strings.Join(strings.Fields(src.Content), " "), sourcePreview)
}

// transcriptRenderer styles messages for the terminal widget.
type transcriptRenderer struct {
	markdown *glamour.TermRenderer
}

func newTranscriptRenderer(markdown bool, width int) transcriptRenderer {
	if !markdown || width <= 0 {
		return transcriptRenderer{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return transcriptRenderer{}
	}
	return transcriptRenderer{markdown: r}
}

func (r transcriptRenderer) render(messages []chat.Message) string {
	blocks := lo.Map(messages, func(msg chat.Message, _ int) string {
		return r.renderMessage(msg)
	})
	return strings.Join(blocks, "\n")
}

func (r transcriptRenderer) renderMessage(msg chat.Message) string {
	var label string
	switch msg.Sender {
	case chat.SenderUser:
		label = userLabelStyle.Render(msg.Sender.Label())
	case chat.SenderBot:
		label = botLabelStyle.Render(msg.Sender.Label())
	default:
		label = systemLabelStyle.Render(msg.Sender.Label())
	}

	text := msg.Text
	if msg.Sender == chat.SenderBot && r.markdown != nil {
		if out, err := r.markdown.Render(text); err == nil {
			text = strings.Trim(out, "\n")
		}
	}

	var b strings.Builder
	b.WriteString(label)
	if strings.Contains(text, "\n") {
		b.WriteString("\n")
	} else {
		b.WriteString(" ")
	}
	b.WriteString(text)
	for _, src := range msg.Sources {
		b.WriteString("\n")
		b.WriteString(sourceStyle.Render("- " + previewSource(src)))
	}
	return b.String()
}
