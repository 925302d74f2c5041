package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zhouzirui/chatbox/internal/mocks"
	"github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/remote"
	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

func newTestModel(t *testing.T) (Model, *mocks.MockReplier, *dispatch.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	controller := dispatch.New(transcript.NewStore(), replier)
	m := NewModel(context.Background(), controller, false)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model), replier, controller
}

func typeText(m Model, text string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(Model)
}

func TestTypingUpdatesDraft(t *testing.T) {
	m, _, controller := newTestModel(t)

	m = typeText(m, "Hello")

	assert.Equal(t, "Hello", controller.Draft())
	assert.Equal(t, "Hello", m.input.Value())
}

func TestEnterSendsAndRendersTranscript(t *testing.T) {
	m, replier, controller := newTestModel(t)
	replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "Hi there"}, nil)

	m = typeText(m, "Hello")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	require.NotNil(t, cmd)
	assert.Equal(t, "", m.input.Value())
	assert.Equal(t, 1, m.pending)

	done := cmd()
	updated, _ = m.Update(done)
	m = updated.(Model)
	updated, _ = m.Update(TranscriptMsg{})
	m = updated.(Model)

	assert.Equal(t, 0, m.pending)
	assert.Empty(t, m.lastErr)
	assert.Equal(t, "", controller.Draft())

	view := m.View()
	assert.Contains(t, view, "You: Hello")
	assert.Contains(t, view, "Bot: Hi there")
}

func TestEnterWithBlankDraftDoesNothing(t *testing.T) {
	m, replier, controller := newTestModel(t)
	replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Times(0)

	m = typeText(m, "   ")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, 0, m.pending)
	assert.Zero(t, controller.Transcript().Len())
}

func TestFailedSendShowsError(t *testing.T) {
	m, replier, controller := newTestModel(t)
	replier.EXPECT().
		Reply(gomock.Any(), gomock.Any()).
		Return(remote.Reply{}, &remote.Error{Kind: chat.ErrorStatus, StatusCode: 503})

	m = typeText(m, "Hello")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	updated, _ = m.Update(TranscriptMsg{})
	m = updated.(Model)

	assert.Contains(t, m.lastErr, "503")
	messages := controller.Transcript().Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, chat.SenderSystem, messages[1].Sender)
	assert.Contains(t, m.View(), "System: service responded 503")
}

func TestEscQuits(t *testing.T) {
	m, _, _ := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestForwardDeliversTranscriptMsgs(t *testing.T) {
	store := transcript.NewStore()
	var got []tea.Msg
	cancel := Forward(store, func(msg tea.Msg) { got = append(got, msg) })
	defer cancel()

	store.Append(chat.UserMessage("Hello"))

	require.Len(t, got, 1)
	ev, ok := got[0].(TranscriptMsg)
	require.True(t, ok)
	assert.Equal(t, "Hello", ev.Message.Text)
}
