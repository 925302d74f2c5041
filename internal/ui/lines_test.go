package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zhouzirui/chatbox/internal/mocks"
	"github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/remote"
	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

func TestRunLinesConversation(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	gomock.InOrder(
		replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "a"}, nil),
		replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "b"}, nil),
	)
	controller := dispatch.New(transcript.NewStore(), replier)

	var out bytes.Buffer
	err := RunLines(context.Background(), strings.NewReader("A\n   \nB\n"), &out, controller)
	require.NoError(t, err)

	assert.Equal(t, "You: A\nBot: a\nYou: B\nBot: b\n", out.String())
}

func TestRunLinesContinuesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	gomock.InOrder(
		replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{}, &remote.Error{Kind: chat.ErrorStatus, StatusCode: 500}),
		replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "back"}, nil),
	)
	controller := dispatch.New(transcript.NewStore(), replier)

	var out bytes.Buffer
	require.NoError(t, RunLines(context.Background(), strings.NewReader("one\ntwo\n"), &out, controller))

	assert.Equal(t, "You: one\nSystem: service responded 500\nYou: two\nBot: back\n", out.String())
}

func TestFormatLineWithSources(t *testing.T) {
	msg := chat.BotMessage("see policy", []chat.Source{{Content: "Employees get\n25 days"}})

	assert.Equal(t, "Bot: see policy\n  - Employees get 25 days", FormatLine(msg))
	assert.Equal(t, "You: hi", FormatLine(chat.UserMessage("hi")))
}
