package dispatch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zhouzirui/chatbox/internal/config"
	"github.com/zhouzirui/chatbox/internal/mocks"
	"github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/remote"
	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

type turn struct {
	sender chat.Sender
	text   string
}

func turns(messages []chat.Message) []turn {
	out := make([]turn, 0, len(messages))
	for _, m := range messages {
		out = append(out, turn{m.Sender, m.Text})
	}
	return out
}

func TestSendIgnoresBlankDrafts(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Times(0)

	store := transcript.NewStore()
	controller := dispatch.New(store, replier)

	for _, draft := range []string{"", " ", "   ", "\t\n", " "} {
		controller.SetDraft(draft)
		msg, err := controller.Send(context.Background(), draft)
		require.NoError(t, err)
		assert.Nil(t, msg)
		assert.Equal(t, draft, controller.Draft())
	}
	assert.Zero(t, store.Len())
}

func TestSendAppendsUserTurnBeforeCallingService(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	store := transcript.NewStore()
	controller := dispatch.New(store, replier)
	controller.SetDraft("  Hello  ")

	replier.EXPECT().
		Reply(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req remote.Request) (remote.Reply, error) {
			messages := store.Messages()
			require.Len(t, messages, 1)
			assert.Equal(t, chat.SenderUser, messages[0].Sender)
			assert.Equal(t, "  Hello  ", messages[0].Text)
			assert.Equal(t, "", controller.Draft())
			assert.Equal(t, "  Hello  ", req.Message)
			assert.Empty(t, req.History)
			return remote.Reply{Text: "Hi there"}, nil
		}).
		Times(1)

	msg, err := controller.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, chat.SenderBot, msg.Sender)
	assert.Equal(t, "Hi there", msg.Text)
}

func TestSendHelloScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "Hi there"}, nil)

	store := transcript.NewStore()
	before := store.Len()

	_, err := dispatch.New(store, replier).Send(context.Background(), "Hello")
	require.NoError(t, err)

	assert.Equal(t, before+2, store.Len())
	assert.Equal(t, []turn{
		{chat.SenderUser, "Hello"},
		{chat.SenderBot, "Hi there"},
	}, turns(store.Messages()))
}

func TestSequentialSendsKeepPairs(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	gomock.InOrder(
		replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "a"}, nil),
		replier.EXPECT().
			Reply(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req remote.Request) (remote.Reply, error) {
				assert.Equal(t, []turn{{chat.SenderUser, "A"}, {chat.SenderBot, "a"}}, turns(req.History))
				return remote.Reply{Text: "b"}, nil
			}),
	)

	store := transcript.NewStore()
	controller := dispatch.New(store, replier)

	_, err := controller.Send(context.Background(), "A")
	require.NoError(t, err)
	_, err = controller.Send(context.Background(), "B")
	require.NoError(t, err)

	assert.Equal(t, []turn{
		{chat.SenderUser, "A"},
		{chat.SenderBot, "a"},
		{chat.SenderUser, "B"},
		{chat.SenderBot, "b"},
	}, turns(store.Messages()))
}

func TestSendPassesSessionID(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	session := chat.NewSession("user-session-123")
	replier.EXPECT().
		Reply(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req remote.Request) (remote.Reply, error) {
			assert.Equal(t, "user-session-123", req.ChatID)
			return remote.Reply{Text: "ok"}, nil
		})

	controller := dispatch.New(transcript.NewStore(), replier, dispatch.WithSession(session))
	_, err := controller.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "user-session-123", controller.Session().ID)
}

func TestSendFailureAppendsSystemMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind chat.ErrorKind
	}{
		{name: "transport", err: &remote.Error{Kind: chat.ErrorTransport, Err: errors.New("connection refused")}, kind: chat.ErrorTransport},
		{name: "status", err: &remote.Error{Kind: chat.ErrorStatus, StatusCode: 500}, kind: chat.ErrorStatus},
		{name: "malformed", err: &remote.Error{Kind: chat.ErrorMalformed, Err: remote.ErrMissingReply}, kind: chat.ErrorMalformed},
		{name: "foreign", err: context.DeadlineExceeded, kind: chat.ErrorTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			replier := mocks.NewMockReplier(ctrl)
			replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{}, tc.err)

			store := transcript.NewStore()
			msg, err := dispatch.New(store, replier).Send(context.Background(), "Hello")

			require.Error(t, err)
			require.ErrorIs(t, err, tc.err)
			require.NotNil(t, msg)
			assert.True(t, msg.IsError())
			assert.Equal(t, tc.kind, msg.ErrorKind)

			messages := store.Messages()
			require.Len(t, messages, 2)
			assert.Equal(t, chat.SenderUser, messages[0].Sender)
			assert.Equal(t, chat.SenderSystem, messages[1].Sender)
			assert.Equal(t, tc.kind, messages[1].ErrorKind)
			assert.NotEmpty(t, messages[1].Text)
		})
	}
}

func TestConcurrentSendsProduceOneReplyEach(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	replier.EXPECT().
		Reply(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req remote.Request) (remote.Reply, error) {
			return remote.Reply{Text: "re: " + req.Message}, nil
		}).
		Times(10)

	store := transcript.NewStore()
	controller := dispatch.New(store, replier)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := controller.Send(context.Background(), string(rune('a'+i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	messages := store.Messages()
	require.Len(t, messages, 20)
	position := make(map[string]int)
	for i, m := range messages {
		position[string(m.Sender)+":"+m.Text] = i
	}
	for i := 0; i < 10; i++ {
		text := string(rune('a' + i))
		assert.Less(t, position["user:"+text], position["bot:re: "+text])
	}
}

func TestSendAgainstHTTPService(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["message"] {
		case "A":
			_, _ = io.WriteString(w, `{"reply":"a"}`)
		case "B":
			_, _ = io.WriteString(w, `{"reply":"b"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	client, err := remote.NewClient(config.RemoteConfig{BaseURL: srv.URL, ChatPath: "/chat", UploadPath: "/upload"})
	require.NoError(t, err)

	store := transcript.NewStore()
	controller := dispatch.New(store, client)

	_, err = controller.Send(context.Background(), "   ")
	require.NoError(t, err)
	assert.Zero(t, calls.Load())

	_, err = controller.Send(context.Background(), "A")
	require.NoError(t, err)
	_, err = controller.Send(context.Background(), "B")
	require.NoError(t, err)

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, []turn{
		{chat.SenderUser, "A"},
		{chat.SenderBot, "a"},
		{chat.SenderUser, "B"},
		{chat.SenderBot, "b"},
	}, turns(store.Messages()))
}

func TestSendKeepsNewerDraft(t *testing.T) {
	ctrl := gomock.NewController(t)
	replier := mocks.NewMockReplier(ctrl)
	store := transcript.NewStore()
	controller := dispatch.New(store, replier)

	replier.EXPECT().Reply(gomock.Any(), gomock.Any()).Return(remote.Reply{Text: "ok"}, nil)

	controller.SetDraft("next question")
	_, err := controller.Send(context.Background(), "first question")
	require.NoError(t, err)

	assert.Equal(t, "next question", controller.Draft())
}
