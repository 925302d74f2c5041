package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/remote"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
)

// Controller mediates between an input surface and the remote service.
// It owns the draft and appends both sides of every exchange to the transcript.
type Controller struct {
	store   *transcript.Store
	replier Replier
	session chat.Session
	logger  zerolog.Logger

	mu    sync.Mutex
	draft string
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithSession binds the controller to an existing session instead of a fresh one.
func WithSession(session chat.Session) Option {
	return func(c *Controller) { c.session = session }
}

// New creates a controller appending to store and asking replier for replies.
func New(store *transcript.Store, replier Replier, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		replier: replier,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session.ID == "" {
		c.session = chat.NewSession("")
	}
	return c
}

// Session returns the session the controller sends on behalf of.
func (c *Controller) Session() chat.Session {
	return c.session
}

// Transcript returns the store the controller appends to.
func (c *Controller) Transcript() *transcript.Store {
	return c.store
}

// SetDraft replaces the text typed but not yet submitted.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the current draft.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the current draft.
func (c *Controller) Submit(ctx context.Context) (*chat.Message, error) {
	return c.Send(ctx, c.Draft())
}

// Send appends draftText as a user turn, clears the draft and asks the remote
// service for a reply. A whitespace-only draft is ignored and yields (nil, nil).
//
// On success the appended bot message is returned. On failure a system message
// classifying the failure is appended and returned together with the error.
// Concurrent calls are allowed; their replies may land in any order.
func (c *Controller) Send(ctx context.Context, draftText string) (*chat.Message, error) {
	if strings.TrimSpace(draftText) == "" {
		return nil, nil
	}

	history := c.store.Messages()
	user := c.store.Append(chat.UserMessage(draftText))

	c.mu.Lock()
	// Text typed after this draft was taken must survive the clear.
	if c.draft == draftText {
		c.draft = ""
	}
	c.mu.Unlock()

	c.logger.Debug().Str("message_id", user.ID).Int("length", len(draftText)).Msg("dispatching message")

	reply, err := c.replier.Reply(ctx, remote.Request{
		Message: draftText,
		ChatID:  c.session.ID,
		History: history,
	})
	if err != nil {
		kind := remote.KindOf(err)
		c.logger.Warn().Err(err).Str("message_id", user.ID).Str("kind", string(kind)).Msg("dispatch failed")
		failed := c.store.Append(chat.SystemMessage(kind, err.Error()))
		return &failed, errors.Wrap(err, "send message")
	}

	bot := c.store.Append(chat.BotMessage(reply.Text, reply.Sources))
	c.logger.Debug().Str("message_id", bot.ID).Str("reply_to", user.ID).Msg("reply received")
	return &bot, nil
}
