package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/service/transcript"
	"github.com/zhouzirui/chatbox/pkg/utils"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	feedBuffer   = 64
)

// Frame is one message pushed to a transcript feed subscriber.
type Frame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Index     int            `json:"index"`
	Message   *chat.Message  `json:"message,omitempty"`
	Messages  []chat.Message `json:"messages,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Handler pushes transcript changes to browser widgets.
type Handler struct {
	store     *transcript.Store
	sessionID string
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
}

// New creates the transcript feed handler.
func New(store *transcript.Store, sessionID string, logger zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket and SSE feeds.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleEvents)
}

// feed is one subscriber's view of the transcript: the snapshot at
// subscription time followed by every later append.
type feed struct {
	snapshot []chat.Message
	events   chan transcript.Event
	overflow chan struct{}
	cancel   func()
}

func (h *Handler) subscribe() *feed {
	f := &feed{
		events:   make(chan transcript.Event, feedBuffer),
		overflow: make(chan struct{}),
	}
	var overflowOnce sync.Once
	f.snapshot, f.cancel = h.store.SubscribeWithSnapshot(func(ev transcript.Event) {
		select {
		case f.events <- ev:
		default:
			// A reader this far behind is dropped rather than allowed to stall appends.
			overflowOnce.Do(func() { close(f.overflow) })
		}
	})
	return f
}

func (h *Handler) snapshotFrame(messages []chat.Message) Frame {
	if messages == nil {
		messages = []chat.Message{}
	}
	return Frame{
		Type:      "snapshot",
		SessionID: h.sessionID,
		Index:     len(messages),
		Messages:  messages,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (h *Handler) messageFrame(ev transcript.Event) Frame {
	msg := ev.Message
	return Frame{
		Type:      "message",
		SessionID: h.sessionID,
		Index:     ev.Index,
		Message:   &msg,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	f := h.subscribe()
	defer f.cancel()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go h.readLoop(conn, cancel)

	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket subscriber connected")

	if err := h.writeFrame(conn, h.snapshotFrame(f.snapshot)); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.overflow:
			h.logger.Warn().Str("remote", r.RemoteAddr).Msg("websocket subscriber too slow, closing")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
				time.Now().Add(writeTimeout))
			return
		case ev := <-f.events:
			if err := h.writeFrame(conn, h.messageFrame(ev)); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed and a
// closed connection is noticed.
func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, frame Frame) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	f := h.subscribe()
	defer f.cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "snapshot", h.snapshotFrame(f.snapshot)); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-f.overflow:
			return
		case ev := <-f.events:
			if err := utils.SendSSEEvent(w, flusher, "message", h.messageFrame(ev)); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "ping"); err != nil {
				return
			}
		}
	}
}
