package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/chatbox/internal/model/chat"
	"github.com/zhouzirui/chatbox/internal/remote"
	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/pkg/utils"
)

const (
	// maxUploadForm bounds the multipart form accepted from the browser.
	maxUploadForm = 50 << 20
	// maxMessageBody bounds the JSON body of a send.
	maxMessageBody = 1 << 20
)

// Uploader forwards documents to the conversational service.
type Uploader interface {
	UploadReader(ctx context.Context, filename string, r io.Reader) (remote.UploadResult, error)
}

// Handler exposes the dispatch controller to the browser widget.
type Handler struct {
	controller *dispatch.Controller
	uploader   Uploader
	logger     zerolog.Logger
}

// New creates the chat API handler. uploader may be nil when the transport
// has no knowledge-base endpoint.
func New(controller *dispatch.Controller, uploader Uploader, logger zerolog.Logger) *Handler {
	return &Handler{
		controller: controller,
		uploader:   uploader,
		logger:     logger,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.handleListMessages)
	r.Post("/messages", h.handleSendMessage)
	r.Post("/upload", h.handleUpload)
}

type transcriptResponse struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
}

type sendResponse struct {
	Reply *chat.Message `json:"reply"`
	Error string        `json:"error,omitempty"`
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, transcriptResponse{
		SessionID: h.controller.Session().ID,
		Messages:  h.controller.Transcript().Messages(),
	})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message *string `json:"message"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBody)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == nil {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if strings.TrimSpace(*payload.Message) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// A browser navigating away must not abort a send that is already in the transcript.
	ctx := context.WithoutCancel(r.Context())

	reply, err := h.controller.Send(ctx, *payload.Message)
	if err != nil {
		h.logger.Warn().Err(err).Msg("send failed")
		utils.RespondJSON(w, http.StatusBadGateway, sendResponse{Reply: reply, Error: err.Error()})
		return
	}

	utils.RespondJSON(w, http.StatusOK, sendResponse{Reply: reply})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		utils.RespondError(w, http.StatusNotImplemented, "upload not available for this transport")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadForm+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		utils.RespondError(w, http.StatusBadRequest, "no selected file")
		return
	}

	result, err := h.uploader.UploadReader(r.Context(), header.Filename, file)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, remote.ErrUnsupportedFile) {
			status = http.StatusBadRequest
		}
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("upload failed")
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
