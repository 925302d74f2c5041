package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/chatbox/internal/handler/chat"
	"github.com/zhouzirui/chatbox/internal/handler/stream"
	"github.com/zhouzirui/chatbox/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/chatbox/internal/middleware"
	"github.com/zhouzirui/chatbox/internal/service/dispatch"
	"github.com/zhouzirui/chatbox/pkg/utils"
)

// NewRouter wires the browser widget routes to the dispatch controller.
// uploader may be nil when the transport cannot accept documents.
func NewRouter(controller *dispatch.Controller, uploader chat.Uploader, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	widgetHandler := widget.New()
	chatHandler := chat.New(controller, uploader, logger)
	streamHandler := stream.New(controller.Transcript(), controller.Session().ID, logger)

	widgetHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
