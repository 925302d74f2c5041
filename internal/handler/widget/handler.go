package widget

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static/index.html
var assets embed.FS

// Handler serves the browser chat widget page.
type Handler struct{}

// New creates the widget page handler.
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes registers the page route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := assets.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "widget unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(page)
}
