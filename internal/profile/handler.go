package profile

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes author resolution over HTTP.
type Handler struct {
	resolver *Resolver
	logger   *zap.SugaredLogger
}

func NewHandler(resolver *Resolver, logger *zap.SugaredLogger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

// Resolve handles GET ?name=&user_id=&badge=0|1&format=html.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	showBadge := q.Get("badge") != "0"
	a := h.resolver.Resolve(r.Context(), name, q.Get("user_id"), showBadge)
	if q.Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(a.HTML()))
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
