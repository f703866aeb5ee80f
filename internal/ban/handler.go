package ban

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/auth"
)

type Handler struct {
	checker *Checker
	logger  *zap.SugaredLogger
}

func NewHandler(checker *Checker, logger *zap.SugaredLogger) *Handler {
	return &Handler{checker: checker, logger: logger}
}

// Status reports the ban status of the request's user (anonymous requests
// are never banned).
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	s := h.checker.Check(r.Context(), auth.FromContext(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(s)
}
