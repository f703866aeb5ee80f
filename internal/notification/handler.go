package notification

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the aggregator to the admin dashboard.
type Handler struct {
	agg    *Aggregator
	logger *zap.SugaredLogger
}

func NewHandler(agg *Aggregator, logger *zap.SugaredLogger) *Handler {
	return &Handler{agg: agg, logger: logger}
}

// Response is the dashboard payload.
type Response struct {
	Counts
	Total   int  `json:"total"`
	Loading bool `json:"loading"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.agg.Counts()
	writeJSON(w, http.StatusOK, Response{Counts: c, Total: c.Total(), Loading: h.agg.Loading()})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c := h.agg.Refresh(r.Context())
	h.logger.Debugw("manual notification refresh", "total", c.Total())
	writeJSON(w, http.StatusOK, Response{Counts: c, Total: c.Total(), Loading: h.agg.Loading()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
