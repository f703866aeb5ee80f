package setting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/dragon-bridge-community/community-api/internal/setting/repo"
	"github.com/dragon-bridge-community/community-api/pkg/database"
	"github.com/dragon-bridge-community/community-api/pkg/metrics"
)

// Connector opens a settings reader as the service principal.
type Connector func(ctx context.Context, cfg database.ServiceConfig) (Reader, error)

// PoolConnector reads settings through pooled service connections.
func PoolConnector(pool *database.Pool) Connector {
	return func(ctx context.Context, cfg database.ServiceConfig) (Reader, error) {
		db, err := pool.Get(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repo.NewRepo(db), nil
	}
}

// Handler hands the stored maps API key to browsers. It keeps no state
// between requests: the service credentials are read from the environment
// on every call.
type Handler struct {
	logger  *zap.SugaredLogger
	getenv  func(string) string
	connect Connector
}

// NewHandler constructs a new Handler.
func NewHandler(logger *zap.SugaredLogger, connect Connector) *Handler {
	return &Handler{logger: logger, getenv: os.Getenv, connect: connect}
}

const (
	msgMissingConfig = "Missing data store configuration"
	msgFetchFailed   = "Failed to fetch API key"
	msgNotConfigured = "Google Maps API key not configured"
	msgInternal      = "Internal server error"
)

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Errorw("config key proxy panicked", "panic", rec)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgInternal})
		}
	}()

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		metrics.ConfigProxyResponses.WithLabelValues("200").Inc()
		return
	}

	cfg, err := database.ServiceConfigFromEnv(h.getenv)
	if err != nil {
		h.logger.Errorw("config key proxy misconfigured", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgMissingConfig})
		return
	}
	reader, err := h.connect(r.Context(), cfg)
	if err != nil {
		h.logger.Errorw("connect as service principal failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgInternal})
		return
	}

	key, err := NewService(reader).MapsAPIKey(r.Context())
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, map[string]string{"apiKey": key})
	case errors.Is(err, ErrQuery):
		h.logger.Errorw("fetch maps api key failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgFetchFailed})
	case errors.Is(err, ErrNotConfigured):
		h.logger.Warnw("maps api key not configured")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgNotConfigured})
	default:
		h.logger.Errorw("maps api key unusable", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgInternal})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	metrics.ConfigProxyResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}
