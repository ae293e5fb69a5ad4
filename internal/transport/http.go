package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hanzoai/mcpcore/internal/dispatch"
	"github.com/hanzoai/mcpcore/internal/telemetry"
)

// HTTP serves the SSE/HTTP transport: a POST /rpc endpoint for
// request/response JSON-RPC, a GET /events Server-Sent-Events stream
// that carries only keep-alives, a GET /healthz liveness probe, and (if
// metrics is non-nil) a GET /metrics Prometheus scrape endpoint.
type HTTP struct {
	d       *dispatch.Dispatcher
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

// NewHTTP builds the chi router for the SSE/HTTP transport.
func NewHTTP(d *dispatch.Dispatcher, metrics *telemetry.Metrics, logger zerolog.Logger) http.Handler {
	h := &HTTP{d: d, metrics: metrics, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Post("/rpc", h.handleRPC)
	r.Get("/events", h.handleEvents)
	r.Get("/healthz", h.handleHealthz)
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

func (h *HTTP) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}

	resp := h.d.Handle(r.Context(), body)
	w.Header().Set("Content-Type", "application/json")
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode rpc response")
	}
}

// handleEvents holds a Server-Sent Events stream open and writes a
// keep-alive comment every 30 seconds until the client disconnects. No
// notification events are sent on it: the dispatcher is
// request/response only.
func (h *HTTP) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *HTTP) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
