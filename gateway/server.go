package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ http.Handler = (*Handler)(nil)

// Handler serves the gateway HTTP surface: the aggregate view, a health
// check, Prometheus metrics and the dashboard page.
type Handler struct {
	logger     *slog.Logger
	aggregator *Aggregator
	mux        *http.ServeMux
}

// NewHandler creates the gateway handler.
func NewHandler(logger *slog.Logger, aggregator *Aggregator) *Handler {
	h := &Handler{
		logger:     logger,
		aggregator: aggregator,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /aggregate", h.handleAggregate)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", h.handleDashboard)
	h.mux = mux

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleAggregate always answers 200 with valid JSON; upstream trouble is
// visible only in the per-source status fields.
func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	result := h.aggregator.Aggregate(r.Context())

	doc := make(map[string]any, 2*len(result.Results)+1)
	doc["gateway"] = result.Gateway
	for name, res := range result.Results {
		doc[name] = res.Payload
		doc[name+"_status"] = res.Status
	}

	h.writeJSON(w, doc)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]string{
		"status":  "ok",
		"service": "gateway",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, doc any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
