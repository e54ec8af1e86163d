package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/akinalp/parley/pkg"
	"github.com/akinalp/parley/services"
)

type StatsHandler struct {
	collector services.MetricsCollector
	log       *zap.Logger
}

// NewStatsHandler, constructor.
func NewStatsHandler(collector services.MetricsCollector, log *zap.Logger) *StatsHandler {
	return &StatsHandler{collector: collector, log: log}
}

// Stats godoc
// GET /api/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.collector.Snapshot(r.Context())
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	pkg.JSON(w, http.StatusOK, stats)
}

// Health godoc
// GET /api/health
// Plain {"status":"ok"} without the envelope, for load balancer probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
