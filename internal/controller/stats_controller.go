package controller

import (
	"net/http"
	"strings"

	"github.com/cassiomorais/realestate/internal/service"
)

type StatsController struct {
	statsService *service.StatisticsService
}

func NewStatsController(statsService *service.StatisticsService) *StatsController {
	return &StatsController{statsService: statsService}
}

// Stats handles GET /api/v1/stats?keys=usuarios,pagos. Without keys every
// metric is computed.
func (h *StatsController) Stats(w http.ResponseWriter, r *http.Request) {
	var keys []string
	for _, k := range strings.Split(r.URL.Query().Get("keys"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	report, err := h.statsService.Compute(r.Context(), keys...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Home handles GET /, the homepage counters. It always serves the full report,
// which is the one the cache holds.
func (h *StatsController) Home(w http.ResponseWriter, r *http.Request) {
	report, err := h.statsService.Compute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
