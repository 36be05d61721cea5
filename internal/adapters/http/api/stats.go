package api

import "net/http"

// StatsProvider reports the score client's session id and its cache
// hit, miss and fetch counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler exposes the client counters of this process. They are
// per session and reset on restart; Prometheus carries the totals.
type StatsHandler struct {
	stats StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	// Counters move on every request; never serve them from a cache.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
