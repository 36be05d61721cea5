package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/critreview/internal/domain/intensity"
	"github.com/okian/critreview/internal/domain/types"
)

// NormalizeHandler maps a raw score to its intensity and color.
type NormalizeHandler struct{}

// NewNormalizeHandler creates a new normalize handler.
func NewNormalizeHandler() *NormalizeHandler {
	return &NormalizeHandler{}
}

// HandleNormalize handles GET /normalize?raw=<float> requests.
func (h *NormalizeHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw, err := strconv.ParseFloat(r.URL.Query().Get("raw"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: raw must be a number", ErrBadRequest))
		return
	}
	i, err := intensity.Normalize(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "out_of_range", err)
		return
	}
	writeJSON(w, http.StatusOK, types.Normalized{Raw: raw, Intensity: i, Color: intensity.Color(i)})
}
