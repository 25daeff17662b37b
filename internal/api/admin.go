package api

import (
	"net/http"
)

type AdminHandler struct {
	svc RoutingService
}

func NewAdminHandler(svc RoutingService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Stats summarizes the org's proposal pipeline.
// GET /api/v1/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), orgID(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
