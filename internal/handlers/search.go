package handlers

import (
	"net/http"
	"strconv"

	"groupfolderMetadata/internal/utils"
)

// Search handles GET /api/search?q=&limit=
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.BadRequestError(w, "Invalid limit")
			return
		}
		limit = n
	}

	results, err := h.svc.Search.Search(r.Context(), query, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, results)
}

// LicenseUsage handles GET /api/license/usage
func (h *Handlers) LicenseUsage(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Usage.LatestUsageReport(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, report)
}
