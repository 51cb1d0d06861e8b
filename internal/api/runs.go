package api

import (
	"net/http"

	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

func (*handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handler) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun(r.Context())
	if err != nil {
		if models.IsRunNotFoundErr(err) {
			jsonError(w, http.StatusNotFound, "no ingest runs recorded yet")
			return
		}
		h.log.Error("failed to load latest run", "error", err)
		serverError(w)
		return
	}

	jsonResponse(w, http.StatusOK, run)
}
