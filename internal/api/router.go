package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sovexe/helldivers2-data-pipeline/internal/models"
)

// RunReader exposes the run bookkeeping the status endpoints read.
type RunReader interface {
	LatestRun(ctx context.Context) (*models.IngestRun, error)
}

type handler struct {
	log *slog.Logger

	runs RunReader
}

func NewRouter(log *slog.Logger, runs RunReader) http.Handler {
	h := handler{
		log: log,

		runs: runs,
	}

	r := mux.NewRouter()

	r.HandleFunc("/api/v1/healthz", h.healthz).Methods("GET")
	r.HandleFunc("/api/v1/runs/latest", h.latestRun).Methods("GET")

	r.Use(Recovery(log), RequestLogging(log))

	return r
}
