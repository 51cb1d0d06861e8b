package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

func jsonResponse(w http.ResponseWriter, code int, v any) {
	encoded, err := json.Marshal(v)
	if err != nil {
		// Let middleware handle the error.
		panic(fmt.Errorf("failed to marshal json response: %w", err))
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(encoded)
	if err != nil {
		// Let middleware handle the error.
		panic(fmt.Errorf("failed to write json response: %w", err))
	}
}

func serverError(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

type errorResponse struct {
	Message string `json:"message"`
}

func jsonError(w http.ResponseWriter, code int, message string) {
	jsonResponse(w, code, &errorResponse{
		Message: message,
	})
}
