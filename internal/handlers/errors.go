package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/maneesh/langdrop/internal/payload"
	"github.com/maneesh/langdrop/internal/pipeline"
)

// writeError is the generic error path for upload requests
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *pipeline.ValidationError
		maxBytesErr   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr):
		writeText(w, http.StatusBadRequest, validationErr.Reason)
	case errors.As(err, &maxBytesErr), errors.Is(err, payload.ErrTooLarge):
		writeText(w, http.StatusRequestEntityTooLarge, "File too large.")
	default:
		log.Printf("Error handling upload: %v", err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
