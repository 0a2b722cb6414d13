package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires the HTTP routes. records and metrics may be nil.
func NewRouter(upload http.Handler, records http.Handler, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	if metrics != nil {
		router.Handle("/metrics", metrics).Methods("GET")
	}

	router.HandleFunc("/", FormHandler).Methods("GET")
	router.Handle("/upload", otelhttp.NewHandler(upload, "POST /upload")).Methods("POST")
	if records != nil {
		router.Handle("/records/{id}", otelhttp.NewHandler(records, "GET /records/{id}")).Methods("GET")
	}

	return router
}
