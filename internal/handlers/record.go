package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/langdrop/internal/models"
	"github.com/maneesh/langdrop/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordReader reads a metadata record back by the id its sink assigned
type RecordReader interface {
	Lookup(ctx context.Context, id string) (*models.MetadataRecord, error)
}

// RecordHandler handles metadata record lookups
type RecordHandler struct {
	records RecordReader
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(records RecordReader) *RecordHandler {
	return &RecordHandler{records: records}
}

type recordResponse struct {
	ID string `json:"id"`
	models.MetadataRecord
}

// ServeHTTP handles GET /records/{id}
func (rh *RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "read_record",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		writeText(w, http.StatusBadRequest, "missing record id")
		return
	}
	span.SetAttributes(attribute.String("record_id", id))

	record, err := rh.records.Lookup(ctx, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		writeText(w, http.StatusNotFound, "record not found")
		return
	} else if err != nil {
		span.RecordError(err)
		log.Printf("Error reading record %s: %v", id, err)
		writeText(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(recordResponse{ID: record.ID, MetadataRecord: *record})
}
