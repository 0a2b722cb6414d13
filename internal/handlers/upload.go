package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/maneesh/langdrop/internal/models"
	"github.com/maneesh/langdrop/internal/payload"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("langdrop-handlers")

// formOverhead is body room for multipart framing and the text fields on top
// of the file limit
const formOverhead = 1 << 20

// Uploader runs one upload through the pipeline
type Uploader interface {
	Handle(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error)
}

// UploadHandler handles multipart upload requests
type UploadHandler struct {
	uploader Uploader
	reader   *payload.Reader
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploader Uploader, reader *payload.Reader) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
		reader:   reader,
	}
}

// ServeHTTP handles POST /upload with fields file, srclang and tgtlang
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "upload_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, uh.reader.Limit()+formOverhead)

	req, err := uh.parseRequest(r)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	span.SetAttributes(
		attribute.String("source_language", req.SourceLanguage),
		attribute.String("target_language", req.TargetLanguage),
		attribute.Bool("has_file", req.File != nil),
	)
	if req.File != nil {
		log.Printf("Received %s (%s, %s)", req.File.Name, req.File.MimeType, humanize.IBytes(uint64(req.File.Size())))
	}

	response, err := uh.uploader.Handle(ctx, req)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// parseRequest reads the form. A missing file part, or a body that is not
// multipart at all, leaves File nil for the pipeline to reject.
func (uh *UploadHandler) parseRequest(r *http.Request) (*models.UploadRequest, error) {
	err := r.ParseMultipartForm(uh.reader.Limit() + formOverhead)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	req := &models.UploadRequest{
		SourceLanguage: r.FormValue("srclang"),
		TargetLanguage: r.FormValue("tgtlang"),
	}
	if r.MultipartForm == nil {
		return req, nil
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return req, nil
	}

	upload, err := uh.reader.ReadPart(headers[0])
	if err != nil {
		return nil, err
	}
	req.File = upload
	return req, nil
}
