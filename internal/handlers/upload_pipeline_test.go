package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/maneesh/langdrop/internal/models"
	"github.com/maneesh/langdrop/internal/payload"
	"github.com/maneesh/langdrop/internal/pipeline"
	"github.com/stretchr/testify/require"
)

type memBlobSink struct {
	bucket string

	mu      sync.Mutex
	objects map[string][]byte
	public  map[string]bool
}

func newMemBlobSink(bucket string) *memBlobSink {
	return &memBlobSink{bucket: bucket, objects: map[string][]byte{}, public: map[string]bool{}}
}

func (m *memBlobSink) Bucket() string { return m.bucket }

func (m *memBlobSink) PublicURL(objectName string) string {
	return "https://storage.googleapis.com/" + m.bucket + "/" + objectName
}

func (m *memBlobSink) Write(_ context.Context, objectName, contentType string, r io.Reader, _ int64) (*models.StoredBlob, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[objectName] = data
	m.mu.Unlock()
	return &models.StoredBlob{
		BucketName:  m.bucket,
		ObjectName:  objectName,
		PublicURL:   m.PublicURL(objectName),
		ContentType: contentType,
	}, nil
}

func (m *memBlobSink) MakePublic(_ context.Context, objectName string) error {
	m.mu.Lock()
	m.public[objectName] = true
	m.mu.Unlock()
	return nil
}

type memMetadataSink struct {
	variant models.SinkVariant
	id      string

	mu      sync.Mutex
	records []models.MetadataRecord
}

func (m *memMetadataSink) Variant() models.SinkVariant { return m.variant }

func (m *memMetadataSink) Propagate(_ context.Context, record models.MetadataRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return m.id, nil
}

func postDoc(t *testing.T, router http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"srclang": "en", "tgtlang": "fr"}, "doc.txt", "text/plain", []byte("0123456789"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func drainPipeline(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
}

func TestUploadThroughPipelineDocumentSink(t *testing.T) {
	blobs := newMemBlobSink("my-bucket")
	meta := &memMetadataSink{variant: models.SinkDocument, id: "doc-1"}
	uploads := pipeline.New(blobs, meta, pipeline.Options{})
	router := NewRouter(NewUploadHandler(uploads, payload.NewReader(5<<20)), nil, nil)

	rec := postDoc(t, router)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{
		"source_language": "en",
		"target_language": "fr",
		"message": "Success! File uploaded to https://storage.googleapis.com/my-bucket/doc.txt and database updated"
	}`, rec.Body.String())

	drainPipeline(t, uploads)

	blobs.mu.Lock()
	require.Equal(t, []byte("0123456789"), blobs.objects["doc.txt"])
	require.True(t, blobs.public["doc.txt"])
	blobs.mu.Unlock()

	meta.mu.Lock()
	defer meta.mu.Unlock()
	require.Equal(t, []models.MetadataRecord{{
		SourceLanguage: "en",
		TargetLanguage: "fr",
		BucketName:     "my-bucket",
		FileName:       "doc.txt",
		PublicURL:      "https://storage.googleapis.com/my-bucket/doc.txt",
	}}, meta.records)
}

func TestUploadThroughPipelineQueueSinkAwaitingID(t *testing.T) {
	blobs := newMemBlobSink("my-bucket")
	meta := &memMetadataSink{variant: models.SinkQueue, id: "1700000000000-0"}
	uploads := pipeline.New(blobs, meta, pipeline.Options{AwaitMetadata: true})
	router := NewRouter(NewUploadHandler(uploads, payload.NewReader(5<<20)), nil, nil)

	rec := postDoc(t, router)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{
		"source_language": "en",
		"target_language": "fr",
		"message": "Success! File uploaded to https://storage.googleapis.com/my-bucket/doc.txt and message published with 1700000000000-0"
	}`, rec.Body.String())

	drainPipeline(t, uploads)
}

func TestUploadThroughPipelineMissingFile(t *testing.T) {
	blobs := newMemBlobSink("my-bucket")
	meta := &memMetadataSink{variant: models.SinkDocument}
	uploads := pipeline.New(blobs, meta, pipeline.Options{})
	router := NewRouter(NewUploadHandler(uploads, payload.NewReader(5<<20)), nil, nil)

	body, ct := multipartBody(t, map[string]string{"srclang": "en", "tgtlang": "fr"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No file uploaded.", rec.Body.String())

	drainPipeline(t, uploads)
	require.Empty(t, blobs.objects)
	require.Empty(t, meta.records)
}
