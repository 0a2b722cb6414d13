package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maneesh/langdrop/internal/models"
	"github.com/maneesh/langdrop/internal/payload"
	"github.com/maneesh/langdrop/internal/storage"
	"github.com/stretchr/testify/require"
)

type fakeRecordReader struct {
	records map[string]models.MetadataRecord
	err     error
}

func (f *fakeRecordReader) Lookup(_ context.Context, id string) (*models.MetadataRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return &record, nil
}

func newRecordRouter(records RecordReader) http.Handler {
	return NewRouter(NewUploadHandler(&fakeUploader{}, payload.NewReader(5<<20)), NewRecordHandler(records), nil)
}

func TestRecordFound(t *testing.T) {
	router := newRecordRouter(&fakeRecordReader{records: map[string]models.MetadataRecord{
		"1700000000000-0": {
			ID:             "1700000000000-0",
			SourceLanguage: "en",
			TargetLanguage: "fr",
			BucketName:     "my-bucket",
			FileName:       "doc.txt",
			PublicURL:      "https://storage.googleapis.com/my-bucket/doc.txt",
		},
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/1700000000000-0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{
		"id": "1700000000000-0",
		"source_language": "en",
		"target_language": "fr",
		"bucket_name": "my-bucket",
		"file_name": "doc.txt",
		"public_url": "https://storage.googleapis.com/my-bucket/doc.txt"
	}`, rec.Body.String())
}

func TestRecordNotFound(t *testing.T) {
	router := newRecordRouter(&fakeRecordReader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "record not found", rec.Body.String())
}

func TestRecordLookupFailure(t *testing.T) {
	router := newRecordRouter(&fakeRecordReader{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/abc", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRecordRouteAbsentWithoutReader(t *testing.T) {
	router := newTestRouter(&fakeUploader{}, 5<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/abc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
