package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/maneesh/langdrop/internal/models"
	"github.com/stretchr/testify/require"
)

var testRecord = models.MetadataRecord{
	SourceLanguage: "en",
	TargetLanguage: "fr",
	BucketName:     "my-bucket",
	FileName:       "doc.txt",
	PublicURL:      "https://storage.googleapis.com/my-bucket/doc.txt",
}

const testRecordJSON = `{"source_language":"en","target_language":"fr","bucket_name":"my-bucket","file_name":"doc.txt","public_url":"https://storage.googleapis.com/my-bucket/doc.txt"}`

func newMockDocumentStore(t *testing.T) (*DocumentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ds := NewDocumentStore(db, "userdata")
	ds.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return ds, mock
}

func TestDocumentStorePropagateInsertsFlatDocument(t *testing.T) {
	ds, mock := newMockDocumentStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(sqlmock.AnyArg(), "userdata", testRecordJSON, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	docID, err := ds.Propagate(context.Background(), testRecord)
	require.NoError(t, err)
	_, err = uuid.Parse(docID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, models.SinkDocument, ds.Variant())
}

func TestDocumentStorePropagateGeneratesDistinctIDs(t *testing.T) {
	ds, mock := newMockDocumentStore(t)
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
	}

	first, err := ds.Propagate(context.Background(), testRecord)
	require.NoError(t, err)
	second, err := ds.Propagate(context.Background(), testRecord)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestDocumentStorePropagateReportsInsertFailure(t *testing.T) {
	ds, mock := newMockDocumentStore(t)
	dbErr := errors.New("tidb unavailable")
	mock.ExpectExec("INSERT INTO documents").WillReturnError(dbErr)

	docID, err := ds.Propagate(context.Background(), testRecord)
	require.ErrorIs(t, err, dbErr)
	require.Empty(t, docID)
}

func TestDocumentStoreLookup(t *testing.T) {
	ds, mock := newMockDocumentStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT body, created_at FROM documents").
		WithArgs("doc-1", "userdata").
		WillReturnRows(sqlmock.NewRows([]string{"body", "created_at"}).AddRow(testRecordJSON, created))

	record, err := ds.Lookup(context.Background(), "doc-1")
	require.NoError(t, err)

	want := testRecord
	want.ID = "doc-1"
	want.CreatedAt = created
	require.Equal(t, &want, record)
}

func TestDocumentStoreLookupNotFound(t *testing.T) {
	ds, mock := newMockDocumentStore(t)
	mock.ExpectQuery("SELECT body, created_at FROM documents").
		WithArgs("nope", "userdata").
		WillReturnRows(sqlmock.NewRows([]string{"body", "created_at"}))

	_, err := ds.Lookup(context.Background(), "nope")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDocumentStoreEnsureSchema(t *testing.T) {
	ds, mock := newMockDocumentStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ds.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
