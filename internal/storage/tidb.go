package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/maneesh/langdrop/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrRecordNotFound is returned by Lookup for unknown ids
var ErrRecordNotFound = errors.New("record not found")

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS documents (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	collection VARCHAR(255) NOT NULL,
	body JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	KEY idx_documents_collection (collection)
)`

// DocumentStore keeps metadata records as schemaless JSON documents in TiDB
type DocumentStore struct {
	db         *sql.DB
	collection string
	now        func() time.Time
}

// NewTiDBClient opens the TiDB connection used by the document store
func NewTiDBClient(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// NewDocumentStore creates a document store writing into collection
func NewDocumentStore(db *sql.DB, collection string) *DocumentStore {
	return &DocumentStore{
		db:         db,
		collection: collection,
		now:        time.Now,
	}
}

// EnsureSchema creates the documents table if it is missing
func (ds *DocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := ds.db.ExecContext(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (ds *DocumentStore) Close() error {
	return ds.db.Close()
}

// Variant reports the document sink variant
func (ds *DocumentStore) Variant() models.SinkVariant {
	return models.SinkDocument
}

// Propagate inserts record as a new document and returns its generated id
func (ds *DocumentStore) Propagate(ctx context.Context, record models.MetadataRecord) (string, error) {
	docID := uuid.New().String()

	ctx, span := tracer.Start(ctx, "tidb.create_document",
		trace.WithAttributes(
			attribute.String("document_id", docID),
			attribute.String("collection", ds.collection),
			attribute.String("file_name", record.FileName),
		),
	)
	defer span.End()

	body, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `INSERT INTO documents (id, collection, body, created_at)
			  VALUES (?, ?, ?, ?)`

	_, err = ds.db.ExecContext(ctx, query, docID, ds.collection, string(body), ds.now().UTC())
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return docID, nil
}

// Lookup loads one document from the collection
func (ds *DocumentStore) Lookup(ctx context.Context, docID string) (*models.MetadataRecord, error) {
	ctx, span := tracer.Start(ctx, "tidb.lookup",
		trace.WithAttributes(
			attribute.String("document_id", docID),
		),
	)
	defer span.End()

	query := `SELECT body, created_at FROM documents WHERE id = ? AND collection = ?`

	var (
		body      string
		createdAt time.Time
	)
	err := ds.db.QueryRowContext(ctx, query, docID, ds.collection).Scan(&body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, docID)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	var record models.MetadataRecord
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	record.ID = docID
	record.CreatedAt = createdAt

	span.SetAttributes(attribute.Bool("found", true))
	return &record, nil
}
