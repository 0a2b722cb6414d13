// Package pipeline accepts one uploaded file, hands it to the blob sink and
// the metadata sink on detached goroutines, and answers the caller without
// waiting for either of them.
//
// Consistency is weak: a success response means the upload was
// accepted, not that the blob is durable, public, or described by a metadata
// record. By default the response carries no record identifier, because the
// identifier is not known when the response is built. With AwaitMetadata set
// the pipeline waits for propagation and includes the identifier that was
// actually assigned.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/maneesh/langdrop/internal/metrics"
	"github.com/maneesh/langdrop/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("langdrop-pipeline")

// BlobSink is the durable object store
type BlobSink interface {
	Bucket() string
	PublicURL(objectName string) string
	Write(ctx context.Context, objectName, contentType string, r io.Reader, size int64) (*models.StoredBlob, error)
	MakePublic(ctx context.Context, objectName string) error
}

// MetadataSink accepts one record and returns the identifier it assigned
type MetadataSink interface {
	Variant() models.SinkVariant
	Propagate(ctx context.Context, record models.MetadataRecord) (string, error)
}

// Options tune how long Handle may wait before answering
type Options struct {
	// AwaitMetadata makes Handle wait for propagation and report the id.
	AwaitMetadata bool
	// BlobAckGrace bounds the wait for an early blob write failure.
	// Zero only picks up failures that already happened.
	BlobAckGrace time.Duration
	Observer     *metrics.Observer
}

// Pipeline drives one upload through both sinks
type Pipeline struct {
	blobs         BlobSink
	meta          MetadataSink
	awaitMetadata bool
	ackGrace      time.Duration
	observer      *metrics.Observer

	tasks sync.WaitGroup
}

type propagation struct {
	id  string
	err error
}

// New creates a pipeline. Both sinks must be safe for concurrent use.
func New(blobs BlobSink, meta MetadataSink, opts Options) *Pipeline {
	return &Pipeline{
		blobs:         blobs,
		meta:          meta,
		awaitMetadata: opts.AwaitMetadata,
		ackGrace:      opts.BlobAckGrace,
		observer:      opts.Observer,
	}
}

// Handle accepts req and returns as soon as the sink work has been started
func (p *Pipeline) Handle(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error) {
	ctx, span := tracer.Start(ctx, "upload_pipeline",
		trace.WithAttributes(attribute.String("metadata_sink", string(p.meta.Variant()))),
	)
	defer span.End()

	if req == nil || req.File == nil {
		p.observer.RecordUpload(metrics.OutcomeRejected)
		return nil, &ValidationError{Reason: NoFileMessage}
	}
	file := req.File

	// Computed before any I/O so the response never depends on the sinks.
	publicURL := p.blobs.PublicURL(file.Name)
	span.SetAttributes(
		attribute.String("file_name", file.Name),
		attribute.Int64("file_size", file.Size()),
		attribute.String("public_url", publicURL),
	)

	// Sink work outlives the request: a client disconnect must not cancel it.
	detached := context.WithoutCancel(ctx)

	blobDone := p.startBlobWrite(detached, file)
	metaDone := p.startPropagation(detached, models.MetadataRecord{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		BucketName:     p.blobs.Bucket(),
		FileName:       file.Name,
		PublicURL:      publicURL,
	})

	if err := p.earlyBlobError(blobDone); err != nil {
		span.RecordError(err)
		p.observer.RecordUpload(metrics.OutcomeFailed)
		return nil, err
	}

	log.Printf("Source Language: %s", req.SourceLanguage)
	log.Printf("Target Language: %s", req.TargetLanguage)
	log.Printf("Bucket Name: %s", p.blobs.Bucket())
	log.Printf("File Name: %s", file.Name)
	log.Printf("Public Url: %s", publicURL)

	message := fmt.Sprintf("Success! File uploaded to %s and %s", publicURL, acknowledgement(p.meta.Variant()))
	if p.awaitMetadata {
		select {
		case res := <-metaDone:
			if res.err == nil {
				message += " with " + res.id
			}
		case <-ctx.Done():
		}
	}

	p.observer.RecordUpload(metrics.OutcomeAccepted)
	return &models.UploadResponse{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Message:        message,
	}, nil
}

// Drain waits for every detached sink task to finish or for ctx to expire
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining upload tasks: %w", ctx.Err())
	}
}

// startBlobWrite writes the file and then makes it public. The returned
// channel receives the write result exactly once.
func (p *Pipeline) startBlobWrite(ctx context.Context, file *models.FileUpload) <-chan error {
	done := make(chan error, 1)

	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()

		ctx, span := tracer.Start(ctx, "blob_branch",
			trace.WithAttributes(attribute.String("object_name", file.Name)),
		)
		defer span.End()

		start := time.Now()
		blob, err := p.blobs.Write(ctx, file.Name, file.MimeType, bytes.NewReader(file.Data), file.Size())
		p.observer.RecordBlobWrite(time.Since(start), file.Size(), err)
		if err != nil {
			werr := &BlobWriteError{ObjectName: file.Name, Err: err}
			span.RecordError(werr)
			log.Printf("Error: %v", werr)
			done <- werr
			return
		}
		done <- nil

		if err := p.blobs.MakePublic(ctx, file.Name); err != nil {
			perr := &MakePublicError{ObjectName: file.Name, Err: err}
			span.RecordError(perr)
			p.observer.RecordMakePublic(perr)
			log.Printf("Warning: %v", perr)
			return
		}
		blob.Visibility = models.VisibilityPublic
		log.Printf("Blob %s is %s at %s", blob.ObjectName, blob.Visibility, blob.PublicURL)
	}()

	return done
}

// startPropagation sends record to the metadata sink. Failures are logged
// and never retried.
func (p *Pipeline) startPropagation(ctx context.Context, record models.MetadataRecord) <-chan propagation {
	done := make(chan propagation, 1)
	variant := p.meta.Variant()

	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()

		ctx, span := tracer.Start(ctx, "metadata_branch",
			trace.WithAttributes(attribute.String("variant", string(variant))),
		)
		defer span.End()

		id, err := p.meta.Propagate(ctx, record)
		p.observer.RecordPropagation(string(variant), err)
		if err != nil {
			perr := &MetadataPropagationError{Variant: variant, FileName: record.FileName, Err: err}
			span.RecordError(perr)
			log.Printf("Warning: %v", perr)
			done <- propagation{err: perr}
			return
		}

		span.SetAttributes(attribute.String("record_id", id))
		log.Printf("Metadata record %s created for %s", id, record.FileName)
		done <- propagation{id: id}
	}()

	return done
}

// earlyBlobError reports a blob failure observed before the response is
// built. Success or silence within the grace window yields nil.
func (p *Pipeline) earlyBlobError(done <-chan error) error {
	if p.ackGrace <= 0 {
		select {
		case err := <-done:
			return err
		default:
			return nil
		}
	}

	timer := time.NewTimer(p.ackGrace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return nil
	}
}

func acknowledgement(variant models.SinkVariant) string {
	if variant == models.SinkQueue {
		return "message published"
	}
	return "database updated"
}
