package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/maneesh/langdrop/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("langdrop-storage")

const publicReadACL = "public-read"

// objectAPI is the subset of *minio.Client used by BlobStore
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
}

// BlobStore writes uploaded files to an S3-compatible bucket (GCS interop or MinIO)
type BlobStore struct {
	client        objectAPI
	bucketName    string
	publicBaseURL string
}

// BlobStoreOptions configures NewBlobStore
type BlobStoreOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	BucketName    string
	PublicBaseURL string
	UseSSL        bool
	CreateBucket  bool
}

// NewBlobStore initializes a new object storage client
func NewBlobStore(ctx context.Context, opts BlobStoreOptions) (*BlobStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	bs := newBlobStore(client, opts.BucketName, opts.PublicBaseURL)
	if opts.CreateBucket {
		if err := bs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return bs, nil
}

func newBlobStore(client objectAPI, bucketName, publicBaseURL string) *BlobStore {
	return &BlobStore{
		client:        client,
		bucketName:    bucketName,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// EnsureBucket creates the bucket when it does not exist yet
func (bs *BlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := bs.client.BucketExists(ctx, bs.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	log.Printf("Creating bucket: %s", bs.bucketName)
	if err := bs.client.MakeBucket(ctx, bs.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	log.Printf("Bucket %s created successfully", bs.bucketName)
	return nil
}

// Bucket returns the configured bucket name
func (bs *BlobStore) Bucket() string {
	return bs.bucketName
}

// PublicURL derives the address an object is served from once public.
// The object name is used as given.
func (bs *BlobStore) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.bucketName, objectName)
}

// Write streams r into the bucket under objectName. An existing object with
// the same name is overwritten. The new object is private until MakePublic.
func (bs *BlobStore) Write(ctx context.Context, objectName, contentType string, r io.Reader, size int64) (*models.StoredBlob, error) {
	ctx, span := tracer.Start(ctx, "blob.write",
		trace.WithAttributes(
			attribute.String("bucket", bs.bucketName),
			attribute.String("object_name", objectName),
			attribute.String("content_type", contentType),
			attribute.Int64("size_bytes", size),
		),
	)
	defer span.End()

	_, err := bs.client.PutObject(ctx, bs.bucketName, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to write object %s: %w", objectName, err)
	}

	span.SetAttributes(attribute.Bool("write_success", true))
	return &models.StoredBlob{
		BucketName:  bs.bucketName,
		ObjectName:  objectName,
		PublicURL:   bs.PublicURL(objectName),
		ContentType: contentType,
		Visibility:  models.VisibilityPrivate,
	}, nil
}

// MakePublic grants anonymous read on one object by copying it onto itself
// with a public-read ACL. The stored content type is carried over.
func (bs *BlobStore) MakePublic(ctx context.Context, objectName string) error {
	ctx, span := tracer.Start(ctx, "blob.make_public",
		trace.WithAttributes(
			attribute.String("bucket", bs.bucketName),
			attribute.String("object_name", objectName),
		),
	)
	defer span.End()

	info, err := bs.client.StatObject(ctx, bs.bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}

	meta := map[string]string{"x-amz-acl": publicReadACL}
	if info.ContentType != "" {
		meta["Content-Type"] = info.ContentType
	}

	_, err = bs.client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          bs.bucketName,
			Object:          objectName,
			UserMetadata:    meta,
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{
			Bucket: bs.bucketName,
			Object: objectName,
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to make object %s public: %w", objectName, err)
	}

	span.SetAttributes(attribute.Bool("public", true))
	return nil
}
