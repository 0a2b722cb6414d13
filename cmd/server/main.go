package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/langdrop/internal/config"
	"github.com/maneesh/langdrop/internal/handlers"
	"github.com/maneesh/langdrop/internal/metrics"
	"github.com/maneesh/langdrop/internal/models"
	"github.com/maneesh/langdrop/internal/payload"
	"github.com/maneesh/langdrop/internal/pipeline"
	"github.com/maneesh/langdrop/internal/storage"
	"github.com/maneesh/langdrop/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metadataSink interface {
	pipeline.MetadataSink
	handlers.RecordReader
	Close() error
}

func main() {
	log.Println("Starting upload gateway...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s, Metadata sink: %s", cfg.ServiceName, cfg.ServicePort, cfg.MetadataSink)

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize blob storage client
	log.Println("Connecting to blob storage...")
	blobStore, err := storage.NewBlobStore(ctx, storage.BlobStoreOptions{
		Endpoint:      cfg.StorageEndpoint,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		Region:        cfg.StorageRegion,
		BucketName:    cfg.StorageBucket,
		PublicBaseURL: cfg.PublicBaseURL,
		UseSSL:        cfg.StorageUseSSL,
		CreateBucket:  cfg.StorageCreateBucket,
	})
	if err != nil {
		log.Fatalf("Failed to initialize blob storage client: %v", err)
	}
	log.Printf("Blob storage client initialized (bucket %s)", blobStore.Bucket())

	// Initialize the metadata sink for this deployment
	sink, err := newMetadataSink(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s metadata sink: %v", cfg.MetadataSink, err)
	}
	defer sink.Close()

	observer, err := metrics.NewObserver("langdrop", prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	uploads := pipeline.New(blobStore, sink, pipeline.Options{
		AwaitMetadata: cfg.MetadataAwait,
		BlobAckGrace:  cfg.BlobAckGrace,
		Observer:      observer,
	})

	uploadHandler := handlers.NewUploadHandler(uploads, payload.NewReader(cfg.MaxUploadBytes))
	recordHandler := handlers.NewRecordHandler(sink)
	router := handlers.NewRouter(uploadHandler, recordHandler, promhttp.Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("App listening on port %s", cfg.ServicePort)
		log.Println("Press Ctrl+C to quit.")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Let detached blob and metadata work finish before closing clients
	if err := uploads.Drain(shutdownCtx); err != nil {
		log.Printf("Warning: %v", err)
	}

	log.Println("Server exited")
}

func newMetadataSink(ctx context.Context, cfg *config.Config) (metadataSink, error) {
	switch cfg.MetadataSink {
	case models.SinkQueue:
		log.Println("Connecting to Redis...")
		client, err := storage.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Printf("Redis client initialized (topic %s)", cfg.QueueTopic)
		return storage.NewQueuePublisher(client, cfg.QueueTopic), nil
	default:
		log.Println("Connecting to TiDB...")
		db, err := storage.NewTiDBClient(cfg.GetDSN())
		if err != nil {
			return nil, err
		}
		docs := storage.NewDocumentStore(db, cfg.DocumentCollection)
		if err := docs.EnsureSchema(ctx); err != nil {
			docs.Close()
			return nil, err
		}
		log.Printf("TiDB client initialized (collection %s)", cfg.DocumentCollection)
		return docs, nil
	}
}
