package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maneesh/langdrop/internal/models"
)

// DefaultMaxUploadBytes is the request body ceiling (5 MiB)
const DefaultMaxUploadBytes = 5 * 1024 * 1024

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort    string
	ServiceName    string
	MaxUploadBytes int64

	// Blob storage configuration
	StorageEndpoint     string
	StorageAccessKey    string
	StorageSecretKey    string
	StorageBucket       string
	StorageRegion       string
	StorageUseSSL       bool
	StorageCreateBucket bool
	PublicBaseURL       string

	// Metadata sink selection
	MetadataSink  models.SinkVariant
	MetadataAwait bool
	BlobAckGrace  time.Duration

	// TiDB configuration (document variant)
	TiDBHost           string
	TiDBPort           string
	TiDBUser           string
	TiDBPassword       string
	TiDBDatabase       string
	DocumentCollection string

	// Redis configuration (queue variant)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	QueueTopic    string

	// Jaeger configuration
	JaegerEndpoint string
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	maxUpload, err := getEnvAsBytes("MAX_UPLOAD_SIZE", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	grace, err := getEnvAsDuration("BLOB_ACK_GRACE", 0)
	if err != nil {
		return nil, err
	}

	config := &Config{
		ServicePort:    getEnv("SERVICE_PORT", "8080"),
		ServiceName:    getEnv("SERVICE_NAME", "langdrop"),
		MaxUploadBytes: maxUpload,

		StorageEndpoint:     getEnv("STORAGE_ENDPOINT", "storage.googleapis.com"),
		StorageAccessKey:    getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey:    getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:       getEnv("STORAGE_BUCKET", "langdrop"),
		StorageRegion:       getEnv("STORAGE_REGION", ""),
		StorageUseSSL:       getEnvAsBool("STORAGE_USE_SSL", true),
		StorageCreateBucket: getEnvAsBool("STORAGE_CREATE_BUCKET", false),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "https://storage.googleapis.com"),

		MetadataSink:  models.SinkVariant(getEnv("METADATA_SINK", string(models.SinkDocument))),
		MetadataAwait: getEnvAsBool("METADATA_AWAIT", false),
		BlobAckGrace:  grace,

		TiDBHost:           getEnv("TIDB_HOST", "localhost"),
		TiDBPort:           getEnv("TIDB_PORT", "4000"),
		TiDBUser:           getEnv("TIDB_USER", "root"),
		TiDBPassword:       getEnv("TIDB_PASSWORD", ""),
		TiDBDatabase:       getEnv("TIDB_DATABASE", "langdrop"),
		DocumentCollection: getEnv("DOCUMENT_COLLECTION", "userdata"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		QueueTopic:    getEnv("QUEUE_TOPIC", "uploads"),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "localhost:4318"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that have no usable default
func (c *Config) Validate() error {
	switch c.MetadataSink {
	case models.SinkDocument, models.SinkQueue:
	default:
		return fmt.Errorf("unknown METADATA_SINK %q (want %q or %q)", c.MetadataSink, models.SinkDocument, models.SinkQueue)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadBytes)
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET must not be empty")
	}
	if c.BlobAckGrace < 0 {
		return fmt.Errorf("BLOB_ACK_GRACE must not be negative")
	}
	return nil
}

// GetDSN returns the TiDB connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBytes accepts plain integers or sizes such as "5MiB" or "10MB"
func getEnvAsBytes(key string, defaultValue int64) (int64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := humanize.ParseBytes(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return int64(value), nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	return value, nil
}
