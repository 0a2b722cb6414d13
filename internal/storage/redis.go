package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maneesh/langdrop/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// payloadField is the stream entry field holding the JSON record
const payloadField = "data"

// QueuePublisher publishes metadata records to a Redis stream (the topic)
type QueuePublisher struct {
	client *redis.Client
	topic  string
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// NewQueuePublisher creates a publisher appending to the topic stream
func NewQueuePublisher(client *redis.Client, topic string) *QueuePublisher {
	return &QueuePublisher{client: client, topic: topic}
}

// Close closes the Redis connection
func (qp *QueuePublisher) Close() error {
	return qp.client.Close()
}

// Variant reports the queue sink variant
func (qp *QueuePublisher) Variant() models.SinkVariant {
	return models.SinkQueue
}

// Propagate publishes record as raw JSON text and returns the broker-assigned
// entry id
func (qp *QueuePublisher) Propagate(ctx context.Context, record models.MetadataRecord) (string, error) {
	ctx, span := tracer.Start(ctx, "redis.publish",
		trace.WithAttributes(
			attribute.String("topic", qp.topic),
			attribute.String("file_name", record.FileName),
		),
	)
	defer span.End()

	data, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	messageID, err := qp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: qp.topic,
		ID:     "*",
		Values: map[string]interface{}{payloadField: string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("message_id", messageID))
	return messageID, nil
}

// Lookup reads one published message back from the topic stream
func (qp *QueuePublisher) Lookup(ctx context.Context, messageID string) (*models.MetadataRecord, error) {
	ctx, span := tracer.Start(ctx, "redis.lookup",
		trace.WithAttributes(
			attribute.String("topic", qp.topic),
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	entries, err := qp.client.XRange(ctx, qp.topic, messageID, messageID).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if len(entries) == 0 {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, messageID)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return decodeMessage(entries[0])
}

// decodeMessage turns a stream entry written by Propagate back into a record
func decodeMessage(msg redis.XMessage) (*models.MetadataRecord, error) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no %q field", msg.ID, payloadField)
	}

	var record models.MetadataRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", msg.ID, err)
	}
	record.ID = msg.ID
	return &record, nil
}
