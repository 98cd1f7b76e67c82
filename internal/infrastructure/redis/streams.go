package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/outbox"
	"github.com/redis/go-redis/v9"
)

const (
	SalesStream = "realestate:sales"
	DLQStream   = "realestate:sales:dlq"
)

// StreamProducer appends outbox events to Redis streams.
type StreamProducer struct {
	client *redis.Client
	maxLen int64
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client, maxLen: 100_000}
}

// Publish writes the entry to the sales stream and returns the stream message id.
func (p *StreamProducer) Publish(ctx context.Context, entry *outbox.Entry) (string, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event data: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: SalesStream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":     entry.ID.String(),
			"event_type":   entry.EventType,
			"aggregate_id": entry.AggregateID,
			"payload":      string(payload),
			"timestamp":    time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish sale event: %w", err)
	}
	return id, nil
}

// PublishToDLQ parks an entry the relay gave up on.
func (p *StreamProducer) PublishToDLQ(ctx context.Context, entry *outbox.Entry, reason string) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ data: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DLQStream,
		Values: map[string]any{
			"event_id":   entry.ID.String(),
			"event_type": entry.EventType,
			"reason":     reason,
			"payload":    string(payload),
			"timestamp":  time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}
	return nil
}
