package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/offledger/internal/domain"
)

// DefaultStreamMaxLen caps the stream so it does not grow without bound.
const DefaultStreamMaxLen = 100_000

// RedisStreamPublisher appends events to a Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher creates a publisher writing to stream.
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		maxLen: DefaultStreamMaxLen,
	}
}

// Publish adds the event as one stream entry.
func (p *RedisStreamPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode payload of %s: %w", event.ID, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":       event.ID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
			"payload":        string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}

	return nil
}
