package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/auditflow/auditflow/internal/ports"
	"github.com/go-redis/redis/v8"
)

// channelPublisher is the subset of the Redis client the publisher needs
type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// EventPublisher implements ports.EventPublisher over Redis Pub/Sub. Events
// are JSON encoded and published on a single channel.
type EventPublisher struct {
	client  channelPublisher
	channel string
}

// NewEventPublisher creates a new Redis event publisher
func NewEventPublisher(client channelPublisher, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

// Publish publishes a domain event
func (p *EventPublisher) Publish(ctx context.Context, event ports.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}
	return nil
}
