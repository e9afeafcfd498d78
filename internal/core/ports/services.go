package ports

import (
	"context"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishAgentPosition(ctx context.Context, pos domain.AgentPosition) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeAgentPositions(ctx context.Context, handler func(ctx context.Context, pos domain.AgentPosition) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
