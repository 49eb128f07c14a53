package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"autobidder/internal/domain"
)

const decisionChannel = "autobidder:decisions"

type EventPublisherImpl struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client}
}

func (r *EventPublisherImpl) PublishDecisionEvent(ctx context.Context, event *domain.DecisionEvent) error {
	eventData := fmt.Sprintf("%d:%s:%s:%d:%d:%d",
		event.DomainID, event.DomainName, event.Action.String(),
		event.Amount, event.Ceiling, event.Timestamp.Unix())

	return r.client.Publish(ctx, decisionChannel, eventData).Err()
}
