package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log.Named("event_subscriber"),
	}
}

func (r *RedisEventSubscriber) SubscribeToDecisionEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, decisionChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to decision events")

	for {
		select {
		case msg := <-ch:
			event, err := r.parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "event", event, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func (r *RedisEventSubscriber) parseEventData(payload string) (*domain.DecisionEvent, error) {
	// Parse "domainID:domainName:action:amount:ceiling:timestamp"
	parts := strings.Split(payload, ":")
	if len(parts) < 6 {
		return nil, fmt.Errorf("invalid event format: %s", payload)
	}

	domainID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, err
	}

	action, err := parseAction(parts[2])
	if err != nil {
		return nil, err
	}

	amount, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, err
	}

	ceiling, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, err
	}

	timestamp, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return nil, err
	}

	return &domain.DecisionEvent{
		DomainID:   domainID,
		DomainName: parts[1],
		Action:     action,
		Amount:     amount,
		Ceiling:    ceiling,
		Timestamp:  time.Unix(timestamp, 0),
	}, nil
}

func parseAction(s string) (domain.DecisionAction, error) {
	switch s {
	case domain.ActionHold.String():
		return domain.ActionHold, nil
	case domain.ActionPlaceBid.String():
		return domain.ActionPlaceBid, nil
	case domain.ActionEscalate.String():
		return domain.ActionEscalate, nil
	case domain.ActionRetire.String():
		return domain.ActionRetire, nil
	default:
		return domain.ActionHold, fmt.Errorf("unknown decision action: %s", s)
	}
}
