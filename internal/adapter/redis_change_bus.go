package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"placement-tests/internal/cache"
	"placement-tests/internal/domain"
	"placement-tests/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeChannel is the Redis pub/sub channel that carries test change events.
var ChangeChannel = cache.GenerateCacheKey("tests", "events", "changes")

// RedisChangeBus fans change events out to every API instance over Redis pub/sub.
type RedisChangeBus struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

// NewRedisChangeBus creates a new instance of RedisChangeBus
func NewRedisChangeBus(client *redis.Client) *RedisChangeBus {
	return &RedisChangeBus{client: client, channel: ChangeChannel, log: logger.Get()}
}

var _ domain.ChangeBus = (*RedisChangeBus)(nil)

func (b *RedisChangeBus) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to publish change event to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe confirms the subscription before returning. The event channel is
// closed when ctx ends or the returned close func is called.
func (b *RedisChangeBus) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func() error, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan domain.ChangeEvent)
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				ps.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				event, err := decodeChangeEvent(msg.Payload)
				if err != nil {
					b.log.Warn("Skipping undecodable change event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					ps.Close()
					return
				}
			}
		}
	}()
	return out, ps.Close, nil
}

func decodeChangeEvent(payload string) (domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return domain.ChangeEvent{}, err
	}
	switch event.Type {
	case domain.ChangeCreated, domain.ChangeUpdated, domain.ChangeDeleted, domain.ChangeCleared:
	default:
		return domain.ChangeEvent{}, fmt.Errorf("unknown change type %q", event.Type)
	}
	return event, nil
}
