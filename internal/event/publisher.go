// Package event publishes test lifecycle events to RabbitMQ for downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"placement-tests/internal/config"
	"placement-tests/internal/domain"
	"placement-tests/internal/logger"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultExchange = "placement.tests"

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
	enabled  bool
	log      *zap.Logger
}

var _ domain.EventPublisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials the broker and declares a durable topic exchange.
// An empty URI returns a disabled publisher whose methods are no-ops.
func NewAMQPPublisher(cfg config.RabbitMQConfig) (*AMQPPublisher, error) {
	log := logger.Get()
	if cfg.URI == "" {
		log.Warn("RabbitMQ URI is empty, event publishing is disabled")
		return &AMQPPublisher{enabled: false, log: log}, nil
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, enabled: true, log: log}, nil
}

// PublishTestEvent routes the event by its type, e.g. "test.created".
func (p *AMQPPublisher) PublishTestEvent(ctx context.Context, event domain.ChangeEvent) error {
	if !p.enabled {
		p.log.Debug("Event publishing is disabled, skipping event", zap.String("type", string(event.Type)))
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(pubCtx, p.exchange, string(event.Type), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.OccurredAt,
		AppId:        event.Source,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.log.Debug("Published event", zap.String("type", string(event.Type)), zap.String("testID", event.TestID))
	return nil
}

func (p *AMQPPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}
