package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"toonify/internal/infra"
)

// Dial connects to the broker, retrying with exponential backoff.
func Dial(ctx context.Context, url string, logger *infra.Logger) (*amqp.Connection, error) {
	if logger == nil {
		logger = infra.NopLogger()
	}
	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn().Err(err).Msg("events: broker unreachable, retrying")
			return nil, err
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(5))
	if err != nil {
		return nil, fmt.Errorf("events: dial broker: %w", err)
	}
	logger.Info().Msg("events: connected to broker")
	return conn, nil
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       channel
	exchange string
	logger   *infra.Logger
}

// NewAMQPPublisher opens a channel on conn and declares exchange.
func NewAMQPPublisher(conn *amqp.Connection, exchange string, logger *infra.Logger) (*AMQPPublisher, error) {
	if conn == nil {
		return nil, errors.New("events: connection is required")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}
	return newPublisher(ch, exchange, logger), nil
}

func newPublisher(ch channel, exchange string, logger *infra.Logger) *AMQPPublisher {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, logger: logger}
}

// Publish sends evt as persistent JSON routed by its status.
func (p *AMQPPublisher) Publish(ctx context.Context, evt TransformEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, evt.RoutingKey(), false, false, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", evt.RoutingKey(), err)
	}
	p.logger.Debug().Str("routing_key", evt.RoutingKey()).Str("prediction_id", evt.PredictionID).Msg("events: published")
	return nil
}

// Close releases the channel.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
