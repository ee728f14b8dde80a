package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher sends events as persistent JSON messages to a durable queue.
type RabbitMQPublisher struct {
	channel   Channel
	queueName string
	appID     string
	attempts  int
	logger    *zap.Logger
}

var _ Publisher = (*RabbitMQPublisher)(nil)

// NewRabbitMQPublisher opens a channel on conn and declares queueName.
func NewRabbitMQPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: failed to open channel: %w", err)
	}
	p, err := NewRabbitMQPublisherWithChannel(ch, queueName, logger)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return p, nil
}

// NewRabbitMQPublisherWithChannel declares queueName on an open channel.
func NewRabbitMQPublisherWithChannel(ch Channel, queueName string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		return nil, fmt.Errorf("event publisher: failed to declare queue '%s': %w", queueName, err)
	}
	logger.Named("EventPublisher").Info("Queue declared", zap.String("queue", queueName))
	return &RabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		appID:     "story-engine",
		attempts:  3,
		logger:    logger.Named("EventPublisher"),
	}, nil
}

// Publish sends the event, retrying a few times with a short backoff.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // default exchange
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    event.ID.String(),
				Type:         string(event.Type),
				Body:         body,
				Timestamp:    event.Timestamp,
				AppId:        p.appID,
			},
		)
		if err == nil {
			p.logger.Debug("Event published",
				zap.String("queue", p.queueName),
				zap.String("type", string(event.Type)),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		p.logger.Warn("Publish attempt failed",
			zap.String("queue", p.queueName),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to publish to queue %s: %w", p.queueName, ctx.Err())
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("failed to publish to queue %s after retries: %w", p.queueName, err)
}

// Close closes the channel.
func (p *RabbitMQPublisher) Close() error {
	return p.channel.Close()
}
