package events

import (
	"context"
	"fmt"
	"time"

	"cart-service/internal/service"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel: нужная нам часть *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher шлёт события в topic exchange, routing key = тип события.
type AMQPPublisher struct {
	ch       Channel
	exchange string
}

func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

var _ service.EventBus = (*AMQPPublisher)(nil)

func (p *AMQPPublisher) PublishCartEvent(ctx context.Context, e service.CartEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	key, body, err := encode(e)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, string(e.Type), false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: string(key),
		Timestamp:     e.OccurredAt,
		Type:          string(e.Type),
		Body:          body,
	})
}

// AMQPConnection держит соединение и канал, объявляет exchange при старте.
type AMQPConnection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(url, exchange string) (*AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}
	return &AMQPConnection{conn: conn, ch: ch}, nil
}

func (c *AMQPConnection) Channel() *amqp.Channel { return c.ch }

func (c *AMQPConnection) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}
