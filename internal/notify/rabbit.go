package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const exchangeName = "booking.events"

// RabbitNotifier publishes booking events to a RabbitMQ topic exchange with
// the event type as routing key, so downstream consumers (mail, SMS, push)
// can bind to the subset they care about.
type RabbitNotifier struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func NewRabbitNotifier(url string) (*RabbitNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitNotifier{conn: conn, ch: ch}, nil
}

func (n *RabbitNotifier) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = n.ch.PublishWithContext(ctx, exchangeName, ev.Type, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}

	return nil
}

func (n *RabbitNotifier) Close() error {
	if err := n.ch.Close(); err != nil {
		_ = n.conn.Close()
		return err
	}
	return n.conn.Close()
}
