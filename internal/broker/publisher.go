package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishTask serializes payload to JSON and publishes it to queueName
// over the default direct exchange, with persistent delivery mode
// (spec.md §4.7).
func (b *Broker) PublishTask(ctx context.Context, queueName string, payload interface{}) error {
	if err := b.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("broker: publish task: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: marshal task payload: %w", err)
	}
	return b.Channel().PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// PublishEvent serializes payload to JSON and publishes it to the events
// topic exchange with routing key eventType (spec.md §4.8).
func (b *Broker) PublishEvent(ctx context.Context, eventType string, payload interface{}) error {
	if err := b.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("broker: publish event: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broker: marshal event payload: %w", err)
	}
	return b.Channel().PublishWithContext(ctx, b.cfg.EventsExchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
