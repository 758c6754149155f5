package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body and returns an error to have the
// message negatively acknowledged and redelivered, or nil to ack it.
type Handler func(ctx context.Context, body []byte) error

// Consume declares the given prefetch count and runs handler for every
// message delivered on queueName until shutdownCh is closed or ctx is
// cancelled. On shutdown it stops accepting new deliveries and waits up
// to drainTimeout for the in-flight handler to finish; a handler still
// running past that timeout leaves its message unacknowledged so the
// broker redelivers it (spec.md §4.9, §4.11).
func (b *Broker) Consume(ctx context.Context, queueName string, prefetch int, shutdownCh <-chan struct{}, drainTimeout time.Duration, handler Handler) error {
	if err := b.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("broker: consume: %w", err)
	}
	channel := b.Channel()
	if err := channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("broker: set qos: %w", err)
	}

	deliveries, err := channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %s: %w", queueName, err)
	}

	log := slog.With("component", "broker", "queue", queueName)

	for {
		select {
		case <-shutdownCh:
			log.Info("shutdown requested, stopping consumption", "phase", "shutdown")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: delivery channel for %s closed", queueName)
			}
			b.handleDelivery(ctx, log, delivery, drainTimeout, handler)
		}
	}
}

func (b *Broker) handleDelivery(ctx context.Context, log *slog.Logger, delivery amqp.Delivery, drainTimeout time.Duration, handler Handler) {
	done := make(chan error, 1)
	handlerCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	go func() {
		done <- handler(handlerCtx, delivery.Body)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("handler failed, nacking for redelivery", "error", err)
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				log.Error("nack failed", "error", nackErr)
			}
			return
		}
		if ackErr := delivery.Ack(false); ackErr != nil {
			log.Error("ack failed", "error", ackErr)
		}
	case <-handlerCtx.Done():
		log.Warn("handler exceeded drain timeout, leaving message unacknowledged for redelivery")
	}
}
