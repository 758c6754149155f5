package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventHandler processes one decoded Envelope.
type EventHandler func(ctx context.Context, envelope Envelope) error

// Dispatcher routes decoded envelopes to typed handlers keyed by event
// type, the shape broker.Handler expects (spec.md §4.8: "Consumer...
// dispatches to typed handlers").
type Dispatcher struct {
	handlers map[Type]EventHandler
}

// NewDispatcher builds an empty Dispatcher; register handlers with On.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Type]EventHandler)}
}

// On registers handler for eventType, replacing any previous registration.
func (d *Dispatcher) On(eventType Type, handler EventHandler) {
	d.handlers[eventType] = handler
}

// Handle decodes body as an Envelope and dispatches it to the registered
// handler for its EventType. An envelope with no registered handler is
// ignored: the consumer may be bound to a broader pattern than it cares
// to act on.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("events: decode envelope: %w", err)
	}
	handler, ok := d.handlers[envelope.EventType]
	if !ok {
		return nil
	}
	return handler(ctx, envelope)
}
