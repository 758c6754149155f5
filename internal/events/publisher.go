package events

import "context"

// Publisher is the subset of *broker.Broker the event publisher needs,
// kept narrow so callers can fake it in tests without standing up AMQP.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, payload interface{}) error
}

// Publish builds an Envelope and publishes it with routing key equal to
// the event type, as the topic-exchange convention requires (spec.md §4.8,
// §5).
func Publish(ctx context.Context, p Publisher, eventType Type, jobID, sourceComponent string, payload any) error {
	envelope := New(eventType, jobID, sourceComponent, ToMap(payload))
	return p.PublishEvent(ctx, string(eventType), envelope)
}
