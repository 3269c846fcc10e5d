package eventbus

import "context"

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	// Publish sends a message to the event bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// NoopPublisher discards all messages. Used when no broker is configured.
type NoopPublisher struct{}

// Publish discards the message.
func (NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	return nil
}

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
