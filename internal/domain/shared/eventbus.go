package shared

import "context"

// EventHandler reacts to committed domain events delivered from the outbox.
// Delivery is at least once, so handlers are wrapped for idempotency.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types to receive; empty means every type
	EventTypes() []string
}

// EventPublisher hands committed events to their handlers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus routes events published by the outbox processor to subscribed handlers
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
