package domain

import (
	"context"
	"time"
)

// ChangeType names what happened to the tests collection.
type ChangeType string

const (
	ChangeCreated ChangeType = "test.created"
	ChangeUpdated ChangeType = "test.updated"
	ChangeDeleted ChangeType = "test.deleted"
	ChangeCleared ChangeType = "tests.cleared"
)

// ChangeEvent is broadcast to other instances after a local write succeeds.
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	TestID     string     `json:"testId,omitempty"`
	Status     TestStatus `json:"status,omitempty"`
	Source     string     `json:"source"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// ChangeBus is the port for fanning change events out across API instances.
type ChangeBus interface {
	Publish(ctx context.Context, event ChangeEvent) error
	// Subscribe delivers events until ctx is cancelled or the returned close func is called.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, func() error, error)
}

// EventPublisher is the port for durable lifecycle notifications consumed by
// downstream services (notifications, analytics).
type EventPublisher interface {
	PublishTestEvent(ctx context.Context, event ChangeEvent) error
	Close() error
}
