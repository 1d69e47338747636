package domain

import "time"

// Event types
const (
	EventTypeBatchReconciled = "batch.reconciled"
	EventTypeProfileCreated  = "profile.created"
)

// Aggregate types
const (
	AggregateTypeProfile = "profile"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}
