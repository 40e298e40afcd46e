package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeSchemaSaved            EventType = "schema_saved"
	EventTypeSchemaReverted         EventType = "schema_reverted"
	EventTypeDefaultSchemaChanged   EventType = "default_schema_changed"
	EventTypeMemberValuesCalculated EventType = "member_values_calculated"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// SchemaSavedEvent is emitted after a schema version is committed
type SchemaSavedEvent struct {
	SchemaID        string `json:"schemaId"`
	GroupID         string `json:"groupId"`
	Version         int    `json:"version"`
	PreviousVersion int    `json:"previousVersion"`
	ColumnCount     int    `json:"columnCount"`
	IsDefault       bool   `json:"isDefault"`
	SavedBy         string `json:"savedBy"`
}

func (e SchemaSavedEvent) Type() EventType {
	return EventTypeSchemaSaved
}

// SchemaRevertedEvent is emitted after a schema is rolled back to its
// previous version
type SchemaRevertedEvent struct {
	SchemaID    string `json:"schemaId"`
	GroupID     string `json:"groupId"`
	FromVersion int    `json:"fromVersion"`
	ToVersion   int    `json:"toVersion"`
	RevertedBy  string `json:"revertedBy"`
}

func (e SchemaRevertedEvent) Type() EventType {
	return EventTypeSchemaReverted
}

// DefaultSchemaChangedEvent is emitted when a group's default schema changes
type DefaultSchemaChangedEvent struct {
	GroupID  string `json:"groupId"`
	SchemaID string `json:"schemaId"`
}

func (e DefaultSchemaChangedEvent) Type() EventType {
	return EventTypeDefaultSchemaChanged
}

// MemberValuesCalculatedEvent is emitted after a batch of member rows has
// been evaluated and stored
type MemberValuesCalculatedEvent struct {
	GroupID       string `json:"groupId"`
	PeriodID      string `json:"periodId,omitempty"`
	SchemaID      string `json:"schemaId"`
	SchemaVersion int    `json:"schemaVersion"`
	MemberCount   int    `json:"memberCount"`
	FailedCells   int    `json:"failedCells"`
	CalculatedBy  string `json:"calculatedBy"`
}

func (e MemberValuesCalculatedEvent) Type() EventType {
	return EventTypeMemberValuesCalculated
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every listed event type
func (b *Bus) SubscribeAll(handler Handler, eventTypes ...EventType) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines; a panicking handler is logged and does not affect others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event until commit")
	b.pending = append(b.pending, e)
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush is called after a successful commit. Events are emitted with a
// background context since the transaction's context may already be done.
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events")

	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
