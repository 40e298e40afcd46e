package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"shgcolumns/events"
	"shgcolumns/infrastructure/observability"
)

// MessagePublisher publishes raw bytes to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps every event published on NATS
type EventEnvelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// ForwardedEventTypes are the bus events mirrored to NATS
var ForwardedEventTypes = []events.EventType{
	events.EventTypeSchemaSaved,
	events.EventTypeSchemaReverted,
	events.EventTypeDefaultSchemaChanged,
	events.EventTypeMemberValuesCalculated,
}

// EventForwarder mirrors committed bus events to NATS so other services can
// react to schema changes and new calculations
type EventForwarder struct {
	publisher     MessagePublisher
	subjectPrefix string
	now           func() time.Time
}

// NewEventForwarder creates a forwarder publishing under subjectPrefix
func NewEventForwarder(publisher MessagePublisher, subjectPrefix string) *EventForwarder {
	return &EventForwarder{
		publisher:     publisher,
		subjectPrefix: subjectPrefix,
		now:           time.Now,
	}
}

// Register subscribes the forwarder to every forwarded event type
func (f *EventForwarder) Register(bus *events.Bus) {
	bus.SubscribeAll(f.Handle, ForwardedEventTypes...)
}

// Subject returns the NATS subject for an event type
func (f *EventForwarder) Subject(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", f.subjectPrefix, eventType)
}

// Handle publishes one event. Failures are logged; the event has already
// been committed and is not retried.
func (f *EventForwarder) Handle(ctx context.Context, event events.Event) {
	if err := f.forward(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Warn("Failed to forward event to NATS")
		return
	}
	observability.GetMetrics().RecordNATSMessagePublished(string(event.Type()))
}

func (f *EventForwarder) forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope, err := json.Marshal(EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type()),
		Timestamp:     f.now().UTC(),
		SourceService: "shg-columns",
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	return f.publisher.Publish(ctx, f.Subject(event.Type()), envelope)
}
