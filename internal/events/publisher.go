package events

import (
	"context"
	"fmt"

	"stazy/pkg/kafka"
	"stazy/pkg/model"
)

// Publisher emits booking lifecycle notifications.
type Publisher interface {
	PublishBookingCreated(ctx context.Context, b *model.Booking) error
}

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer messagePublisher
	source   string
}

func NewKafkaPublisher(producer messagePublisher, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

// PublishBookingCreated keys the message by booking id so every event of a
// booking lands on the same partition.
func (p *KafkaPublisher) PublishBookingCreated(ctx context.Context, b *model.Booking) error {
	if b.ID == "" {
		return fmt.Errorf("cannot publish %s for a booking without id", TypeBookingCreated)
	}
	payload := NewBookingCreated(b)

	msg, err := kafka.NewMessage().
		WithKey(b.ID).
		WithValue(payload).
		WithEventID(payload.EventID()).
		WithEventType(TypeBookingCreated).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s message: %w", TypeBookingCreated, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for booking %s: %w", TypeBookingCreated, b.ID, err)
	}
	return nil
}
