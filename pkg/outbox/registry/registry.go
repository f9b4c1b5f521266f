// Package registry decides where each outbox event goes and checks that a
// stored row still decodes into the payload its consumers expect.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type to a Kafka topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is a row that passed every check and may be published.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "outbox event cannot be published"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// route builds a descriptor whose payload decodes strictly into T.
func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry sends order lifecycle events to the orders topic and
// rank or voucher events to the rewards topic.
func NewEventRegistry(cfg config.KafkaConfig) (*EventRegistry, error) {
	var missing []error
	if cfg.OrdersTopic == "" {
		missing = append(missing, errors.New("orders topic is required"))
	}
	if cfg.RewardsTopic == "" {
		missing = append(missing, errors.New("rewards topic is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	orders, rewards := cfg.OrdersTopic, cfg.RewardsTopic
	descriptors := []EventDescriptor{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, orders),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, orders),
		route[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder, orders),
		route[payloads.OrderPaymentFailedEvent](enums.EventOrderPaymentFailed, enums.AggregateOrder, orders),
		route[payloads.SpinCompletedEvent](enums.EventSpinCompleted, enums.AggregateUserRank, rewards),
		route[payloads.VouchersExpiredEvent](enums.EventVouchersExpired, enums.AggregateCoupon, rewards),
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.routes[d.EventType] = d
	}
	return reg, nil
}

// Topic reports where eventType is published.
func (r *EventRegistry) Topic(eventType enums.OutboxEventType) (string, bool) {
	d, ok := r.routes[eventType]
	return d.Topic, ok
}

// Resolve checks event against its route. Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, fmt.Errorf("no route for event type %q", event.EventType)
	case d.AggregateType != event.AggregateType:
		return nil, fmt.Errorf("%s belongs to %s, row says %s", event.EventType, d.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, fmt.Errorf("%s row %s has no aggregate id", event.EventType, event.ID)
	}

	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	if env.Type != "" && env.Type != event.EventType {
		return nil, fmt.Errorf("envelope carries %s but row is %s", env.Type, event.EventType)
	}
	payload, err := d.decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
