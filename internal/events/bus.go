package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-travio/internal/store"
)

// EventStore persists emitted events. Insertion happens before fan-out so a
// crashed notifier never loses the record of what happened to a booking.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (store.DomainEvent, error)
}

// DeliveryScheduler enqueues asynchronous work for an event, typically a
// notification task on the Redis queue.
type DeliveryScheduler interface {
	Schedule(ctx context.Context, event store.DomainEvent) error
}

// Notifier is a synchronous listener, run inline on Emit.
type Notifier interface {
	Notify(ctx context.Context, event store.DomainEvent) error
}

// Bus records booking lifecycle events and fans them out. Fan-out failures
// are joined and reported, but the persisted event stands either way.
type Bus struct {
	Store     EventStore
	Scheduler DeliveryScheduler
	Notifiers []Notifier
}

// Emit validates, persists, and dispatches one event. The returned event is
// valid whenever the persist step succeeded, even if dispatch errors.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload any) (store.DomainEvent, error) {
	if b == nil || b.Store == nil {
		return store.DomainEvent{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return store.DomainEvent{}, errors.New("events: topic is required")
	case !aggregateID.Valid:
		return store.DomainEvent{}, errors.New("events: aggregate id is required")
	}

	encoded, err := encodePayload(payload)
	if err != nil {
		return store.DomainEvent{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, encoded)
	if err != nil {
		return store.DomainEvent{}, fmt.Errorf("events: persist event: %w", err)
	}

	var dispatchErr error
	if b.Scheduler != nil {
		if err := b.Scheduler.Schedule(ctx, ev); err != nil {
			dispatchErr = errors.Join(dispatchErr, fmt.Errorf("events: schedule deliveries: %w", err))
		}
	}
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			dispatchErr = errors.Join(dispatchErr, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return ev, dispatchErr
}

// encodePayload accepts pre-encoded JSON or any marshalable value; nil and
// empty inputs become an empty object so the column stays non-null.
func encodePayload(payload any) ([]byte, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case string:
		raw = []byte(strings.TrimSpace(v))
	default:
		return json.Marshal(v)
	}
	if len(raw) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), raw...), nil
}
