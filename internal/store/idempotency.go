package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const getIdempotentBooking = `
SELECT booking_id FROM idempotency_keys
WHERE requester_id = $1 AND key = $2`

// GetIdempotentBooking returns the booking already settled under the
// idempotency key, if any. Idempotency is never inferred from business
// fields; only a caller-supplied key replays.
func (s *Store) GetIdempotentBooking(ctx context.Context, requesterID pgtype.UUID, key string) (pgtype.UUID, bool, error) {
	var bookingID pgtype.UUID
	err := s.db.QueryRow(ctx, getIdempotentBooking, requesterID, key).Scan(&bookingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgtype.UUID{}, false, nil
	}
	if err != nil {
		return pgtype.UUID{}, false, err
	}
	return bookingID, true, nil
}

const insertIdempotencyKey = `
INSERT INTO idempotency_keys (requester_id, key, booking_id)
VALUES ($1, $2, $3)`

// InsertIdempotencyKey binds the key to the settled booking. The composite
// primary key makes a concurrent duplicate surface as a unique violation.
func (s *Store) InsertIdempotencyKey(ctx context.Context, requesterID pgtype.UUID, key string, bookingID pgtype.UUID) error {
	_, err := s.db.Exec(ctx, insertIdempotencyKey, requesterID, key, bookingID)
	return err
}

// DomainEvent is a persisted fact about an aggregate.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}

const insertDomainEvent = `
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_id, payload, occurred_at`

// InsertDomainEvent appends an event row and returns the stored record.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (DomainEvent, error) {
	var ev DomainEvent
	err := s.db.QueryRow(ctx, insertDomainEvent, topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}
