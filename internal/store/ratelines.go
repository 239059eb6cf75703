package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RateLine is one priced slice of an inventory unit.
type RateLine struct {
	ID        pgtype.UUID
	UnitID    pgtype.UUID
	SlotKey   string
	Price     int64
	Remaining int32
}

// InventoryUnit identifies a bookable resource.
type InventoryUnit struct {
	ID        pgtype.UUID
	Vertical  string
	PartnerID pgtype.UUID
	Name      string
	Currency  string
}

const getInventoryUnit = `
SELECT id, vertical, partner_id, name, currency
FROM inventory_units
WHERE id = $1`

// GetInventoryUnit loads the unit header row.
func (s *Store) GetInventoryUnit(ctx context.Context, id pgtype.UUID) (InventoryUnit, error) {
	var u InventoryUnit
	err := s.db.QueryRow(ctx, getInventoryUnit, id).
		Scan(&u.ID, &u.Vertical, &u.PartnerID, &u.Name, &u.Currency)
	return u, err
}

const listRateLinesForRange = `
SELECT id, unit_id, slot_key, price, remaining
FROM rate_lines
WHERE unit_id = $1 AND slot_key >= $2 AND slot_key < $3
ORDER BY slot_key`

// ListRateLinesForRange returns the rate rows covering [start, end) for a
// date-ranged unit. Slot keys are stored as ISO dates so string comparison
// matches date order.
func (s *Store) ListRateLinesForRange(ctx context.Context, unitID pgtype.UUID, start, end time.Time) ([]RateLine, error) {
	rows, err := s.db.Query(ctx, listRateLinesForRange, unitID, start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RateLine
	for rows.Next() {
		var l RateLine
		if err := rows.Scan(&l.ID, &l.UnitID, &l.SlotKey, &l.Price, &l.Remaining); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const getRateLine = `
SELECT id, unit_id, slot_key, price, remaining
FROM rate_lines
WHERE unit_id = $1 AND ($2 = '' OR slot_key = $2)
ORDER BY slot_key
LIMIT 1`

// GetRateLine returns the rate row for a quantity-based unit. Flights and
// entertainment sessions carry a single line per offer, so an empty slot key
// selects it directly.
func (s *Store) GetRateLine(ctx context.Context, unitID pgtype.UUID, slotKey string) (*RateLine, error) {
	var l RateLine
	err := s.db.QueryRow(ctx, getRateLine, unitID, slotKey).
		Scan(&l.ID, &l.UnitID, &l.SlotKey, &l.Price, &l.Remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const decrementRateLine = `
UPDATE rate_lines
SET remaining = remaining - $2
WHERE id = $1 AND remaining >= $2`

// DecrementRateLine atomically reserves capacity. The affected row count is
// the actual success signal: zero means a concurrent booking won the race and
// the earlier availability read was stale.
func (s *Store) DecrementRateLine(ctx context.Context, id pgtype.UUID, quantity int32) (int64, error) {
	tag, err := s.db.Exec(ctx, decrementRateLine, id, quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const incrementRateLine = `
UPDATE rate_lines
SET remaining = remaining + $2
WHERE id = $1`

// IncrementRateLine releases capacity, used on cancellation.
func (s *Store) IncrementRateLine(ctx context.Context, id pgtype.UUID, quantity int32) error {
	_, err := s.db.Exec(ctx, incrementRateLine, id, quantity)
	return err
}
