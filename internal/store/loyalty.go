package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// LoyaltyBalance is a snapshot of a requester's points balance.
type LoyaltyBalance struct {
	RequesterID pgtype.UUID
	Balance     int64
	Tier        string
	UpdatedAt   pgtype.Timestamptz
}

const getLoyaltyBalance = `
SELECT requester_id, balance, tier, updated_at
FROM loyalty_balances
WHERE requester_id = $1`

// GetLoyaltyBalance reads the current balance. A missing row is an empty
// balance, not an error. Settlements must re-read this each time; caching a
// balance across requests risks acting on stale state.
func (s *Store) GetLoyaltyBalance(ctx context.Context, requesterID pgtype.UUID) (LoyaltyBalance, error) {
	var b LoyaltyBalance
	err := s.db.QueryRow(ctx, getLoyaltyBalance, requesterID).
		Scan(&b.RequesterID, &b.Balance, &b.Tier, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LoyaltyBalance{RequesterID: requesterID}, nil
	}
	return b, err
}

const debitLoyaltyBalance = `
UPDATE loyalty_balances
SET balance = balance - $2, updated_at = now()
WHERE requester_id = $1 AND balance >= $2`

const creditLoyaltyBalance = `
INSERT INTO loyalty_balances (requester_id, balance)
VALUES ($1, $2)
ON CONFLICT (requester_id) DO UPDATE SET balance = loyalty_balances.balance + $2, updated_at = now()`

const insertLoyaltyLedger = `
INSERT INTO loyalty_ledger (requester_id, booking_id, delta, reason)
VALUES ($1, $2, $3, $4)`

// ErrLoyaltyConflict means the conditional debit lost to a concurrent spend.
var ErrLoyaltyConflict = errors.New("store: loyalty balance conflict")

// ApplyLoyaltyDelta records a balance mutation plus its ledger entry. Debits
// are conditional so the balance can never go negative.
func (s *Store) ApplyLoyaltyDelta(ctx context.Context, requesterID, bookingID pgtype.UUID, delta int64, reason string) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		tag, err := s.db.Exec(ctx, debitLoyaltyBalance, requesterID, -delta)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrLoyaltyConflict
		}
	} else {
		if _, err := s.db.Exec(ctx, creditLoyaltyBalance, requesterID, delta); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(ctx, insertLoyaltyLedger, requesterID, bookingID, delta, reason)
	return err
}

// LoyaltyLedgerEntry is one recorded balance mutation.
type LoyaltyLedgerEntry struct {
	ID        pgtype.UUID
	BookingID pgtype.UUID
	Delta     int64
	Reason    string
	CreatedAt pgtype.Timestamptz
}

const listLoyaltyLedger = `
SELECT id, booking_id, delta, reason, created_at
FROM loyalty_ledger
WHERE requester_id = $1
ORDER BY created_at DESC
LIMIT $2`

// ListLoyaltyLedger returns recent ledger entries for display.
func (s *Store) ListLoyaltyLedger(ctx context.Context, requesterID pgtype.UUID, limit int32) ([]LoyaltyLedgerEntry, error) {
	rows, err := s.db.Query(ctx, listLoyaltyLedger, requesterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LoyaltyLedgerEntry
	for rows.Next() {
		var e LoyaltyLedgerEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
