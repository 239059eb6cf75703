package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PartnerTerms is the per-partner commission and earn-rate configuration.
type PartnerTerms struct {
	PartnerID     pgtype.UUID
	CommissionBps int32
	EarnRateBps   int32
}

const getPartnerTerms = `
SELECT partner_id, commission_bps, earn_rate_bps
FROM partner_terms
WHERE partner_id = $1`

// GetPartnerTerms loads the partner configuration. Missing terms are signalled
// with a nil result so the caller can apply the conservative default.
func (s *Store) GetPartnerTerms(ctx context.Context, partnerID pgtype.UUID) (*PartnerTerms, error) {
	var t PartnerTerms
	err := s.db.QueryRow(ctx, getPartnerTerms, partnerID).
		Scan(&t.PartnerID, &t.CommissionBps, &t.EarnRateBps)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Subscription is the snapshot of a requester's paid benefit plan.
type Subscription struct {
	RequesterID pgtype.UUID
	Active      bool
	Plan        string
	ExpiresAt   pgtype.Timestamptz
}

const getSubscription = `
SELECT requester_id, active, plan, expires_at
FROM subscriptions
WHERE requester_id = $1`

// GetSubscription reads the benefit plan snapshot; a missing row means no plan.
func (s *Store) GetSubscription(ctx context.Context, requesterID pgtype.UUID) (Subscription, error) {
	var sub Subscription
	err := s.db.QueryRow(ctx, getSubscription, requesterID).
		Scan(&sub.RequesterID, &sub.Active, &sub.Plan, &sub.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{RequesterID: requesterID}, nil
	}
	return sub, err
}

const listCommissionReviewBookings = `
SELECT id, reference_code, partner_id, base_amount, created_at
FROM bookings
WHERE commission_review = TRUE
ORDER BY created_at DESC
LIMIT $1`

// CommissionReviewRow surfaces bookings settled without partner terms.
type CommissionReviewRow struct {
	BookingID     pgtype.UUID
	ReferenceCode string
	PartnerID     pgtype.UUID
	BaseAmount    int64
	CreatedAt     pgtype.Timestamptz
}

// ListCommissionReviewBookings lists bookings flagged for operator review.
func (s *Store) ListCommissionReviewBookings(ctx context.Context, limit int32) ([]CommissionReviewRow, error) {
	rows, err := s.db.Query(ctx, listCommissionReviewBookings, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommissionReviewRow
	for rows.Next() {
		var r CommissionReviewRow
		if err := rows.Scan(&r.BookingID, &r.ReferenceCode, &r.PartnerID, &r.BaseAmount, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
