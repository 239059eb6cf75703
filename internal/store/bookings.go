package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Booking lifecycle states. Cancellation is a transition, never a delete.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusModified  = "modified"
)

// Booking is the settled transaction row.
type Booking struct {
	ID               pgtype.UUID
	ReferenceCode    string
	RequesterID      pgtype.UUID
	UnitID           pgtype.UUID
	PartnerID        pgtype.UUID
	Vertical         string
	StartDate        pgtype.Date
	EndDate          pgtype.Date
	Quantity         int32
	Currency         string
	BaseAmount       int64
	TaxAmount        int64
	FeeAmount        int64
	DiscountAmount   int64
	FinalAmount      int64
	LoyaltyRedeemed  int64
	LoyaltyEarned    int64
	CommissionAmount int64
	CommissionBps    int32
	CommissionReview bool
	Status           string
	CreatedAt        pgtype.Timestamptz
	ConfirmedAt      pgtype.Timestamptz
}

// InsertBookingParams carries the settled values into persistence.
type InsertBookingParams struct {
	ReferenceCode    string
	RequesterID      pgtype.UUID
	UnitID           pgtype.UUID
	PartnerID        pgtype.UUID
	Vertical         string
	StartDate        pgtype.Date
	EndDate          pgtype.Date
	Quantity         int32
	Currency         string
	BaseAmount       int64
	TaxAmount        int64
	FeeAmount        int64
	DiscountAmount   int64
	FinalAmount      int64
	LoyaltyRedeemed  int64
	LoyaltyEarned    int64
	CommissionAmount int64
	CommissionBps    int32
	CommissionReview bool
	Status           string
}

const insertBooking = `
INSERT INTO bookings (
	reference_code, requester_id, unit_id, partner_id, vertical,
	start_date, end_date, quantity, currency,
	base_amount, tax_amount, fee_amount, discount_amount, final_amount,
	loyalty_redeemed, loyalty_earned, commission_amount, commission_bps,
	commission_review, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
RETURNING id, created_at, confirmed_at`

// InsertBooking writes the booking row. The reference_code column carries a
// unique constraint; callers must treat a 23505 as a signal to mint a fresh
// code and retry rather than trusting the earlier existence probe.
func (s *Store) InsertBooking(ctx context.Context, arg InsertBookingParams) (Booking, error) {
	b := Booking{
		ReferenceCode:    arg.ReferenceCode,
		RequesterID:      arg.RequesterID,
		UnitID:           arg.UnitID,
		PartnerID:        arg.PartnerID,
		Vertical:         arg.Vertical,
		StartDate:        arg.StartDate,
		EndDate:          arg.EndDate,
		Quantity:         arg.Quantity,
		Currency:         arg.Currency,
		BaseAmount:       arg.BaseAmount,
		TaxAmount:        arg.TaxAmount,
		FeeAmount:        arg.FeeAmount,
		DiscountAmount:   arg.DiscountAmount,
		FinalAmount:      arg.FinalAmount,
		LoyaltyRedeemed:  arg.LoyaltyRedeemed,
		LoyaltyEarned:    arg.LoyaltyEarned,
		CommissionAmount: arg.CommissionAmount,
		CommissionBps:    arg.CommissionBps,
		CommissionReview: arg.CommissionReview,
		Status:           arg.Status,
	}
	err := s.db.QueryRow(ctx, insertBooking,
		arg.ReferenceCode, arg.RequesterID, arg.UnitID, arg.PartnerID, arg.Vertical,
		arg.StartDate, arg.EndDate, arg.Quantity, arg.Currency,
		arg.BaseAmount, arg.TaxAmount, arg.FeeAmount, arg.DiscountAmount, arg.FinalAmount,
		arg.LoyaltyRedeemed, arg.LoyaltyEarned, arg.CommissionAmount, arg.CommissionBps,
		arg.CommissionReview, arg.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.ConfirmedAt)
	return b, err
}

const referenceCodeExists = `
SELECT EXISTS(SELECT 1 FROM bookings WHERE reference_code = $1)`

// ReferenceCodeExists probes for an existing booking with the code.
func (s *Store) ReferenceCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, referenceCodeExists, code).Scan(&exists)
	return exists, err
}

const bookingColumns = `
	id, reference_code, requester_id, unit_id, partner_id, vertical,
	start_date, end_date, quantity, currency,
	base_amount, tax_amount, fee_amount, discount_amount, final_amount,
	loyalty_redeemed, loyalty_earned, commission_amount, commission_bps,
	commission_review, status, created_at, confirmed_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.ReferenceCode, &b.RequesterID, &b.UnitID, &b.PartnerID, &b.Vertical,
		&b.StartDate, &b.EndDate, &b.Quantity, &b.Currency,
		&b.BaseAmount, &b.TaxAmount, &b.FeeAmount, &b.DiscountAmount, &b.FinalAmount,
		&b.LoyaltyRedeemed, &b.LoyaltyEarned, &b.CommissionAmount, &b.CommissionBps,
		&b.CommissionReview, &b.Status, &b.CreatedAt, &b.ConfirmedAt,
	)
	return b, err
}

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("store: not found")

// GetBooking loads a booking by id regardless of owner. Internal use only;
// requester-facing paths go through GetBookingForRequester.
func (s *Store) GetBooking(ctx context.Context, id pgtype.UUID) (Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

// GetBookingByReferenceCode resolves a booking from the code carried by
// provider callbacks.
func (s *Store) GetBookingByReferenceCode(ctx context.Context, code string) (Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE reference_code = $1`
	b, err := scanBooking(s.db.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

// GetBookingForRequester loads a booking scoped to its owner.
func (s *Store) GetBookingForRequester(ctx context.Context, id, requesterID pgtype.UUID) (Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1 AND requester_id = $2`
	b, err := scanBooking(s.db.QueryRow(ctx, query, id, requesterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

// ListBookingsForRequester returns the requester's bookings newest first.
func (s *Store) ListBookingsForRequester(ctx context.Context, requesterID pgtype.UUID, limit, offset int32) ([]Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE requester_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, query, requesterID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const countBookingsForRequester = `
SELECT count(*) FROM bookings WHERE requester_id = $1`

// CountBookingsForRequester supports list pagination headers.
func (s *Store) CountBookingsForRequester(ctx context.Context, requesterID pgtype.UUID) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, countBookingsForRequester, requesterID).Scan(&total)
	return total, err
}

const transitionBookingStatus = `
UPDATE bookings SET status = $3, confirmed_at = CASE WHEN $3 = 'confirmed' THEN now() ELSE confirmed_at END
WHERE id = $1 AND status = $2`

// TransitionBookingStatus moves a booking between states only when the
// current state matches; zero affected rows means a concurrent transition.
func (s *Store) TransitionBookingStatus(ctx context.Context, id pgtype.UUID, from, to string) (int64, error) {
	tag, err := s.db.Exec(ctx, transitionBookingStatus, id, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// BookingModification is the audit ledger entry for a change to a booking.
type BookingModification struct {
	ID         pgtype.UUID
	BookingID  pgtype.UUID
	OldValues  []byte
	NewValues  []byte
	PriceDelta int64
	CreatedAt  pgtype.Timestamptz
}

const insertBookingModification = `
INSERT INTO booking_modifications (booking_id, old_values, new_values, price_delta)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

// InsertBookingModification appends a modification ledger entry. The original
// booking's historical fields are never rewritten.
func (s *Store) InsertBookingModification(ctx context.Context, bookingID pgtype.UUID, oldValues, newValues []byte, priceDelta int64) (BookingModification, error) {
	m := BookingModification{
		BookingID:  bookingID,
		OldValues:  oldValues,
		NewValues:  newValues,
		PriceDelta: priceDelta,
	}
	err := s.db.QueryRow(ctx, insertBookingModification, bookingID, oldValues, newValues, priceDelta).
		Scan(&m.ID, &m.CreatedAt)
	return m, err
}

const markBookingModified = `
UPDATE bookings SET status = 'modified' WHERE id = $1 AND status IN ('pending','confirmed')`

// MarkBookingModified flags the booking after a modification ledger entry.
func (s *Store) MarkBookingModified(ctx context.Context, id pgtype.UUID) error {
	_, err := s.db.Exec(ctx, markBookingModified, id)
	return err
}
