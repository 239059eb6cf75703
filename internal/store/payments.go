package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Payment lifecycle states mirror the provider-side transaction status.
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusFailed   = "FAILED"
	PaymentStatusExpired  = "EXPIRED"
	PaymentStatusRefunded = "REFUNDED"
)

// Payment is one capture attempt against a booking.
type Payment struct {
	ID              pgtype.UUID
	BookingID       pgtype.UUID
	Provider        string
	Status          string
	Amount          int64
	IntentToken     string
	RedirectURL     string
	ProviderPayload []byte
	ExpiresAt       pgtype.Timestamptz
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// InsertPaymentParams carries a freshly opened capture intent.
type InsertPaymentParams struct {
	BookingID   pgtype.UUID
	Provider    string
	Status      string
	Amount      int64
	IntentToken string
	RedirectURL string
	ExpiresAt   pgtype.Timestamptz
}

const insertPayment = `
INSERT INTO payments (booking_id, provider, status, amount, intent_token, redirect_url, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`

// InsertPayment records a capture intent.
func (s *Store) InsertPayment(ctx context.Context, arg InsertPaymentParams) (Payment, error) {
	p := Payment{
		BookingID:   arg.BookingID,
		Provider:    arg.Provider,
		Status:      arg.Status,
		Amount:      arg.Amount,
		IntentToken: arg.IntentToken,
		RedirectURL: arg.RedirectURL,
		ExpiresAt:   arg.ExpiresAt,
	}
	err := s.db.QueryRow(ctx, insertPayment,
		arg.BookingID, arg.Provider, arg.Status, arg.Amount,
		arg.IntentToken, arg.RedirectURL, arg.ExpiresAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const getLatestPaymentByBooking = `
SELECT id, booking_id, provider, status, amount, intent_token, redirect_url, provider_payload, expires_at, created_at, updated_at
FROM payments
WHERE booking_id = $1
ORDER BY created_at DESC
LIMIT 1`

// GetLatestPaymentByBooking returns the most recent capture attempt.
func (s *Store) GetLatestPaymentByBooking(ctx context.Context, bookingID pgtype.UUID) (Payment, error) {
	var p Payment
	err := s.db.QueryRow(ctx, getLatestPaymentByBooking, bookingID).Scan(
		&p.ID, &p.BookingID, &p.Provider, &p.Status, &p.Amount,
		&p.IntentToken, &p.RedirectURL, &p.ProviderPayload, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

const updatePaymentStatus = `
UPDATE payments SET status = $2, provider_payload = $3, updated_at = now()
WHERE id = $1`

// UpdatePaymentStatus stores the provider's verdict alongside its raw payload.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id pgtype.UUID, status string, payload []byte) error {
	_, err := s.db.Exec(ctx, updatePaymentStatus, id, status, payload)
	return err
}
