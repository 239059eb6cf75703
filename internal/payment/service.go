package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-travio/internal/obs"
	"github.com/noah-isme/backend-travio/internal/resilience"
	"github.com/noah-isme/backend-travio/internal/store"
)

// Store is the persistence surface the payment service needs. *store.Store
// satisfies it.
type Store interface {
	GetBooking(ctx context.Context, id pgtype.UUID) (store.Booking, error)
	GetBookingByReferenceCode(ctx context.Context, code string) (store.Booking, error)
	GetLatestPaymentByBooking(ctx context.Context, bookingID pgtype.UUID) (store.Payment, error)
	InsertPayment(ctx context.Context, arg store.InsertPaymentParams) (store.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id pgtype.UUID, status string, payload []byte) error
	TransitionBookingStatus(ctx context.Context, id pgtype.UUID, from, to string) (int64, error)
}

// ErrProviderUnavailable is returned when the circuit breaker is open.
var ErrProviderUnavailable = errors.New("payment: provider unavailable")

// Service opens capture intents against bookings and reconciles provider
// callbacks back onto the booking status.
type Service struct {
	Store           Store
	Provider        Provider
	Breaker         *resilience.Breaker
	IntentTTL       time.Duration
	CallbackBaseURL string
}

// CreateCapture opens (or reuses) a capture intent for a pending booking.
func (s *Service) CreateCapture(ctx context.Context, bookingID pgtype.UUID) (store.Payment, error) {
	var zero store.Payment
	if s == nil || s.Store == nil || s.Provider == nil {
		return zero, errors.New("payment service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateCapture")
	defer span.End()

	start := time.Now()
	providerName := inferProviderName(s.Provider)
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerName),
			attribute.Float64("payment.capture.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.capture.result", result),
		)
		obs.PaymentCaptureTotal.WithLabelValues(providerName, result).Inc()
	}()

	booking, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return zero, err
	}
	span.SetAttributes(attribute.String("booking.reference_code", booking.ReferenceCode))
	if booking.Status != store.BookingStatusPending {
		return zero, fmt.Errorf("booking status %s does not allow capture", booking.Status)
	}
	if booking.FinalAmount == 0 {
		// Fully covered by discounts and redemption; confirm directly.
		if _, err := s.Store.TransitionBookingStatus(ctx, booking.ID, store.BookingStatusPending, store.BookingStatusConfirmed); err != nil {
			return zero, err
		}
		result = "zero_amount"
		return zero, nil
	}

	existing, err := s.Store.GetLatestPaymentByBooking(ctx, booking.ID)
	if err == nil {
		if existing.Status == store.PaymentStatusPaid {
			return zero, errors.New("booking already paid")
		}
		if existing.Status == store.PaymentStatusPending {
			if !existing.ExpiresAt.Valid || existing.ExpiresAt.Time.After(time.Now()) {
				result = "reused"
				return existing, nil
			}
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return zero, err
	}

	ttl := s.IntentTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if s.Breaker != nil && !s.Breaker.Allow(ctx) {
		result = "rejected"
		return zero, ErrProviderUnavailable
	}
	resp, err := s.Provider.CreateIntent(ctx, IntentRequest{
		BookingRef:      booking.ReferenceCode,
		Amount:          booking.FinalAmount,
		Currency:        booking.Currency,
		ExpiresAtSec:    int(ttl.Seconds()),
		CallbackBaseURL: s.CallbackBaseURL,
	})
	if s.Breaker != nil {
		s.Breaker.Report(ctx, err == nil)
	}
	if err != nil {
		span.RecordError(err)
		return zero, err
	}
	if resp.Provider != "" {
		providerName = normaliseLabel(resp.Provider)
	}

	expiresAt := pgtype.Timestamptz{Valid: true, Time: time.Now().Add(ttl)}
	if resp.ExpiresAt > 0 {
		expiresAt.Time = time.Unix(resp.ExpiresAt, 0)
	}
	p, err := s.Store.InsertPayment(ctx, store.InsertPaymentParams{
		BookingID:   booking.ID,
		Provider:    providerName,
		Status:      store.PaymentStatusPending,
		Amount:      booking.FinalAmount,
		IntentToken: resp.Token,
		RedirectURL: resp.RedirectURL,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return zero, err
	}
	result = "success"
	return p, nil
}

// Status returns the latest known capture status for a booking.
func (s *Service) Status(ctx context.Context, bookingID pgtype.UUID) (string, error) {
	if s == nil || s.Store == nil {
		return "", errors.New("payment service not configured")
	}
	p, err := s.Store.GetLatestPaymentByBooking(ctx, bookingID)
	if err == nil {
		return p.Status, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	booking, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	switch booking.Status {
	case store.BookingStatusConfirmed:
		return store.PaymentStatusPaid, nil
	case store.BookingStatusCancelled:
		return store.PaymentStatusFailed, nil
	default:
		return store.PaymentStatusPending, nil
	}
}

func inferProviderName(p Provider) string {
	switch p.(type) {
	case Midtrans:
		return "midtrans"
	case Xendit:
		return "xendit"
	default:
		return "unknown"
	}
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
