package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/backend-travio/internal/obs"
	"github.com/noah-isme/backend-travio/internal/store"
)

// ErrWebhookRejected is returned for callbacks that fail verification.
var ErrWebhookRejected = errors.New("payment: webhook rejected")

// ProcessWebhook applies a verified provider callback to the payment record
// and the booking status. Repeated callbacks for the same outcome are no-ops:
// the conditional status transition only fires once.
func (s *Service) ProcessWebhook(ctx context.Context, res WebhookVerifyResult) error {
	providerName := inferProviderName(s.Provider)
	if !res.Valid {
		obs.PaymentWebhookTotal.WithLabelValues(providerName, "rejected").Inc()
		if res.Err != nil {
			return fmt.Errorf("%w: %s", ErrWebhookRejected, res.Err)
		}
		return ErrWebhookRejected
	}
	booking, err := s.Store.GetBookingByReferenceCode(ctx, res.BookingRef)
	if err != nil {
		obs.PaymentWebhookTotal.WithLabelValues(providerName, "unknown_booking").Inc()
		return err
	}
	if res.Amount > 0 && res.Amount != booking.FinalAmount {
		obs.PaymentWebhookTotal.WithLabelValues(providerName, "amount_mismatch").Inc()
		return fmt.Errorf("%w: amount mismatch: got %d expected %d", ErrWebhookRejected, res.Amount, booking.FinalAmount)
	}

	payment, err := s.Store.GetLatestPaymentByBooking(ctx, booking.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil {
		if updateErr := s.Store.UpdatePaymentStatus(ctx, payment.ID, res.Status, res.ProviderPayload); updateErr != nil {
			return updateErr
		}
	}

	switch res.Status {
	case store.PaymentStatusPaid:
		if _, err := s.Store.TransitionBookingStatus(ctx, booking.ID, store.BookingStatusPending, store.BookingStatusConfirmed); err != nil {
			return err
		}
	case store.PaymentStatusFailed, store.PaymentStatusExpired:
		// The booking stays pending; capture can be retried with a fresh
		// intent until the hold is released by ops tooling.
	}
	obs.PaymentWebhookTotal.WithLabelValues(providerName, "processed").Inc()
	return nil
}
