package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/events"
	"github.com/noah-isme/backend-travio/internal/obs"
	"github.com/noah-isme/backend-travio/internal/pricing"
	"github.com/noah-isme/backend-travio/internal/store"
	"github.com/noah-isme/backend-travio/internal/vertical"
)

// LockRunner serialises lifecycle changes per booking. lock.Locker satisfies it.
type LockRunner interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

func (s *Service) withBookingLock(ctx context.Context, bookingID string, fn func(context.Context) error) error {
	if s.Locks == nil {
		return fn(ctx)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return s.Locks.WithLock(ctx, "booking:lifecycle:"+bookingID, ttl, fn)
}

// Cancel transitions a booking to cancelled, restores the decremented
// inventory and reverses the loyalty movements. The transition is conditional
// on the current status, so a concurrent cancel loses cleanly.
func (s *Service) Cancel(ctx context.Context, requesterID, bookingID string) (store.Booking, error) {
	reqID, err := store.ToUUID(requesterID)
	if err != nil {
		return store.Booking{}, validationErr("invalid requester id")
	}
	id, err := store.ToUUID(bookingID)
	if err != nil {
		return store.Booking{}, validationErr("invalid booking id")
	}

	var cancelled store.Booking
	err = s.withBookingLock(ctx, bookingID, func(ctx context.Context) error {
		b, err := s.Store.GetBookingForRequester(ctx, id, reqID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return common.NewAppError("NOT_FOUND", "booking not found", http.StatusNotFound, err)
			}
			return persistenceErr("booking lookup failed", err)
		}
		if b.Status == store.BookingStatusCancelled {
			cancelled = b
			return nil
		}
		lines, err := s.bookedLines(ctx, b)
		if err != nil {
			return err
		}
		err = s.Tx.InTx(ctx, func(m Mutations) error {
			affected, err := m.TransitionBookingStatus(ctx, id, b.Status, store.BookingStatusCancelled)
			if err != nil {
				return err
			}
			if affected == 0 {
				return common.NewAppError("CONFLICT", "booking status changed concurrently", http.StatusConflict, nil)
			}
			for _, line := range lines {
				if err := m.IncrementRateLine(ctx, line.ID, b.Quantity); err != nil {
					return err
				}
			}
			if b.LoyaltyRedeemed > 0 {
				if err := m.ApplyLoyaltyDelta(ctx, reqID, id, b.LoyaltyRedeemed, "cancel_refund"); err != nil {
					return err
				}
			}
			if b.LoyaltyEarned > 0 {
				err := m.ApplyLoyaltyDelta(ctx, reqID, id, -b.LoyaltyEarned, "cancel_clawback")
				if errors.Is(err, store.ErrLoyaltyConflict) {
					// Earned points already spent elsewhere. Leave the
					// balance alone and flag for reconciliation.
					obs.BookingReconciliationTotal.WithLabelValues("earn_clawback").Inc()
				} else if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		cancelled = b
		cancelled.Status = store.BookingStatusCancelled
		return nil
	})
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return store.Booking{}, appErr
		}
		return store.Booking{}, persistenceErr("cancellation failed", err)
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicBookingCancelled, cancelled.ID, map[string]any{
			"bookingId":     store.UUIDString(cancelled.ID),
			"referenceCode": cancelled.ReferenceCode,
			"requesterId":   requesterID,
		})
	}
	obs.BookingsTotal.WithLabelValues(cancelled.Vertical, "cancelled").Inc()
	return cancelled, nil
}

// ModifyInput is the supported modification surface. Date changes are a
// cancel-and-rebook, not a modification.
type ModifyInput struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// ModifyResult pairs the ledger entry with the recomputed price delta.
type ModifyResult struct {
	BookingID   string `json:"bookingId"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
	PriceDelta  int64  `json:"priceDelta"`
	Status      string `json:"status"`
}

// Modify changes the booked quantity. The original booking amounts stay as
// settled history; the recomputed values live in the modification ledger
// alongside the price delta. Added capacity goes through the same conditional
// decrement as a fresh booking.
func (s *Service) Modify(ctx context.Context, requesterID, bookingID string, in ModifyInput) (ModifyResult, error) {
	reqID, err := store.ToUUID(requesterID)
	if err != nil {
		return ModifyResult{}, validationErr("invalid requester id")
	}
	id, err := store.ToUUID(bookingID)
	if err != nil {
		return ModifyResult{}, validationErr("invalid booking id")
	}
	if in.Quantity <= 0 {
		return ModifyResult{}, validationErr("quantity must be positive")
	}

	var result ModifyResult
	err = s.withBookingLock(ctx, bookingID, func(ctx context.Context) error {
		b, err := s.Store.GetBookingForRequester(ctx, id, reqID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return common.NewAppError("NOT_FOUND", "booking not found", http.StatusNotFound, err)
			}
			return persistenceErr("booking lookup failed", err)
		}
		if b.Status != store.BookingStatusPending && b.Status != store.BookingStatusConfirmed {
			return common.NewAppError("CONFLICT", "booking can no longer be modified", http.StatusConflict, nil)
		}
		if int32(in.Quantity) == b.Quantity {
			return validationErr("quantity is unchanged")
		}
		v, _ := vertical.Parse(b.Vertical)
		policy, ok := vertical.PolicyFor(v)
		if !ok {
			return validationErr("unknown vertical")
		}
		lines, err := s.bookedLines(ctx, b)
		if err != nil {
			return err
		}

		// Recompute the settlement at the new quantity. The per-unit base
		// comes from the settled booking so a later price change does not
		// leak into an existing reservation.
		perUnit := b.BaseAmount / int64(b.Quantity)
		newBase := perUnit * int64(in.Quantity)
		redemption := b.LoyaltyRedeemed
		if cap := pricing.FloorBps(newBase, policy.RedemptionCapBps); redemption > cap {
			return common.NewAppError("CAP_EXCEEDED", "existing redemption exceeds the cap at the new quantity", http.StatusConflict, nil)
		}
		quote := pricing.Settle(pricing.Input{
			Base:                    newBase,
			TaxBps:                  policy.TaxBps,
			FeeBps:                  policy.FeeBps,
			SubscriptionDiscountBps: settledDiscountBps(b),
			Redemption:              redemption,
			CommissionBps:           int(b.CommissionBps),
		})
		delta := quote.Final - b.FinalAmount

		oldJSON, _ := json.Marshal(map[string]any{"quantity": b.Quantity, "finalAmount": b.FinalAmount})
		newJSON, _ := json.Marshal(map[string]any{"quantity": in.Quantity, "finalAmount": quote.Final})

		added := int32(in.Quantity) - b.Quantity
		err = s.Tx.InTx(ctx, func(m Mutations) error {
			for _, line := range lines {
				if added > 0 {
					affected, err := m.DecrementRateLine(ctx, line.ID, added)
					if err != nil {
						return err
					}
					if affected == 0 {
						return unavailableErr("sold out")
					}
				} else if err := m.IncrementRateLine(ctx, line.ID, -added); err != nil {
					return err
				}
			}
			if _, err := m.InsertBookingModification(ctx, id, oldJSON, newJSON, delta); err != nil {
				return err
			}
			return m.MarkBookingModified(ctx, id)
		})
		if err != nil {
			return err
		}
		result = ModifyResult{
			BookingID:   bookingID,
			OldQuantity: int(b.Quantity),
			NewQuantity: in.Quantity,
			PriceDelta:  delta,
			Status:      store.BookingStatusModified,
		}
		return nil
	})
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return ModifyResult{}, appErr
		}
		return ModifyResult{}, persistenceErr("modification failed", err)
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicBookingModified, id, map[string]any{
			"bookingId":  bookingID,
			"priceDelta": result.PriceDelta,
		})
	}
	return result, nil
}

// settledDiscountBps recovers the subscription discount rate a booking was
// settled with, so a modification keeps the discount instead of silently
// clawing it back. The stored discount amount bundles the loyalty redemption;
// subtracting it leaves the flat subscription share of the base.
func settledDiscountBps(b store.Booking) int {
	subDiscount := b.DiscountAmount - b.LoyaltyRedeemed
	if subDiscount <= 0 || b.BaseAmount <= 0 {
		return 0
	}
	return int(subDiscount * 10000 / b.BaseAmount)
}

// bookedLines resolves the rate lines a booking holds capacity on.
func (s *Service) bookedLines(ctx context.Context, b store.Booking) ([]store.RateLine, error) {
	v, _ := vertical.Parse(b.Vertical)
	if v.DateRanged() && b.StartDate.Valid && b.EndDate.Valid {
		lines, err := s.Store.ListRateLinesForRange(ctx, b.UnitID, b.StartDate.Time, b.EndDate.Time)
		if err != nil {
			return nil, persistenceErr("rate line lookup failed", err)
		}
		return lines, nil
	}
	line, err := s.Store.GetRateLine(ctx, b.UnitID, "")
	if err != nil {
		return nil, persistenceErr("rate line lookup failed", err)
	}
	if line == nil {
		return nil, nil
	}
	return []store.RateLine{*line}, nil
}
