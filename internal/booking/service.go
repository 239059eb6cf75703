package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-travio/internal/availability"
	"github.com/noah-isme/backend-travio/internal/commission"
	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/events"
	"github.com/noah-isme/backend-travio/internal/loyalty"
	"github.com/noah-isme/backend-travio/internal/obs"
	"github.com/noah-isme/backend-travio/internal/pricing"
	"github.com/noah-isme/backend-travio/internal/rate"
	"github.com/noah-isme/backend-travio/internal/refcode"
	"github.com/noah-isme/backend-travio/internal/store"
	"github.com/noah-isme/backend-travio/internal/subscription"
	"github.com/noah-isme/backend-travio/internal/vertical"
)

// Reads is the read-only storage surface consumed outside the settlement
// transaction. Every settlement re-reads current state; nothing here is
// cached across requests.
type Reads interface {
	GetInventoryUnit(ctx context.Context, id pgtype.UUID) (store.InventoryUnit, error)
	ListRateLinesForRange(ctx context.Context, unitID pgtype.UUID, start, end time.Time) ([]store.RateLine, error)
	GetRateLine(ctx context.Context, unitID pgtype.UUID, slotKey string) (*store.RateLine, error)
	GetPartnerTerms(ctx context.Context, partnerID pgtype.UUID) (*store.PartnerTerms, error)
	GetSubscription(ctx context.Context, requesterID pgtype.UUID) (store.Subscription, error)
	GetLoyaltyBalance(ctx context.Context, requesterID pgtype.UUID) (store.LoyaltyBalance, error)
	GetIdempotentBooking(ctx context.Context, requesterID pgtype.UUID, key string) (pgtype.UUID, bool, error)
	GetBookingForRequester(ctx context.Context, id, requesterID pgtype.UUID) (store.Booking, error)
	ListBookingsForRequester(ctx context.Context, requesterID pgtype.UUID, limit, offset int32) ([]store.Booking, error)
	CountBookingsForRequester(ctx context.Context, requesterID pgtype.UUID) (int64, error)
	ListLoyaltyLedger(ctx context.Context, requesterID pgtype.UUID, limit int32) ([]store.LoyaltyLedgerEntry, error)
	ListCommissionReviewBookings(ctx context.Context, limit int32) ([]store.CommissionReviewRow, error)
	ReferenceCodeExists(ctx context.Context, code string) (bool, error)
}

// Mutations is the storage surface available inside the settlement
// transaction. *store.Store satisfies it.
type Mutations interface {
	InsertBooking(ctx context.Context, arg store.InsertBookingParams) (store.Booking, error)
	DecrementRateLine(ctx context.Context, id pgtype.UUID, quantity int32) (int64, error)
	IncrementRateLine(ctx context.Context, id pgtype.UUID, quantity int32) error
	ApplyLoyaltyDelta(ctx context.Context, requesterID, bookingID pgtype.UUID, delta int64, reason string) error
	InsertIdempotencyKey(ctx context.Context, requesterID pgtype.UUID, key string, bookingID pgtype.UUID) error
	TransitionBookingStatus(ctx context.Context, id pgtype.UUID, from, to string) (int64, error)
	InsertBookingModification(ctx context.Context, bookingID pgtype.UUID, oldValues, newValues []byte, priceDelta int64) (store.BookingModification, error)
	MarkBookingModified(ctx context.Context, id pgtype.UUID) error
}

// TxRunner executes a function inside a storage transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Mutations) error) error
}

// Service orchestrates the booking settlement: availability, pricing,
// loyalty, commission, reference code, then persistence plus inventory
// mutation as the final step.
type Service struct {
	Store       Reads
	Tx          TxRunner
	Events      *events.Bus
	Locks       LockRunner
	LockTTL     time.Duration
	Currency    string
	CodeRetries int
	now         func() time.Time
}

// Input is the booking creation request after transport-level decoding.
type Input struct {
	Vertical    string  `json:"vertical" validate:"required"`
	UnitID      string  `json:"inventoryUnitId" validate:"required,uuid"`
	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	Quantity    int     `json:"quantity"`
	Redemption  int64   `json:"redemptionAmount"`
	VoucherCode *string `json:"voucherCode,omitempty"`
}

// Result mirrors the booking creation response contract.
type Result struct {
	BookingID     string `json:"bookingId"`
	ReferenceCode string `json:"referenceCode"`
	Status        string `json:"status"`
	FinalAmount   int64  `json:"finalAmount"`
	Currency      string `json:"currency"`
	Breakdown     struct {
		Base     int64 `json:"base"`
		Tax      int64 `json:"tax"`
		Fee      int64 `json:"fee"`
		Discount int64 `json:"discount"`
	} `json:"breakdown"`
	Loyalty struct {
		Redeemed int64 `json:"redeemed"`
		Earned   int64 `json:"earned"`
	} `json:"loyalty"`
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func validationErr(message string) *common.AppError {
	return common.NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest, nil)
}

func unavailableErr(reason string) *common.AppError {
	return common.NewAppError("UNAVAILABLE", reason, http.StatusConflict, nil)
}

// Create runs the full settlement for one booking request. Inventory is only
// touched inside the final transaction, so validation and pricing failures
// never leave decremented capacity behind.
func (s *Service) Create(ctx context.Context, requesterID string, idemKey string, in Input) (Result, error) {
	if s == nil || s.Store == nil || s.Tx == nil {
		return Result{}, errors.New("booking service not configured")
	}
	started := s.clock()
	reqID, err := store.ToUUID(requesterID)
	if err != nil {
		return Result{}, validationErr("invalid requester id")
	}
	v, ok := vertical.Parse(in.Vertical)
	if !ok {
		return Result{}, validationErr("unknown vertical")
	}
	policy, _ := vertical.PolicyFor(v)
	unitID, err := store.ToUUID(in.UnitID)
	if err != nil {
		return Result{}, validationErr("invalid inventory unit id")
	}

	// Idempotent replay: a caller-supplied key maps back to the settled
	// booking without re-touching inventory.
	if idemKey != "" {
		if bookingID, found, err := s.Store.GetIdempotentBooking(ctx, reqID, idemKey); err != nil {
			return Result{}, persistenceErr("idempotency lookup failed", err)
		} else if found {
			existing, err := s.Store.GetBookingForRequester(ctx, bookingID, reqID)
			if err != nil {
				return Result{}, persistenceErr("idempotent booking lookup failed", err)
			}
			return resultFromBooking(existing), nil
		}
	}

	unit, err := s.Store.GetInventoryUnit(ctx, unitID)
	if err != nil {
		return Result{}, common.NewAppError("NOT_FOUND", "inventory unit not found", http.StatusNotFound, err)
	}
	if unit.Vertical != string(v) {
		return Result{}, validationErr("inventory unit does not belong to the requested vertical")
	}

	plan, err := s.plan(ctx, v, policy, unit, in)
	if err != nil {
		return Result{}, err
	}

	// Subscription and loyalty snapshots are re-read per settlement.
	sub, err := s.Store.GetSubscription(ctx, reqID)
	if err != nil {
		return Result{}, persistenceErr("subscription lookup failed", err)
	}
	now := s.clock()
	elig := subscription.Evaluate(subscription.Status{
		Active:    sub.Active,
		ExpiresAt: sub.ExpiresAt.Time,
		Plan:      sub.Plan,
	}, plan.units, plan.resources, now, policy)

	balance, err := s.Store.GetLoyaltyBalance(ctx, reqID)
	if err != nil {
		return Result{}, persistenceErr("loyalty balance lookup failed", err)
	}
	redemption, err := loyalty.ValidateRedemption(in.Redemption, balance.Balance, plan.summary.Base, policy.RedemptionCapBps)
	if err != nil {
		return Result{}, common.NewAppError(loyalty.RejectionCode(err), err.Error(), http.StatusBadRequest, err)
	}

	var terms *commission.Terms
	if unit.PartnerID.Valid {
		row, err := s.Store.GetPartnerTerms(ctx, unit.PartnerID)
		if err != nil {
			return Result{}, persistenceErr("partner terms lookup failed", err)
		}
		if row != nil {
			terms = &commission.Terms{
				PartnerID:   store.UUIDString(row.PartnerID),
				RateBps:     int(row.CommissionBps),
				EarnRateBps: int(row.EarnRateBps),
			}
		}
	}
	share := commission.Calculate(plan.summary.Base, terms)

	quote := pricing.Settle(pricing.Input{
		Base:                    plan.summary.Base,
		TaxBps:                  policy.TaxBps,
		FeeBps:                  policy.FeeBps,
		SubscriptionDiscountBps: elig.DiscountBps,
		Redemption:              redemption.Value,
		CommissionBps:           share.RateBps,
		EarnRateBps:             commission.EarnRateBps(terms, policy.EarnRateBps),
		SubscriptionBonusBps:    elig.BonusBps,
		TierBonusBps:            loyalty.TierBonusBps(balance.Tier),
	})

	booked, err := s.persist(ctx, v, reqID, idemKey, unit, plan, quote, share, redemption)
	if err != nil {
		return Result{}, err
	}

	if s.Events != nil {
		payload := map[string]any{
			"bookingId":     store.UUIDString(booked.ID),
			"referenceCode": booked.ReferenceCode,
			"requesterId":   requesterID,
			"vertical":      string(v),
			"finalAmount":   booked.FinalAmount,
			"currency":      booked.Currency,
		}
		if _, err := s.Events.Emit(ctx, events.TopicBookingCreated, booked.ID, payload); err != nil {
			// The booking is committed; event fan-out failures are a
			// reconciliation condition, not a booking failure.
			obs.BookingReconciliationTotal.WithLabelValues("event_emit").Inc()
		}
	}
	obs.BookingsTotal.WithLabelValues(string(v), "created").Inc()
	obs.SettlementDuration.WithLabelValues(string(v)).Observe(float64(s.clock().Sub(started).Milliseconds()))
	if redemption.Points > 0 {
		obs.LoyaltyPointsTotal.WithLabelValues("redeemed").Add(float64(redemption.Points))
	}
	if quote.LoyaltyEarned > 0 {
		obs.LoyaltyPointsTotal.WithLabelValues("earned").Add(float64(quote.LoyaltyEarned))
	}
	return resultFromBooking(booked), nil
}

// bookingPlan carries the validated availability and aggregation outcome
// between the read phase and the persistence phase.
type bookingPlan struct {
	lines     []store.RateLine
	units     int
	resources int
	quantity  int32
	start     pgtype.Date
	end       pgtype.Date
	summary   rate.Summary
}

func (s *Service) plan(ctx context.Context, v vertical.Vertical, policy vertical.Policy, unit store.InventoryUnit, in Input) (bookingPlan, error) {
	var p bookingPlan
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	p.quantity = int32(quantity)

	if v.DateRanged() {
		start, err := time.Parse(time.DateOnly, in.StartDate)
		if err != nil {
			return p, validationErr("startDate must be YYYY-MM-DD")
		}
		end, err := time.Parse(time.DateOnly, in.EndDate)
		if err != nil {
			return p, validationErr("endDate must be YYYY-MM-DD")
		}
		nights := availability.Nights(start, end)
		if nights <= 0 {
			return p, validationErr("endDate must be after startDate")
		}
		rows, err := s.Store.ListRateLinesForRange(ctx, unit.ID, start, end)
		if err != nil {
			return p, persistenceErr("rate line lookup failed", err)
		}
		p.lines = rows
		lines := toRateLines(rows)
		if res := availability.CheckDateRange(lines, nights, quantity); !res.Available {
			obs.InventoryConflictsTotal.WithLabelValues(string(v), res.Reason).Inc()
			return p, unavailableErr(res.Reason)
		}
		p.units = nights
		p.resources = quantity
		p.start = pgtype.Date{Time: start, Valid: true}
		p.end = pgtype.Date{Time: end, Valid: true}
		p.summary = rate.Aggregate(lines, 1)
		// Every night is booked for each requested room, and the per-night
		// average follows the multiplied base.
		p.summary.Base *= pricing.Money(quantity)
		p.summary.AveragePerUnit = p.summary.Base / pricing.Money(p.summary.UnitCount)
		return p, nil
	}

	row, err := s.Store.GetRateLine(ctx, unit.ID, "")
	if err != nil {
		return p, persistenceErr("rate line lookup failed", err)
	}
	var line *rate.Line
	if row != nil {
		p.lines = []store.RateLine{*row}
		converted := toRateLines(p.lines)
		line = &converted[0]
	}
	if res := availability.CheckQuantity(line, quantity); !res.Available {
		obs.InventoryConflictsTotal.WithLabelValues(string(v), res.Reason).Inc()
		return p, unavailableErr(res.Reason)
	}
	p.units = quantity
	p.resources = quantity
	p.summary = rate.Aggregate([]rate.Line{*line}, quantity)
	return p, nil
}

// persist is the only step that mutates shared state. The reference-code
// unique constraint is the authoritative uniqueness guard: a violation mints
// a fresh code and retries the whole transaction.
func (s *Service) persist(ctx context.Context, v vertical.Vertical, reqID pgtype.UUID, idemKey string, unit store.InventoryUnit, plan bookingPlan, quote pricing.Quote, share commission.Share, redemption loyalty.Redemption) (store.Booking, error) {
	gen := refcode.Generator{Store: s.Store}
	retries := s.CodeRetries
	if retries <= 0 {
		retries = 3
	}
	var booked store.Booking
	for attempt := 0; attempt < retries; attempt++ {
		code, err := gen.Mint(ctx, v)
		if err != nil {
			if errors.Is(err, refcode.ErrExhausted) {
				return store.Booking{}, common.NewAppError("CODE_GENERATION_EXHAUSTED", "could not allocate a unique reference code", http.StatusServiceUnavailable, err)
			}
			return store.Booking{}, persistenceErr("reference code generation failed", err)
		}
		if attempt > 0 {
			obs.RefcodeRetriesTotal.Inc()
		}
		err = s.Tx.InTx(ctx, func(m Mutations) error {
			b, err := m.InsertBooking(ctx, store.InsertBookingParams{
				ReferenceCode:    code,
				RequesterID:      reqID,
				UnitID:           unit.ID,
				PartnerID:        unit.PartnerID,
				Vertical:         string(v),
				StartDate:        plan.start,
				EndDate:          plan.end,
				Quantity:         plan.quantity,
				Currency:         s.currency(unit),
				BaseAmount:       quote.Base,
				TaxAmount:        quote.Tax,
				FeeAmount:        quote.Fee,
				DiscountAmount:   quote.Discount,
				FinalAmount:      quote.Final,
				LoyaltyRedeemed:  redemption.Value,
				LoyaltyEarned:    quote.LoyaltyEarned,
				CommissionAmount: quote.Commission,
				CommissionBps:    int32(share.RateBps),
				CommissionReview: share.NeedsReview,
				Status:           store.BookingStatusPending,
			})
			if err != nil {
				return err
			}
			// Conditional decrement per slice: the affected-row count is
			// the real availability verdict, the earlier read was advisory.
			for _, line := range plan.lines {
				affected, err := m.DecrementRateLine(ctx, line.ID, plan.quantity)
				if err != nil {
					return err
				}
				if affected == 0 {
					return unavailableErr(availability.ReasonSoldOut)
				}
			}
			if redemption.Points > 0 {
				if err := m.ApplyLoyaltyDelta(ctx, reqID, b.ID, -redemption.Points, "redemption"); err != nil {
					if errors.Is(err, store.ErrLoyaltyConflict) {
						return common.NewAppError("INSUFFICIENT_BALANCE", "loyalty balance changed during settlement", http.StatusConflict, err)
					}
					return err
				}
			}
			if quote.LoyaltyEarned > 0 {
				if err := m.ApplyLoyaltyDelta(ctx, reqID, b.ID, quote.LoyaltyEarned, "earned"); err != nil {
					return err
				}
			}
			if idemKey != "" {
				if err := m.InsertIdempotencyKey(ctx, reqID, idemKey, b.ID); err != nil {
					return err
				}
			}
			booked = b
			return nil
		})
		if err == nil {
			return booked, nil
		}
		if store.IsUniqueViolation(err) {
			if constraintIsIdempotencyKey(err) {
				// Concurrent duplicate with the same key: the other
				// request won; replay its booking.
				if bookingID, found, lookupErr := s.Store.GetIdempotentBooking(ctx, reqID, idemKey); lookupErr == nil && found {
					return s.Store.GetBookingForRequester(ctx, bookingID, reqID)
				}
			}
			continue // reference code collision, mint a fresh one
		}
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return store.Booking{}, appErr
		}
		return store.Booking{}, persistenceErr("booking persistence failed", err)
	}
	return store.Booking{}, common.NewAppError("CODE_GENERATION_EXHAUSTED", "reference code conflicts exhausted the retry budget", http.StatusServiceUnavailable, nil)
}

func (s *Service) currency(unit store.InventoryUnit) string {
	if unit.Currency != "" {
		return unit.Currency
	}
	if s.Currency != "" {
		return s.Currency
	}
	return "USD"
}

func constraintIsIdempotencyKey(err error) bool {
	return store.UniqueConstraint(err) == "idempotency_keys_pkey"
}

func persistenceErr(message string, err error) *common.AppError {
	return common.NewAppError("PERSISTENCE_FAILURE", message, http.StatusInternalServerError, err)
}

func toRateLines(rows []store.RateLine) []rate.Line {
	out := make([]rate.Line, 0, len(rows))
	for _, r := range rows {
		out = append(out, rate.Line{
			UnitID:    store.UUIDString(r.UnitID),
			Key:       r.SlotKey,
			Price:     r.Price,
			Remaining: int(r.Remaining),
		})
	}
	return out
}

func resultFromBooking(b store.Booking) Result {
	var r Result
	r.BookingID = store.UUIDString(b.ID)
	r.ReferenceCode = b.ReferenceCode
	r.Status = b.Status
	r.FinalAmount = b.FinalAmount
	r.Currency = b.Currency
	r.Breakdown.Base = b.BaseAmount
	r.Breakdown.Tax = b.TaxAmount
	r.Breakdown.Fee = b.FeeAmount
	r.Breakdown.Discount = b.DiscountAmount
	r.Loyalty.Redeemed = b.LoyaltyRedeemed
	r.Loyalty.Earned = b.LoyaltyEarned
	return r
}
