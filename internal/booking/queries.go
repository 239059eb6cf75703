package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/store"
)

// Detail is the read model for a single booking.
type Detail struct {
	Result
	Vertical  string `json:"vertical"`
	UnitID    string `json:"inventoryUnitId"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Quantity  int32  `json:"quantity"`
	CreatedAt string `json:"createdAt"`
}

func detailFromBooking(b store.Booking) Detail {
	d := Detail{Result: resultFromBooking(b)}
	d.Vertical = b.Vertical
	d.UnitID = store.UUIDString(b.UnitID)
	d.Quantity = b.Quantity
	if b.StartDate.Valid {
		d.StartDate = b.StartDate.Time.Format(time.DateOnly)
	}
	if b.EndDate.Valid {
		d.EndDate = b.EndDate.Time.Format(time.DateOnly)
	}
	if b.CreatedAt.Valid {
		d.CreatedAt = b.CreatedAt.Time.UTC().Format(time.RFC3339)
	}
	return d
}

// Get returns one booking scoped to its owner.
func (s *Service) Get(ctx context.Context, requesterID, bookingID string) (Detail, error) {
	reqID, err := store.ToUUID(requesterID)
	if err != nil {
		return Detail{}, validationErr("invalid requester id")
	}
	id, err := store.ToUUID(bookingID)
	if err != nil {
		return Detail{}, validationErr("invalid booking id")
	}
	b, err := s.Store.GetBookingForRequester(ctx, id, reqID)
	if errors.Is(err, store.ErrNotFound) {
		return Detail{}, common.NewAppError("NOT_FOUND", "booking not found", http.StatusNotFound, err)
	}
	if err != nil {
		return Detail{}, persistenceErr("booking lookup failed", err)
	}
	return detailFromBooking(b), nil
}

// List returns the requester's bookings, newest first, with the total count
// for pagination.
func (s *Service) List(ctx context.Context, requesterID string, page, perPage int) ([]Detail, common.Pagination, error) {
	reqID, err := store.ToUUID(requesterID)
	if err != nil {
		return nil, common.Pagination{}, validationErr("invalid requester id")
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	offset := int32((page - 1) * perPage)
	rows, err := s.Store.ListBookingsForRequester(ctx, reqID, int32(perPage), offset)
	if err != nil {
		return nil, common.Pagination{}, persistenceErr("booking list failed", err)
	}
	total, err := s.Store.CountBookingsForRequester(ctx, reqID)
	if err != nil {
		return nil, common.Pagination{}, persistenceErr("booking count failed", err)
	}
	out := make([]Detail, 0, len(rows))
	for _, b := range rows {
		out = append(out, detailFromBooking(b))
	}
	return out, common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)}, nil
}

// LoyaltySummary is the balance plus recent ledger view.
type LoyaltySummary struct {
	Balance int64         `json:"balance"`
	Tier    string        `json:"tier"`
	Ledger  []LedgerEntry `json:"ledger"`
}

// LedgerEntry is one loyalty point movement.
type LedgerEntry struct {
	BookingID string `json:"bookingId,omitempty"`
	Delta     int64  `json:"delta"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"createdAt"`
}

// Loyalty returns the requester's point balance and recent movements.
func (s *Service) Loyalty(ctx context.Context, requesterID string) (LoyaltySummary, error) {
	reqID, err := store.ToUUID(requesterID)
	if err != nil {
		return LoyaltySummary{}, validationErr("invalid requester id")
	}
	bal, err := s.Store.GetLoyaltyBalance(ctx, reqID)
	if err != nil {
		return LoyaltySummary{}, persistenceErr("loyalty balance lookup failed", err)
	}
	entries, err := s.Store.ListLoyaltyLedger(ctx, reqID, 50)
	if err != nil {
		return LoyaltySummary{}, persistenceErr("loyalty ledger lookup failed", err)
	}
	out := LoyaltySummary{Balance: bal.Balance, Tier: bal.Tier, Ledger: make([]LedgerEntry, 0, len(entries))}
	for _, e := range entries {
		entry := LedgerEntry{
			BookingID: store.UUIDString(e.BookingID),
			Delta:     e.Delta,
			Reason:    e.Reason,
		}
		if e.CreatedAt.Valid {
			entry.CreatedAt = e.CreatedAt.Time.UTC().Format(time.RFC3339)
		}
		out.Ledger = append(out.Ledger, entry)
	}
	return out, nil
}

// ReviewItem is one booking awaiting commission review.
type ReviewItem struct {
	BookingID     string `json:"bookingId"`
	ReferenceCode string `json:"referenceCode"`
	PartnerID     string `json:"partnerId,omitempty"`
	BaseAmount    int64  `json:"baseAmount"`
	CreatedAt     string `json:"createdAt"`
}

// CommissionReview lists bookings settled without usable partner terms.
func (s *Service) CommissionReview(ctx context.Context, limit int) ([]ReviewItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Store.ListCommissionReviewBookings(ctx, int32(limit))
	if err != nil {
		return nil, persistenceErr("commission review list failed", err)
	}
	out := make([]ReviewItem, 0, len(rows))
	for _, r := range rows {
		item := ReviewItem{
			BookingID:     store.UUIDString(r.BookingID),
			ReferenceCode: r.ReferenceCode,
			PartnerID:     store.UUIDString(r.PartnerID),
			BaseAmount:    r.BaseAmount,
		}
		if r.CreatedAt.Valid {
			item.CreatedAt = r.CreatedAt.Time.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}
	return out, nil
}
