package payment

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-travio/internal/common"
	"github.com/noah-isme/backend-travio/internal/store"
)

// Handler exposes the capture status endpoint and the provider callback.
type Handler struct {
	Svc *Service
}

// Status handles GET /api/v1/bookings/{id}/payment.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	bookingID, err := store.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid booking id", nil)
		return
	}
	reqID, err := store.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid requester", nil)
		return
	}
	// Ownership check before exposing any payment state.
	booking, err := h.Svc.Store.GetBooking(r.Context(), bookingID)
	if err != nil || booking.RequesterID != reqID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "booking not found", nil)
		return
	}
	status, err := h.Svc.Status(r.Context(), bookingID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "STATUS_ERROR", "could not resolve payment status", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": status})
}

// Webhook handles POST /webhooks/payment.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Svc.Provider == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable body", nil)
		return
	}
	res, err := h.Svc.Provider.VerifyWebhook(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "verification failed", nil)
		return
	}
	if err := h.Svc.ProcessWebhook(r.Context(), res); err != nil {
		// Providers retry on non-2xx. Verification failures are final, so
		// answer 200 to stop the retries; transient errors get a 500.
		if res.Valid {
			common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_ERROR", "processing failed", nil)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
