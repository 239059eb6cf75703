package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-travio/internal/common"
)

// Handler exposes the booking settlement endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return userID, true
}

// Create handles POST /api/v1/bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "booking service not configured", nil)
		return
	}
	userID, ok := h.requester(w, r)
	if !ok {
		return
	}
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", validationDetails(err))
			return
		}
	}
	idemKey := r.Header.Get("Idempotency-Key")
	out, err := h.Svc.Create(r.Context(), userID, idemKey, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// List handles GET /api/v1/bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requester(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	items, pagination, err := h.Svc.List(r.Context(), userID, page, perPage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(pagination.TotalItems))
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
}

// Get handles GET /api/v1/bookings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requester(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Cancel handles POST /api/v1/bookings/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requester(w, r)
	if !ok {
		return
	}
	b, err := h.Svc.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detailFromBooking(b)})
}

// Modify handles POST /api/v1/bookings/{id}/modify.
func (h *Handler) Modify(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requester(w, r)
	if !ok {
		return
	}
	var payload ModifyInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", validationDetails(err))
			return
		}
	}
	out, err := h.Svc.Modify(r.Context(), userID, chi.URLParam(r, "id"), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Loyalty handles GET /api/v1/loyalty.
func (h *Handler) Loyalty(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requester(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Loyalty(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// CommissionReview handles GET /api/v1/admin/commission-review.
func (h *Handler) CommissionReview(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.Svc.CommissionReview(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
