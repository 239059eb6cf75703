package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-travio/internal/store"
)

type fakePaymentStore struct {
	booking     store.Booking
	payments    []store.Payment
	transitions []string
}

func (f *fakePaymentStore) GetBooking(_ context.Context, id pgtype.UUID) (store.Booking, error) {
	if f.booking.ID != id {
		return store.Booking{}, store.ErrNotFound
	}
	return f.booking, nil
}

func (f *fakePaymentStore) GetBookingByReferenceCode(_ context.Context, code string) (store.Booking, error) {
	if f.booking.ReferenceCode != code {
		return store.Booking{}, store.ErrNotFound
	}
	return f.booking, nil
}

func (f *fakePaymentStore) GetLatestPaymentByBooking(_ context.Context, bookingID pgtype.UUID) (store.Payment, error) {
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].BookingID == bookingID {
			return f.payments[i], nil
		}
	}
	return store.Payment{}, store.ErrNotFound
}

func (f *fakePaymentStore) InsertPayment(_ context.Context, arg store.InsertPaymentParams) (store.Payment, error) {
	p := store.Payment{
		ID:          store.NewUUID(),
		BookingID:   arg.BookingID,
		Provider:    arg.Provider,
		Status:      arg.Status,
		Amount:      arg.Amount,
		IntentToken: arg.IntentToken,
		RedirectURL: arg.RedirectURL,
		ExpiresAt:   arg.ExpiresAt,
	}
	f.payments = append(f.payments, p)
	return p, nil
}

func (f *fakePaymentStore) UpdatePaymentStatus(_ context.Context, id pgtype.UUID, status string, payload []byte) error {
	for i := range f.payments {
		if f.payments[i].ID == id {
			f.payments[i].Status = status
			f.payments[i].ProviderPayload = payload
		}
	}
	return nil
}

func (f *fakePaymentStore) TransitionBookingStatus(_ context.Context, id pgtype.UUID, from, to string) (int64, error) {
	if f.booking.ID != id || f.booking.Status != from {
		return 0, nil
	}
	f.booking.Status = to
	f.transitions = append(f.transitions, from+"->"+to)
	return 1, nil
}

func pendingBooking() store.Booking {
	return store.Booking{
		ID:            store.NewUUID(),
		ReferenceCode: "ABC12345",
		RequesterID:   store.NewUUID(),
		FinalAmount:   23000,
		Currency:      "USD",
		Status:        store.BookingStatusPending,
	}
}

func TestCreateCaptureOpensIntent(t *testing.T) {
	st := &fakePaymentStore{booking: pendingBooking()}
	svc := &Service{Store: st, Provider: Midtrans{ServerKey: "sk", Sandbox: true}}

	p, err := svc.CreateCapture(context.Background(), st.booking.ID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPending, p.Status)
	require.Equal(t, int64(23000), p.Amount)
	require.Equal(t, "SNAP-ABC12345", p.IntentToken)

	// a second call reuses the live intent
	again, err := svc.CreateCapture(context.Background(), st.booking.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, again.ID)
	require.Len(t, st.payments, 1)
}

func TestCreateCaptureConfirmsZeroAmount(t *testing.T) {
	b := pendingBooking()
	b.FinalAmount = 0
	st := &fakePaymentStore{booking: b}
	svc := &Service{Store: st, Provider: Midtrans{ServerKey: "sk"}}

	_, err := svc.CreateCapture(context.Background(), st.booking.ID)
	require.NoError(t, err)
	require.Equal(t, store.BookingStatusConfirmed, st.booking.Status)
	require.Empty(t, st.payments)
}

func midtransSignature(key, ref, statusCode, gross string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(ref))
	mac.Write([]byte(statusCode))
	mac.Write([]byte(gross))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookConfirmsBooking(t *testing.T) {
	st := &fakePaymentStore{booking: pendingBooking()}
	provider := Midtrans{ServerKey: "sk"}
	svc := &Service{Store: st, Provider: provider}

	_, err := svc.CreateCapture(context.Background(), st.booking.ID)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{
		"order_id":           "ABC12345",
		"status_code":        "200",
		"gross_amount":       "23000",
		"transaction_status": "settlement",
		"signature_key":      midtransSignature("sk", "ABC12345", "200", "23000"),
	})
	req := httptest.NewRequest("POST", "/webhooks/payment", bytes.NewReader(body))
	res, err := provider.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "PAID", res.Status)

	require.NoError(t, svc.ProcessWebhook(context.Background(), res))
	require.Equal(t, store.BookingStatusConfirmed, st.booking.Status)
	require.Equal(t, store.PaymentStatusPaid, st.payments[0].Status)

	// replayed webhook is a no-op
	require.NoError(t, svc.ProcessWebhook(context.Background(), res))
	require.Len(t, st.transitions, 1)
}

func TestWebhookRejectsAmountMismatch(t *testing.T) {
	st := &fakePaymentStore{booking: pendingBooking()}
	svc := &Service{Store: st, Provider: Midtrans{ServerKey: "sk"}}

	err := svc.ProcessWebhook(context.Background(), WebhookVerifyResult{
		Valid:      true,
		BookingRef: "ABC12345",
		Amount:     1,
		Status:     store.PaymentStatusPaid,
	})
	require.ErrorIs(t, err, ErrWebhookRejected)
	require.Equal(t, store.BookingStatusPending, st.booking.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	provider := Midtrans{ServerKey: "sk"}
	body, _ := json.Marshal(map[string]string{
		"order_id":      "ABC12345",
		"status_code":   "200",
		"gross_amount":  "23000",
		"signature_key": "bogus",
	})
	req := httptest.NewRequest("POST", "/webhooks/payment", bytes.NewReader(body))
	res, err := provider.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.False(t, res.Valid)

	svc := &Service{Store: &fakePaymentStore{booking: pendingBooking()}, Provider: provider}
	require.ErrorIs(t, svc.ProcessWebhook(context.Background(), res), ErrWebhookRejected)
}

func TestStatusFallsBackToBooking(t *testing.T) {
	b := pendingBooking()
	b.Status = store.BookingStatusConfirmed
	st := &fakePaymentStore{booking: b}
	svc := &Service{Store: st, Provider: Midtrans{ServerKey: "sk"}}

	status, err := svc.Status(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPaid, status)
}
