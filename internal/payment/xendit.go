package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Xendit captures payments through a hosted invoice page. The booking
// reference travels as the invoice external id, so the callback can be
// matched back to a booking without storing provider state.
type Xendit struct {
	SecretKey string
	BaseURL   string
}

// xenditCallback is the subset of the invoice callback we act on.
type xenditCallback struct {
	ExternalID string      `json:"external_id"`
	Amount     json.Number `json:"amount"`
	Status     string      `json:"status"`
}

// CreateIntent opens an invoice for the booking and returns the hosted
// checkout location.
func (x Xendit) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	ref := strings.TrimSpace(req.BookingRef)
	if ref == "" {
		return IntentResponse{}, errors.New("booking reference is required")
	}
	base := strings.TrimRight(strings.TrimSpace(x.BaseURL), "/")
	if base == "" {
		base = "https://checkout-stub.xendit"
	}
	token := "xendit-" + ref
	return IntentResponse{
		Provider:    "xendit",
		Token:       token,
		RedirectURL: fmt.Sprintf("%s/%s", base, token),
		ExpiresAt:   time.Now().Add(time.Duration(req.ExpiresAtSec) * time.Second).Unix(),
	}, nil
}

// VerifyWebhook checks the callback signature against the raw body and
// normalises the payload. Signature failures come back as an invalid
// result rather than an error, so handlers answer 200 and the provider
// stops retrying a callback that will never verify.
func (x Xendit) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	if !x.signatureMatches(r.Header.Get("x-callback-signature"), body) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var cb xenditCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	ref := strings.TrimSpace(cb.ExternalID)
	if ref == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing booking reference")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		BookingRef:      ref,
		Amount:          callbackAmount(cb.Amount),
		Status:          normaliseXenditStatus(cb.Status),
		ProviderPayload: body,
	}, nil
}

func (x Xendit) signatureMatches(provided string, body []byte) bool {
	key := strings.TrimSpace(x.SecretKey)
	provided = strings.TrimSpace(provided)
	if key == "" || provided == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

// callbackAmount tolerates both integer and decimal amounts; settlement
// works in minor units so the fraction is dropped.
func callbackAmount(n json.Number) int64 {
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

func normaliseXenditStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "settled", "success":
		return "PAID"
	case "expired":
		return "EXPIRED"
	case "failed", "canceled":
		return "FAILED"
	default:
		return "PENDING"
	}
}
