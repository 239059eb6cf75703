package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/backend-travio/internal/resilience"
)

// Midtrans implements the Provider interface for Midtrans SNAP/Payment Intent style integrations.
type Midtrans struct {
	ServerKey string
	BaseURL   string
	Sandbox   bool
	HTTP      *resilience.HTTPClient
}

// CreateIntent opens a SNAP transaction. Without an HTTP client configured it
// synthesises a deterministic token so local development and tests can drive
// the rest of the flow offline.
func (m Midtrans) CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	if strings.TrimSpace(req.BookingRef) == "" {
		return IntentResponse{}, errors.New("booking reference is required")
	}
	expiresAt := time.Now().Add(time.Duration(req.ExpiresAtSec) * time.Second)
	if m.HTTP != nil {
		return m.createSnapTransaction(ctx, req, expiresAt)
	}
	token := fmt.Sprintf("SNAP-%s", req.BookingRef)
	return IntentResponse{
		Provider:    "midtrans",
		Token:       token,
		RedirectURL: fmt.Sprintf("%s/snap/v2/vtweb/%s", strings.TrimRight(m.snapHost(), "/"), token),
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (m Midtrans) createSnapTransaction(ctx context.Context, req IntentRequest, expiresAt time.Time) (IntentResponse, error) {
	payload := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     req.BookingRef,
			"gross_amount": req.Amount,
		},
		"expiry": map[string]any{
			"unit":     "second",
			"duration": req.ExpiresAtSec,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return IntentResponse{}, err
	}
	endpoint := strings.TrimRight(m.snapHost(), "/") + "/snap/v1/transactions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return IntentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.SetBasicAuth(m.ServerKey, "")

	resp, err := m.HTTP.Do(ctx, httpReq)
	if err != nil {
		return IntentResponse{}, fmt.Errorf("midtrans: create transaction: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return IntentResponse{}, fmt.Errorf("midtrans: create transaction: %s", resp.Status)
	}
	var out struct {
		Token       string `json:"token"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return IntentResponse{}, fmt.Errorf("midtrans: decode response: %w", err)
	}
	if out.Token == "" {
		return IntentResponse{}, errors.New("midtrans: response missing token")
	}
	return IntentResponse{
		Provider:    "midtrans",
		Token:       out.Token,
		RedirectURL: out.RedirectURL,
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (m Midtrans) snapHost() string {
	host := strings.TrimSpace(m.BaseURL)
	if host == "" {
		if m.Sandbox {
			return "https://app.sandbox.midtrans.com"
		}
		return "https://app.midtrans.com"
	}
	return host
}

// VerifyWebhook validates the Midtrans signature and normalises the payload into WebhookVerifyResult.
func (m Midtrans) VerifyWebhook(_ *http.Request, body []byte) (WebhookVerifyResult, error) {
	var payload struct {
		BookingRef        string `json:"order_id"`
		StatusCode        string `json:"status_code"`
		GrossAmount       string `json:"gross_amount"`
		SignatureKey      string `json:"signature_key"`
		TransactionStatus string `json:"transaction_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}

	if payload.BookingRef == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing booking reference")}, nil
	}

	expected := m.computeSignature(payload.BookingRef, payload.StatusCode, payload.GrossAmount)
	provided := strings.TrimSpace(payload.SignatureKey)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	amount, err := parseMidtransAmount(payload.GrossAmount)
	if err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}

	status := normaliseMidtransStatus(payload.TransactionStatus)

	return WebhookVerifyResult{
		Valid:           true,
		BookingRef:      payload.BookingRef,
		Amount:          amount,
		Status:          status,
		ProviderPayload: body,
	}, nil
}

func (m Midtrans) computeSignature(bookingRef, statusCode, grossAmount string) string {
	key := strings.TrimSpace(m.ServerKey)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(bookingRef))
	mac.Write([]byte(statusCode))
	mac.Write([]byte(grossAmount))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseMidtransAmount(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if !strings.Contains(trimmed, ".") {
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, err
		}
		return parsed, nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

func normaliseMidtransStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "capture", "settlement":
		return "PAID"
	case "pending":
		return "PENDING"
	case "deny", "cancel":
		return "FAILED"
	case "expire":
		return "EXPIRED"
	case "refund":
		return "REFUNDED"
	default:
		return "PENDING"
	}
}
