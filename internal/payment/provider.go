package payment

import (
	"context"
	"net/http"
)

// Provider abstracts an upstream payment gateway. Implementations open a
// capture intent for a booking and verify the asynchronous callback that
// reports its outcome.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}

// IntentRequest describes the capture to open. BookingRef is the branded
// reference code; providers echo it back in callbacks so results can be
// matched to a booking without provider-side state.
type IntentRequest struct {
	BookingRef      string
	Amount          int64
	Currency        string
	ExpiresAtSec    int
	CallbackBaseURL string
}

// IntentResponse carries what the client needs to complete the payment.
type IntentResponse struct {
	Provider    string
	Token       string
	RedirectURL string
	ExpiresAt   int64
}

// WebhookVerifyResult is the normalised outcome of a provider callback.
// Valid is false when the signature or payload cannot be trusted; Err then
// records why, without failing the HTTP exchange.
type WebhookVerifyResult struct {
	Valid           bool
	BookingRef      string
	Amount          int64
	Status          string
	ProviderPayload []byte
	Err             error
}
