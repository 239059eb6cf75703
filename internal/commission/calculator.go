package commission

import (
	"github.com/noah-isme/backend-travio/internal/pricing"
)

// Terms is the per-partner commission snapshot read before settlement.
type Terms struct {
	PartnerID   string
	RateBps     int
	EarnRateBps int // loyalty earn-rate override, 0 means vertical default
}

// Share is the platform's computed commission on a booking.
type Share struct {
	RateBps     int
	Amount      pricing.Money
	NeedsReview bool
}

// Calculate derives the platform share from the base amount. Missing terms
// are a configuration problem, not a booking blocker: the rate defaults to
// zero and the share is flagged for operator review.
func Calculate(base pricing.Money, terms *Terms) Share {
	if terms == nil {
		return Share{NeedsReview: true}
	}
	rate := terms.RateBps
	if rate < 0 || rate >= 10000 {
		return Share{NeedsReview: true}
	}
	return Share{
		RateBps: rate,
		Amount:  pricing.RoundBps(base, rate),
	}
}

// EarnRateBps resolves the effective loyalty earn rate for a partner,
// falling back to the vertical default.
func EarnRateBps(terms *Terms, fallback int) int {
	if terms != nil && terms.EarnRateBps > 0 {
		return terms.EarnRateBps
	}
	return fallback
}
