package loyalty

import (
	"errors"
	"strings"

	"github.com/noah-isme/backend-travio/internal/pricing"
)

var (
	// ErrInsufficientBalance is returned when the requested redemption exceeds the snapshot balance.
	ErrInsufficientBalance = errors.New("loyalty: insufficient balance")
	// ErrCapExceeded is returned when the requested redemption exceeds the per-booking cap.
	ErrCapExceeded = errors.New("loyalty: redemption cap exceeded")
	// ErrInvalidAmount is returned for non-positive redemption requests.
	ErrInvalidAmount = errors.New("loyalty: invalid redemption amount")
)

// Redemption is a validated redemption intent. The conversion between points
// and minor currency units is 1:1 unless a vertical overrides the rate.
type Redemption struct {
	Points int64
	Value  pricing.Money
}

// ValidateRedemption checks the requested amount against the balance snapshot
// and the cap derived from the base amount. Violations are rejected with the
// specific reason, never clamped.
func ValidateRedemption(requested, balance int64, base pricing.Money, capBps int) (Redemption, error) {
	if requested == 0 {
		return Redemption{}, nil
	}
	if requested < 0 {
		return Redemption{}, ErrInvalidAmount
	}
	if requested > balance {
		return Redemption{}, ErrInsufficientBalance
	}
	if cap := pricing.FloorBps(base, capBps); requested > cap {
		return Redemption{}, ErrCapExceeded
	}
	return Redemption{Points: requested, Value: requested}, nil
}

// RejectionCode maps a redemption error onto the wire-level reason code.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrCapExceeded):
		return "CAP_EXCEEDED"
	default:
		return "REDEMPTION_REJECTED"
	}
}

// TierBonusBps returns the earning bonus attached to a loyalty tier.
func TierBonusBps(tier string) int {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "silver":
		return 250
	case "gold":
		return 500
	case "platinum":
		return 1000
	default:
		return 0
	}
}
