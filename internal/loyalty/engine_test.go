package loyalty

import (
	"errors"
	"testing"
)

func TestValidateRedemptionWithinCap(t *testing.T) {
	r, err := ValidateRedemption(5000, 10_000, 20000, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Value != 5000 || r.Points != 5000 {
		t.Fatalf("expected 1:1 conversion, got %+v", r)
	}
}

func TestValidateRedemptionCapExceeded(t *testing.T) {
	// 60% of base against a 50% cap must be rejected, not clamped.
	_, err := ValidateRedemption(12000, 50_000, 20000, 5000)
	if !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded, got %v", err)
	}
	if RejectionCode(err) != "CAP_EXCEEDED" {
		t.Fatalf("expected CAP_EXCEEDED code, got %s", RejectionCode(err))
	}
}

func TestValidateRedemptionInsufficientBalance(t *testing.T) {
	_, err := ValidateRedemption(5000, 4999, 20000, 5000)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if RejectionCode(err) != "INSUFFICIENT_BALANCE" {
		t.Fatalf("expected INSUFFICIENT_BALANCE code, got %s", RejectionCode(err))
	}
}

func TestValidateRedemptionZeroIsNoop(t *testing.T) {
	r, err := ValidateRedemption(0, 0, 20000, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Value != 0 {
		t.Fatalf("expected zero redemption, got %+v", r)
	}
}

func TestTierBonusBps(t *testing.T) {
	if TierBonusBps("gold") != 500 {
		t.Fatalf("unexpected gold bonus")
	}
	if TierBonusBps("") != 0 {
		t.Fatalf("expected 0 for unknown tier")
	}
}
