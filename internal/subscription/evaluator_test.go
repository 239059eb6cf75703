package subscription

import (
	"testing"
	"time"

	"github.com/noah-isme/backend-travio/internal/vertical"
)

func hotelPolicy(t *testing.T) vertical.Policy {
	t.Helper()
	p, ok := vertical.PolicyFor(vertical.Hotel)
	if !ok {
		t.Fatal("hotel policy missing")
	}
	return p
}

func TestEvaluateInactive(t *testing.T) {
	e := Evaluate(Status{}, 5, 1, time.Now(), hotelPolicy(t))
	if e.Eligible || e.DiscountBps != 0 || e.BonusBps != 0 {
		t.Fatalf("inactive plan must grant nothing: %+v", e)
	}
}

func TestEvaluateExpired(t *testing.T) {
	s := Status{Active: true, ExpiresAt: time.Now().Add(-time.Hour)}
	e := Evaluate(s, 5, 1, time.Now(), hotelPolicy(t))
	if e.Eligible {
		t.Fatalf("expired plan must grant nothing: %+v", e)
	}
}

func TestEvaluateBelowThresholdBonusOnly(t *testing.T) {
	s := Status{Active: true, ExpiresAt: time.Now().Add(time.Hour)}
	e := Evaluate(s, 2, 1, time.Now(), hotelPolicy(t))
	if !e.Eligible {
		t.Fatalf("active plan must be eligible")
	}
	if e.DiscountBps != 0 {
		t.Fatalf("discount must be gated by minimum stay, got %d", e.DiscountBps)
	}
	if e.BonusBps == 0 {
		t.Fatalf("loyalty bonus applies regardless of stay length")
	}
}

func TestEvaluateMeetsThreshold(t *testing.T) {
	s := Status{Active: true, ExpiresAt: time.Now().Add(time.Hour)}
	e := Evaluate(s, 3, 1, time.Now(), hotelPolicy(t))
	if e.DiscountBps != 1000 {
		t.Fatalf("expected 1000 bps discount, got %d", e.DiscountBps)
	}
	if e.BonusBps != 500 {
		t.Fatalf("expected 500 bps bonus, got %d", e.BonusBps)
	}
}

func TestEvaluateResourceCeilingSuppressesDiscount(t *testing.T) {
	s := Status{Active: true, ExpiresAt: time.Now().Add(time.Hour)}
	e := Evaluate(s, 5, 4, time.Now(), hotelPolicy(t))
	if e.DiscountBps != 0 {
		t.Fatalf("discount must be suppressed above the room ceiling, got %d", e.DiscountBps)
	}
	if e.BonusBps == 0 {
		t.Fatalf("bonus must survive the ceiling")
	}
}
