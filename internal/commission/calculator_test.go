package commission

import "testing"

func TestCalculate(t *testing.T) {
	share := Calculate(20000, &Terms{PartnerID: "p1", RateBps: 1500})
	if share.Amount != 3000 {
		t.Fatalf("expected 3000, got %d", share.Amount)
	}
	if share.NeedsReview {
		t.Fatalf("valid terms must not flag review")
	}
}

func TestCalculateMissingTerms(t *testing.T) {
	share := Calculate(20000, nil)
	if share.Amount != 0 || share.RateBps != 0 {
		t.Fatalf("missing terms must default to zero commission, got %+v", share)
	}
	if !share.NeedsReview {
		t.Fatalf("missing terms must be flagged for review")
	}
}

func TestCalculateRejectsOutOfRangeRate(t *testing.T) {
	share := Calculate(20000, &Terms{RateBps: 10000})
	if share.Amount != 0 || !share.NeedsReview {
		t.Fatalf("rate must stay within [0,1): %+v", share)
	}
}

func TestEarnRateFallback(t *testing.T) {
	if got := EarnRateBps(&Terms{EarnRateBps: 20000}, 10000); got != 20000 {
		t.Fatalf("expected partner override, got %d", got)
	}
	if got := EarnRateBps(nil, 10000); got != 10000 {
		t.Fatalf("expected fallback, got %d", got)
	}
}
