package pricing

import "testing"

func TestSettleNoDiscount(t *testing.T) {
	q := Settle(Input{Base: 20000, TaxBps: 1000, FeeBps: 500})
	if q.Tax != 2000 {
		t.Fatalf("expected tax 2000, got %d", q.Tax)
	}
	if q.Fee != 1000 {
		t.Fatalf("expected fee 1000, got %d", q.Fee)
	}
	if q.Final != 23000 {
		t.Fatalf("expected final 23000, got %d", q.Final)
	}
}

func TestSettleSubscriptionAndRedemption(t *testing.T) {
	q := Settle(Input{
		Base:                    20000,
		TaxBps:                  1000,
		FeeBps:                  500,
		SubscriptionDiscountBps: 1000,
		Redemption:              5000,
	})
	if q.SubscriptionDiscount != 2000 {
		t.Fatalf("expected subscription discount 2000, got %d", q.SubscriptionDiscount)
	}
	if q.Discount != 7000 {
		t.Fatalf("expected discount 7000, got %d", q.Discount)
	}
	if q.Final != 16000 {
		t.Fatalf("expected final 16000, got %d", q.Final)
	}
}

func TestSettleClampsAtZero(t *testing.T) {
	q := Settle(Input{Base: 1000, TaxBps: 1000, FeeBps: 500, Redemption: 5000})
	if q.Final != 0 {
		t.Fatalf("expected final clamped to 0, got %d", q.Final)
	}
}

func TestSettleCommissionOnBase(t *testing.T) {
	with := Settle(Input{Base: 20000, TaxBps: 1000, FeeBps: 500, CommissionBps: 1500, SubscriptionDiscountBps: 1000})
	without := Settle(Input{Base: 20000, TaxBps: 1000, FeeBps: 500, CommissionBps: 1500})
	if with.Commission != without.Commission {
		t.Fatalf("commission must not vary with discounts: %d vs %d", with.Commission, without.Commission)
	}
	if with.Commission != 3000 {
		t.Fatalf("expected commission 3000, got %d", with.Commission)
	}
}

func TestRoundBpsHalfUp(t *testing.T) {
	// 15 * 3.33% = 0.4995 -> rounds to 0; 15 * 3.34% = 0.501 -> rounds to 1
	if got := RoundBps(15, 333); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := RoundBps(15, 334); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	// exact half rounds up
	if got := RoundBps(100, 50); got != 1 {
		t.Fatalf("expected half to round up to 1, got %d", got)
	}
}

func TestEarnOnFinalNotBase(t *testing.T) {
	full := Settle(Input{Base: 20000, TaxBps: 1000, FeeBps: 500, EarnRateBps: 10000})
	discounted := Settle(Input{Base: 20000, TaxBps: 1000, FeeBps: 500, EarnRateBps: 10000, Redemption: 5000})
	if discounted.LoyaltyEarned > full.LoyaltyEarned {
		t.Fatalf("discounted booking earned more loyalty: %d > %d", discounted.LoyaltyEarned, full.LoyaltyEarned)
	}
	if full.LoyaltyEarned != 230 {
		t.Fatalf("expected 230 points on 23000 minor units, got %d", full.LoyaltyEarned)
	}
	if discounted.LoyaltyEarned != 180 {
		t.Fatalf("expected 180 points on 18000 minor units, got %d", discounted.LoyaltyEarned)
	}
}

func TestEarnBonusesFlooredIndependently(t *testing.T) {
	// base earn 150, subscription bonus 5% -> 7 (floored), tier bonus 2.5% -> 3 (floored)
	got := Earn(15000, 10000, 500, 250)
	if got != 150+7+3 {
		t.Fatalf("expected 160, got %d", got)
	}
}
