package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Input collects everything the settlement needs. All values are inputs, not
// ambient lookups, so the function stays pure and testable without storage.
type Input struct {
	Base                    Money
	TaxBps                  int
	FeeBps                  int
	SubscriptionDiscountBps int
	Redemption              Money
	CommissionBps           int

	// Earning parameters. EarnRateBps is points per major currency unit.
	EarnRateBps          int
	SubscriptionBonusBps int
	TierBonusBps         int
}

// Quote is the settled price breakdown.
type Quote struct {
	Base                 Money
	Tax                  Money
	Fee                  Money
	SubscriptionDiscount Money
	Redemption           Money
	Discount             Money
	Final                Money
	Commission           Money
	LoyaltyEarned        int64
}

// RoundBps applies a basis-point rate to an amount, rounding half-up.
func RoundBps(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*Money(bps) + 5000) / 10000
}

// FloorBps applies a basis-point rate to an amount, truncating.
func FloorBps(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return amount * Money(bps) / 10000
}

// Settle combines the booking amounts in a fixed order. The order is part of
// the contract: tax and fee on base, subscription discount floored on base
// only, redemption already validated against base, the final amount clamped
// at zero, commission on base regardless of discounts, and loyalty earned on
// the final paid amount.
func Settle(in Input) Quote {
	q := Quote{Base: in.Base}
	if q.Base < 0 {
		q.Base = 0
	}
	q.Tax = RoundBps(q.Base, in.TaxBps)
	q.Fee = RoundBps(q.Base, in.FeeBps)
	q.SubscriptionDiscount = FloorBps(q.Base, in.SubscriptionDiscountBps)
	q.Redemption = in.Redemption
	if q.Redemption < 0 {
		q.Redemption = 0
	}
	q.Discount = q.SubscriptionDiscount + q.Redemption
	q.Final = q.Base + q.Tax + q.Fee - q.Discount
	if q.Final < 0 {
		q.Final = 0
	}
	q.Commission = RoundBps(q.Base, in.CommissionBps)
	q.LoyaltyEarned = Earn(q.Final, in.EarnRateBps, in.SubscriptionBonusBps, in.TierBonusBps)
	return q
}

// Earn computes loyalty points from the amount the customer actually pays.
// The base earn is floored on major units, then each bonus is floored
// independently on the base earn.
func Earn(final Money, earnRateBps, subscriptionBonusBps, tierBonusBps int) int64 {
	if final <= 0 || earnRateBps <= 0 {
		return 0
	}
	major := final / 100
	base := major * int64(earnRateBps) / 10000
	total := base
	if subscriptionBonusBps > 0 {
		total += base * int64(subscriptionBonusBps) / 10000
	}
	if tierBonusBps > 0 {
		total += base * int64(tierBonusBps) / 10000
	}
	return total
}
