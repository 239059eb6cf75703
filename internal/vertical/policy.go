package vertical

import "strings"

// Vertical identifies a marketplace inventory family.
type Vertical string

const (
	Hotel         Vertical = "hotel"
	Flight        Vertical = "flight"
	Entertainment Vertical = "entertainment"
	Transport     Vertical = "transport"
)

// Policy captures the per-vertical settlement constants. All rates are
// expressed in basis points against amounts in minor currency units, so the
// same settlement code serves every vertical.
type Policy struct {
	Vertical Vertical

	// TaxBps and FeeBps are applied to the base amount, rounded half-up.
	TaxBps int
	FeeBps int

	// SubscriptionDiscountBps applies on base only, floored, when the
	// booking meets MinUnits and stays within MaxResources.
	SubscriptionDiscountBps int
	SubscriptionMinUnits    int
	SubscriptionMaxResources int

	// SubscriptionBonusBps boosts loyalty earning whenever the plan is
	// active, independent of the discount gates.
	SubscriptionBonusBps int

	// RedemptionCapBps caps loyalty redemption against the base amount.
	RedemptionCapBps int

	// EarnRateBps is the default loyalty earn rate per major currency unit
	// (10000 = one point per major unit). Partner terms may override it.
	EarnRateBps int
}

var policies = map[Vertical]Policy{
	Hotel: {
		Vertical:                 Hotel,
		TaxBps:                   1000,
		FeeBps:                   500,
		SubscriptionDiscountBps:  1000,
		SubscriptionMinUnits:     3,
		SubscriptionMaxResources: 3,
		SubscriptionBonusBps:     500,
		RedemptionCapBps:         5000,
		EarnRateBps:              10000,
	},
	Flight: {
		Vertical:                 Flight,
		TaxBps:                   1000,
		FeeBps:                   500,
		SubscriptionDiscountBps:  1000,
		SubscriptionMinUnits:     2,
		SubscriptionMaxResources: 6,
		SubscriptionBonusBps:     500,
		RedemptionCapBps:         5000,
		EarnRateBps:              10000,
	},
	Entertainment: {
		Vertical:                 Entertainment,
		TaxBps:                   1000,
		FeeBps:                   500,
		SubscriptionDiscountBps:  1000,
		SubscriptionMinUnits:     3,
		SubscriptionMaxResources: 10,
		SubscriptionBonusBps:     500,
		RedemptionCapBps:         5000,
		EarnRateBps:              10000,
	},
	Transport: {
		Vertical:                 Transport,
		TaxBps:                   1000,
		FeeBps:                   500,
		SubscriptionDiscountBps:  1000,
		SubscriptionMinUnits:     2,
		SubscriptionMaxResources: 4,
		SubscriptionBonusBps:     500,
		RedemptionCapBps:         5000,
		EarnRateBps:              10000,
	},
}

// Parse normalises a vertical name supplied by a route or payload.
func Parse(value string) (Vertical, bool) {
	v := Vertical(strings.ToLower(strings.TrimSpace(value)))
	_, ok := policies[v]
	return v, ok
}

// PolicyFor returns the settlement policy for the vertical.
func PolicyFor(v Vertical) (Policy, bool) {
	p, ok := policies[v]
	return p, ok
}

// DateRanged reports whether the vertical books per calendar date rather
// than per quantity of a single slice.
func (v Vertical) DateRanged() bool {
	return v == Hotel
}
