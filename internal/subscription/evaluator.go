package subscription

import (
	"time"

	"github.com/noah-isme/backend-travio/internal/vertical"
)

// Status is the snapshot of a requester's paid benefit plan at settlement time.
type Status struct {
	Active    bool
	ExpiresAt time.Time
	Plan      string
}

// Eligibility describes which benefits apply to the booking under evaluation.
type Eligibility struct {
	Eligible    bool
	DiscountBps int
	BonusBps    int
	Notes       []string
}

// Evaluate applies the benefit policy to the booking parameters. It is pure:
// it never reads balances or storage. The loyalty bonus applies whenever the
// plan is active; the price discount additionally requires the minimum
// units threshold and the resource ceiling.
func Evaluate(s Status, units, resources int, now time.Time, p vertical.Policy) Eligibility {
	if !s.Active || (!s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)) {
		return Eligibility{}
	}
	e := Eligibility{Eligible: true, BonusBps: p.SubscriptionBonusBps}
	if units < p.SubscriptionMinUnits {
		e.Notes = append(e.Notes, "minimum stay not met, loyalty bonus only")
		return e
	}
	if p.SubscriptionMaxResources > 0 && resources > p.SubscriptionMaxResources {
		e.Notes = append(e.Notes, "resource ceiling exceeded, loyalty bonus only")
		return e
	}
	e.DiscountBps = p.SubscriptionDiscountBps
	e.Notes = append(e.Notes, "subscription discount applied")
	return e
}
