package rate

import "github.com/noah-isme/backend-travio/internal/pricing"

// Line is one priced, date- or slot-scoped slice of bookable inventory: a
// nightly rate row, a fare class, or a ticket type session.
type Line struct {
	UnitID    string
	Key       string // calendar date for date-ranged resources, slot key otherwise
	Price     pricing.Money
	Remaining int
}

// Summary is the aggregate of the matched lines.
type Summary struct {
	Base      pricing.Money
	UnitCount int
	// AveragePerUnit is display-only and truncates. The authoritative value
	// is always Base, never AveragePerUnit times UnitCount.
	AveragePerUnit pricing.Money
}

// Aggregate sums the matched lines into the base amount. For quantity-based
// resources the same line price is multiplied by the quantity.
func Aggregate(lines []Line, quantity int) Summary {
	if quantity <= 0 {
		quantity = 1
	}
	var s Summary
	if len(lines) == 1 {
		s.Base = lines[0].Price * pricing.Money(quantity)
		s.UnitCount = quantity
	} else {
		for _, l := range lines {
			s.Base += l.Price
		}
		s.UnitCount = len(lines)
	}
	if s.UnitCount > 0 {
		s.AveragePerUnit = s.Base / pricing.Money(s.UnitCount)
	}
	return s
}
