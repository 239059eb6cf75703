package availability

import (
	"time"

	"github.com/noah-isme/backend-travio/internal/rate"
)

// Negative outcome reasons. These are business results, not system errors.
const (
	ReasonIncompleteCoverage = "incomplete coverage"
	ReasonSoldOut            = "sold out"
	ReasonNotFound           = "not found"
)

// Result is the outcome of an availability check. It is advisory only: the
// authoritative success signal is the conditional decrement at persist time.
type Result struct {
	Available bool
	Reason    string
}

func unavailable(reason string) Result { return Result{Reason: reason} }

// Nights counts calendar days in [start, end).
func Nights(start, end time.Time) int {
	s := start.Truncate(24 * time.Hour)
	e := end.Truncate(24 * time.Hour)
	if !e.After(s) {
		return 0
	}
	return int(e.Sub(s) / (24 * time.Hour))
}

// CheckDateRange verifies exact coverage for a date-ranged resource: a stay
// spanning N nights requires exactly N rate lines, one per date, each with
// capacity for the requested room count. Missing dates are reported as
// incomplete coverage, distinct from sold out.
func CheckDateRange(lines []rate.Line, nights, quantity int) Result {
	if nights <= 0 {
		return unavailable(ReasonNotFound)
	}
	if quantity <= 0 {
		quantity = 1
	}
	if len(lines) == 0 {
		return unavailable(ReasonNotFound)
	}
	for _, l := range lines {
		if l.Remaining < quantity {
			return unavailable(ReasonSoldOut)
		}
	}
	if len(lines) != nights {
		return unavailable(ReasonIncompleteCoverage)
	}
	return Result{Available: true}
}

// CheckQuantity verifies a seat or ticket resource has enough remaining
// capacity for the requested quantity.
func CheckQuantity(line *rate.Line, quantity int) Result {
	if line == nil {
		return unavailable(ReasonNotFound)
	}
	if quantity <= 0 {
		quantity = 1
	}
	if line.Remaining < quantity {
		return unavailable(ReasonSoldOut)
	}
	return Result{Available: true}
}
