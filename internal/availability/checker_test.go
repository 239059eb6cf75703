package availability

import (
	"testing"
	"time"

	"github.com/noah-isme/backend-travio/internal/rate"
)

func TestNights(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	if n := Nights(start, end); n != 3 {
		t.Fatalf("expected 3 nights, got %d", n)
	}
	if n := Nights(end, start); n != 0 {
		t.Fatalf("inverted range must yield 0, got %d", n)
	}
}

func TestCheckDateRangeAvailable(t *testing.T) {
	lines := []rate.Line{
		{Key: "2026-09-01", Remaining: 2},
		{Key: "2026-09-02", Remaining: 1},
		{Key: "2026-09-03", Remaining: 5},
	}
	res := CheckDateRange(lines, 3, 1)
	if !res.Available {
		t.Fatalf("expected available, got %+v", res)
	}
}

func TestCheckDateRangeIncompleteCoverage(t *testing.T) {
	// 3-night stay with rate rows for only 2 nights is a partial match,
	// never a partial booking.
	lines := []rate.Line{
		{Key: "2026-09-01", Remaining: 2},
		{Key: "2026-09-02", Remaining: 2},
	}
	res := CheckDateRange(lines, 3, 1)
	if res.Available {
		t.Fatal("expected unavailable")
	}
	if res.Reason != ReasonIncompleteCoverage {
		t.Fatalf("expected incomplete coverage, got %q", res.Reason)
	}
}

func TestCheckDateRangeSoldOut(t *testing.T) {
	lines := []rate.Line{
		{Key: "2026-09-01", Remaining: 1},
		{Key: "2026-09-02", Remaining: 0},
		{Key: "2026-09-03", Remaining: 1},
	}
	res := CheckDateRange(lines, 3, 1)
	if res.Available || res.Reason != ReasonSoldOut {
		t.Fatalf("expected sold out, got %+v", res)
	}
}

func TestCheckQuantity(t *testing.T) {
	line := &rate.Line{Key: "offer", Remaining: 4}
	if res := CheckQuantity(line, 4); !res.Available {
		t.Fatalf("expected available, got %+v", res)
	}
	if res := CheckQuantity(line, 5); res.Available || res.Reason != ReasonSoldOut {
		t.Fatalf("expected sold out, got %+v", res)
	}
	if res := CheckQuantity(nil, 1); res.Available || res.Reason != ReasonNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
}
