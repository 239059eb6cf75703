package rate

import "testing"

func TestAggregateDateRange(t *testing.T) {
	lines := []Line{
		{Key: "2026-09-01", Price: 10000},
		{Key: "2026-09-02", Price: 12000},
		{Key: "2026-09-03", Price: 11000},
	}
	s := Aggregate(lines, 1)
	if s.Base != 33000 {
		t.Fatalf("expected base 33000, got %d", s.Base)
	}
	if s.UnitCount != 3 {
		t.Fatalf("expected 3 units, got %d", s.UnitCount)
	}
	if s.AveragePerUnit != 11000 {
		t.Fatalf("expected average 11000, got %d", s.AveragePerUnit)
	}
}

func TestAggregateAverageTruncates(t *testing.T) {
	lines := []Line{
		{Key: "2026-09-01", Price: 10000},
		{Key: "2026-09-02", Price: 10001},
	}
	s := Aggregate(lines, 1)
	if s.AveragePerUnit != 10000 {
		t.Fatalf("average must truncate: got %d", s.AveragePerUnit)
	}
	// truncation loses a cent on the average; the base stays authoritative
	if s.AveragePerUnit*2 == s.Base {
		t.Fatalf("test should exercise the truncation gap")
	}
	if s.Base != 20001 {
		t.Fatalf("expected base 20001, got %d", s.Base)
	}
}

func TestAggregateQuantity(t *testing.T) {
	lines := []Line{{Key: "offer", Price: 45000}}
	s := Aggregate(lines, 3)
	if s.Base != 135000 {
		t.Fatalf("expected base 135000, got %d", s.Base)
	}
	if s.UnitCount != 3 {
		t.Fatalf("expected 3 units, got %d", s.UnitCount)
	}
}
