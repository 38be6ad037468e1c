package billing

import (
	"errors"
	"testing"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pro", "PRO"},
		{" basic ", "BASIC"},
		{"FREE", "FREE"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriceFor(t *testing.T) {
	tests := []struct {
		plan string
		want int
	}{
		{"FREE", 0},
		{"BASIC", 2500},
		{"PRO", 3900},
	}
	for _, tt := range tests {
		got, err := PriceFor(tt.plan)
		if err != nil {
			t.Fatalf("PriceFor(%q): %v", tt.plan, err)
		}
		if got != tt.want {
			t.Fatalf("PriceFor(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}

	if _, err := PriceFor("GOLD"); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan for unknown plan, got %v", err)
	}
}
