package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"45", 4500},
		{"0", 0},
		{"12.5", 1250},
		{"12.345", 1235},
		{"0.004", 0},
		{"80.10", 8010},
	}
	for _, tc := range cases {
		got, err := ToMinor(decimal.RequireFromString(tc.in))
		if err != nil {
			t.Fatalf("ToMinor(%s) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ToMinor(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestToMinorRejectsNegative(t *testing.T) {
	if _, err := ToMinor(decimal.RequireFromString("-1")); err == nil {
		t.Fatal("expected negative amount to fail")
	}
}

func TestFromMinorAndFormat(t *testing.T) {
	if !FromMinor(29500).Equal(decimal.RequireFromString("295")) {
		t.Fatalf("unexpected FromMinor result %s", FromMinor(29500))
	}
	if got := Format(13505); got != "135.05" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := Format(0); got != "0.00" {
		t.Fatalf("unexpected format %q", got)
	}
}
