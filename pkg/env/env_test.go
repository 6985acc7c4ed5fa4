package env

import "testing"

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("FRESHBULK_TEST_VALUE", "   ")
	if got := Get("FRESHBULK_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestFirstPicksEarliestSetKey(t *testing.T) {
	t.Setenv("FRESHBULK_TEST_A", "")
	t.Setenv("FRESHBULK_TEST_B", "8080")
	if got := First("9000", "FRESHBULK_TEST_A", "FRESHBULK_TEST_B"); got != "8080" {
		t.Fatalf("expected 8080, got %q", got)
	}
	if got := First("9000", "FRESHBULK_TEST_MISSING"); got != "9000" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
