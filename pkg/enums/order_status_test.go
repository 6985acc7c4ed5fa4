package enums

import "testing"

func TestOrderStatusSuccessors(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusInProgress, true},
		{OrderStatusInProgress, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusInProgress, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusDelivered, false},
		{OrderStatusPending, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.ok, got)
		}
	}

	if _, ok := OrderStatusDelivered.Next(); ok {
		t.Fatalf("delivered must be terminal")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if got, err := ParseOrderStatus("in_progress"); err != nil || got != OrderStatusInProgress {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestRoleAndCategoryValidation(t *testing.T) {
	if !RoleVendor.IsValid() || Role("admin").IsValid() {
		t.Fatalf("unexpected role validation")
	}
	if _, err := ParseProductCategory("dairy"); err == nil {
		t.Fatalf("expected dairy to be rejected")
	}
	if !PaymentStatusPaid.IsPaid() || PaymentStatusUnpaid.IsPaid() {
		t.Fatalf("unexpected payment status helpers")
	}
}
