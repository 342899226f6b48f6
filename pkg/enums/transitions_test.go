package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	allowed := [][2]OrderStatus{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusConfirmed, OrderStatusProcessing},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusCancelled},
	}
	for _, pair := range allowed {
		if !pair[0].CanTransitionTo(pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}

	denied := [][2]OrderStatus{
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusConfirmed, OrderStatusConfirmed},
		{OrderStatusShipped, OrderStatusProcessing},
	}
	for _, pair := range denied {
		if pair[0].CanTransitionTo(pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}

	if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatalf("delivered and cancelled must be terminal")
	}
	if OrderStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
	if OrderStatus("bogus").IsTerminal() {
		t.Fatalf("unknown statuses are not terminal")
	}
}

func TestOrderStatusSourcesForCancelled(t *testing.T) {
	sources := OrderStatusSourcesFor(OrderStatusCancelled)
	if len(sources) != 4 {
		t.Fatalf("expected 4 cancellable statuses, got %v", sources)
	}
	if got := OrderStatusSourcesFor(OrderStatusPending); len(got) != 0 {
		t.Fatalf("nothing transitions back to pending, got %v", got)
	}
}

func TestCommissionStatusTransitions(t *testing.T) {
	if !CommissionStatusPending.CanTransitionTo(CommissionStatusPaid) {
		t.Fatalf("pending -> paid must be allowed")
	}
	if !CommissionStatusPending.CanTransitionTo(CommissionStatusRejected) {
		t.Fatalf("pending -> rejected must be allowed")
	}
	if CommissionStatusPaid.CanTransitionTo(CommissionStatusPaid) {
		t.Fatalf("paid must not transition again")
	}
	if CommissionStatusRejected.CanTransitionTo(CommissionStatusPaid) {
		t.Fatalf("rejected must be terminal")
	}
	if !CommissionStatusPaid.IsTerminal() || !CommissionStatusRejected.IsTerminal() {
		t.Fatalf("paid and rejected must be terminal")
	}

	sources := CommissionStatusSourcesFor(CommissionStatusPaid)
	if len(sources) != 2 || sources[0] != CommissionStatusPending || sources[1] != CommissionStatusApproved {
		t.Fatalf("unexpected sources for paid: %v", sources)
	}
}

func TestParsePaymentMethodNormalizes(t *testing.T) {
	method, err := ParsePaymentMethod(" Gateway ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if method != PaymentMethodGateway || !method.RequiresVerification() {
		t.Fatalf("unexpected method %q", method)
	}
	if _, err := ParsePaymentMethod("barter"); err == nil {
		t.Fatalf("expected unknown method to fail")
	}
}
