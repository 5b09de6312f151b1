package types

import (
	"testing"
	"time"
)

func validCheckoutRequest() *CheckoutRequest {
	return &CheckoutRequest{
		RequestID:     "req-1",
		CallerService: "community-service",
		UserID:        7,
		UserEmail:     "u@example.com",
		ProductID:     1,
		PriceID:       10,
	}
}

func TestCheckoutRequestValidate(t *testing.T) {
	if err := validCheckoutRequest().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	req := validCheckoutRequest()
	req.UserID = 0
	if err := req.Validate(); err == nil {
		t.Fatal("expected missing user_id to fail")
	}

	req = validCheckoutRequest()
	req.AnchorBillingCycle = "not-a-date"
	if err := req.Validate(); err == nil {
		t.Fatal("expected invalid anchor to fail")
	}
}

func TestCheckoutRequestAnchor(t *testing.T) {
	req := validCheckoutRequest()
	if req.Anchor() != nil {
		t.Fatal("expected nil anchor when unset")
	}

	req.AnchorBillingCycle = "2026-01-15T00:00:00Z"
	anchor := req.Anchor()
	if anchor == nil {
		t.Fatal("expected parsed anchor")
	}
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !anchor.Equal(want) {
		t.Fatalf("unexpected anchor %s", anchor)
	}
}

func TestSwapPriceRequestValidate(t *testing.T) {
	req := &SwapPriceRequest{OldPriceID: 10, NewPriceID: 11}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	req.NewPriceID = 10
	if err := req.Validate(); err == nil {
		t.Fatal("expected identical prices to fail")
	}

	req = &SwapPriceRequest{OldPriceID: 10, NewPriceID: 11, ProrationBehavior: "sometimes"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected unknown proration behavior to fail")
	}
}
