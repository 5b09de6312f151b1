package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-billing/app/driver"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

func swapFixture() *billingFixture {
	f := newBillingFixture()

	oldRemote := "price_old"
	newRemote := "price_new"
	f.products.put(&entity.Product{
		ID:                1,
		Name:              "Pro Plan",
		Active:            true,
		Provider:          driver.CodeStripe,
		ProviderProductID: strPtr("prod_1"),
		Prices: []*entity.Price{
			{ID: 10, ProductID: 1, UnitAmountCents: 1500, Currency: "USD", Interval: "month", ProviderPriceID: &oldRemote},
			{ID: 11, ProductID: 1, UnitAmountCents: 1900, Currency: "USD", Interval: "month", ProviderPriceID: &newRemote},
		},
	})

	f.subs.subscriptions[1] = &entity.Subscription{
		ID: 1, OrderID: 1, UserID: 7, PriceID: 10,
		Status: entity.SubscriptionStatusActive, Provider: driver.CodeStripe,
		ProviderSubscriptionID: "sub_a",
	}
	f.subs.subscriptions[2] = &entity.Subscription{
		ID: 2, OrderID: 2, UserID: 8, PriceID: 10,
		Status: entity.SubscriptionStatusActive, Provider: driver.CodeStripe,
		ProviderSubscriptionID: "sub_b",
	}
	f.subs.nextID = 3
	return f
}

func strPtr(s string) *string { return &s }

func TestRunSwapPriceBatchMovesSubscriptions(t *testing.T) {
	f := swapFixture()

	job, err := f.svc.RunSwapPriceBatch(context.Background(), SwapPriceBatchInput{
		OldPriceID: 10,
		NewPriceID: 11,
	})
	if err != nil {
		t.Fatalf("swap batch failed: %v", err)
	}

	if job.TotalUnits != 2 || job.SucceededUnits != 2 || job.FailedUnits != 0 {
		t.Fatalf("unexpected batch accounting: %+v", job)
	}
	if job.Status != entity.BatchJobStatusCompleted {
		t.Fatalf("expected completed batch, got %d", job.Status)
	}
	for id, subscription := range f.subs.subscriptions {
		if subscription.PriceID != 11 {
			t.Fatalf("expected subscription %d moved to price 11, got %d", id, subscription.PriceID)
		}
	}
	if f.gateDriver.swapCalls != 2 {
		t.Fatalf("expected 2 gateway swaps, got %d", f.gateDriver.swapCalls)
	}

	stored, err := f.svc.GetBatch(context.Background(), job.BatchID)
	if err != nil {
		t.Fatalf("get batch failed: %v", err)
	}
	if stored.TotalUnits != 2 {
		t.Fatalf("expected persisted batch, got %+v", stored)
	}
}

func TestRunSwapPriceBatchRecordsFailedUnits(t *testing.T) {
	f := swapFixture()
	f.gateDriver.swapErr = &driver.PaymentError{Code: "card_declined", Message: "declined"}

	job, err := f.svc.RunSwapPriceBatch(context.Background(), SwapPriceBatchInput{
		OldPriceID: 10,
		NewPriceID: 11,
	})
	if err != nil {
		t.Fatalf("swap batch failed: %v", err)
	}

	if job.SucceededUnits != 0 || job.FailedUnits != 2 {
		t.Fatalf("unexpected batch accounting: %+v", job)
	}
	if len(f.batches.units) != 2 {
		t.Fatalf("expected 2 failed unit rows, got %d", len(f.batches.units))
	}
	for _, unit := range f.batches.units {
		if unit.Succeeded || unit.LastError == nil {
			t.Fatalf("expected failed unit with error, got %+v", unit)
		}
	}
	// Failures stay on the batch; the subscriptions keep their old price.
	for id, subscription := range f.subs.subscriptions {
		if subscription.PriceID != 10 {
			t.Fatalf("expected subscription %d unchanged, got price %d", id, subscription.PriceID)
		}
	}
}

func TestRunSwapPriceBatchValidatesInput(t *testing.T) {
	f := swapFixture()

	if _, err := f.svc.RunSwapPriceBatch(context.Background(), SwapPriceBatchInput{OldPriceID: 10, NewPriceID: 10}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.svc.RunSwapPriceBatch(context.Background(), SwapPriceBatchInput{OldPriceID: 10, NewPriceID: 999}); !errors.Is(err, ErrPriceNotFound) {
		t.Fatalf("expected ErrPriceNotFound, got %v", err)
	}
}

func TestRunSwapPriceBatchRequiresMirroredNewPrice(t *testing.T) {
	f := swapFixture()
	price, _ := f.products.FindPriceByID(context.Background(), 11)
	price.ProviderPriceID = nil

	if _, err := f.svc.RunSwapPriceBatch(context.Background(), SwapPriceBatchInput{OldPriceID: 10, NewPriceID: 11}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unmirrored price, got %v", err)
	}
}

func TestRunSwapPriceBatchEmptySelection(t *testing.T) {
	f := swapFixture()
	for _, subscription := range f.subs.subscriptions {
		subscription.Status = entity.SubscriptionStatusCanceled
	}

	job, err := f.svc.RunSwapPriceBatch(context.Background(), SwapPriceBatchInput{OldPriceID: 10, NewPriceID: 11})
	if err != nil {
		t.Fatalf("swap batch failed: %v", err)
	}
	if job.TotalUnits != 0 {
		t.Fatalf("expected empty batch, got %+v", job)
	}
}
