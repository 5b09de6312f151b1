package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/batch"
	"github.com/vibast-solutions/ms-go-billing/app/driver"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type SwapPriceBatchInput struct {
	OldPriceID        uint64
	NewPriceID        uint64
	ProrationBehavior string
	ChargeNow         bool
}

// RunSwapPriceBatch moves every active subscription billed on the old price
// onto the new one. Each subscription is one independent batch unit: a decline
// or gateway error for one subscriber never blocks the others. Units target
// distinct subscriptions, so gateway calls for different customers may run in
// parallel; serializing concurrent mutations of the same customer is the
// enqueueing caller's responsibility.
func (s *BillingService) RunSwapPriceBatch(ctx context.Context, input SwapPriceBatchInput) (*entity.BatchJob, error) {
	if input.OldPriceID == 0 || input.NewPriceID == 0 || input.OldPriceID == input.NewPriceID {
		return nil, ErrInvalidRequest
	}

	newPrice, err := s.productRepo.FindPriceByID(ctx, input.NewPriceID)
	if err != nil {
		return nil, err
	}
	if newPrice == nil {
		return nil, ErrPriceNotFound
	}
	if newPrice.ProviderPriceID == nil || *newPrice.ProviderPriceID == "" {
		return nil, fmt.Errorf("%w: new price is not mirrored to the gateway", ErrInvalidRequest)
	}

	subscriptions, err := s.subscriptionRepo.ListActiveByPriceID(ctx, input.OldPriceID, s.batchCfg.UnitSize)
	if err != nil {
		return nil, err
	}

	d, err := s.drivers.Driver()
	if err != nil {
		return nil, err
	}

	units := make([]batch.Unit, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		units = append(units, batch.Unit{
			Ref: strconv.FormatUint(subscription.ID, 10),
			Run: func(ctx context.Context) error {
				return s.swapSubscription(ctx, d, subscription, newPrice, input)
			},
		})
	}

	result := s.orchestrator.Run(ctx, "swap_price", units)
	return s.persistBatchResult(ctx, result)
}

func (s *BillingService) swapSubscription(
	ctx context.Context,
	d driver.Driver,
	subscription *entity.Subscription,
	newPrice *entity.Price,
	input SwapPriceBatchInput,
) error {
	data, err := d.SwapSubscriptionPrice(ctx, driver.SwapPriceInput{
		ProviderSubscriptionID: subscription.ProviderSubscriptionID,
		NewPrice:               newPrice,
		ProrationBehavior:      input.ProrationBehavior,
		ChargeNow:              input.ChargeNow,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	subscription.PriceID = newPrice.ID
	subscription.Status = data.Status
	if !data.CurrentPeriodStart.IsZero() {
		periodStart := data.CurrentPeriodStart
		subscription.CurrentPeriodStart = &periodStart
	}
	if !data.CurrentPeriodEnd.IsZero() {
		periodEnd := data.CurrentPeriodEnd
		subscription.CurrentPeriodEnd = &periodEnd
	}
	subscription.UpdatedAt = now
	return s.subscriptionRepo.Update(ctx, subscription)
}

func (s *BillingService) persistBatchResult(ctx context.Context, result *batch.Result) (*entity.BatchJob, error) {
	job := &entity.BatchJob{
		BatchID:        result.BatchID,
		Name:           result.Name,
		Status:         entity.BatchJobStatusCompleted,
		TotalUnits:     result.Total,
		SucceededUnits: result.Succeeded,
		FailedUnits:    result.Failed,
		CreatedAt:      result.StartedAt,
		UpdatedAt:      result.FinishedAt,
		FinishedAt:     &result.FinishedAt,
	}
	if err := s.batchRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	for ref, unitErr := range result.UnitErrors {
		message := unitErr
		_ = s.batchRepo.CreateUnit(ctx, &entity.BatchUnit{
			BatchID:   result.BatchID,
			TargetRef: ref,
			Succeeded: false,
			LastError: &message,
			CreatedAt: result.FinishedAt,
		})
	}
	return job, nil
}
