package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

func OrderToResponse(item *entity.Order) *types.Order {
	if item == nil {
		return nil
	}

	return &types.Order{
		ID:                     item.ID,
		RequestID:              item.RequestID,
		CallerService:          item.CallerService,
		UserID:                 item.UserID,
		ProductID:              item.ProductID,
		PriceID:                item.PriceID,
		Status:                 orderStatusName(item.Status),
		OneTime:                item.OneTime,
		ProviderSubscriptionID: derefString(item.ProviderSubscriptionID),
		CreatedAt:              item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:              item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ProductToResponse(item *entity.Product) *types.Product {
	if item == nil {
		return nil
	}

	result := &types.Product{
		ID:                item.ID,
		Name:              item.Name,
		Description:       derefString(item.Description),
		Active:            item.Active,
		ProviderProductID: derefString(item.ProviderProductID),
		Prices:            make([]types.Price, 0, len(item.Prices)),
	}
	for _, price := range item.Prices {
		result.Prices = append(result.Prices, types.Price{
			ID:              price.ID,
			UnitAmountCents: price.UnitAmountCents,
			Currency:        price.Currency,
			Interval:        price.Interval,
			IntervalCount:   price.IntervalCount,
			ProviderPriceID: derefString(price.ProviderPriceID),
		})
	}
	return result
}

func BatchJobToResponse(item *entity.BatchJob) *types.BatchJob {
	if item == nil {
		return nil
	}

	result := &types.BatchJob{
		BatchID:        item.BatchID,
		Name:           item.Name,
		Status:         batchStatusName(item.Status),
		TotalUnits:     item.TotalUnits,
		SucceededUnits: item.SucceededUnits,
		FailedUnits:    item.FailedUnits,
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.FinishedAt != nil {
		result.FinishedAt = item.FinishedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func orderStatusName(status int32) string {
	switch status {
	case entity.OrderStatusPending:
		return "pending"
	case entity.OrderStatusProcessing:
		return "processing"
	case entity.OrderStatusSucceeded:
		return "succeeded"
	case entity.OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func batchStatusName(status int32) string {
	switch status {
	case entity.BatchJobStatusRunning:
		return "running"
	case entity.BatchJobStatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
