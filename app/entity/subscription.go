package entity

import "time"

const (
	SubscriptionStatusIncomplete int32 = 1
	SubscriptionStatusActive     int32 = 2
	SubscriptionStatusPastDue    int32 = 3
	SubscriptionStatusCanceled   int32 = 20
)

type Subscription struct {
	ID uint64

	OrderID uint64
	UserID  uint64
	PriceID uint64

	Status int32

	Provider               int32
	ProviderSubscriptionID string

	// AnchorAt is set for imported subscriptions whose renewal schedule was
	// seeded from a historical date instead of creation time.
	AnchorAt           *time.Time
	CurrentPeriodEnd   *time.Time
	CurrentPeriodStart *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
