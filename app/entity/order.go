package entity

import "time"

const (
	OrderStatusPending    int32 = 1
	OrderStatusProcessing int32 = 2
	OrderStatusSucceeded  int32 = 10
	OrderStatusCancelled  int32 = 20
)

type Order struct {
	ID uint64

	RequestID     string
	CallerService string

	UserID    uint64
	ProductID uint64
	PriceID   uint64

	Status  int32
	OneTime bool

	Provider               int32
	ProviderSubscriptionID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the order reached a final status. Terminal orders
// are never mutated again by the pipeline or webhooks.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusSucceeded || o.Status == OrderStatusCancelled
}

// OrderEvent is the append-only record announcing a status transition to the
// rest of the application (fulfillment, notifications, group sync).
type OrderEvent struct {
	ID        uint64
	OrderID   uint64
	EventType string
	OldStatus *int32
	NewStatus int32
	CreatedAt time.Time
}
