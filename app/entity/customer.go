package entity

import "time"

// User is consumed by value from callers; the billing core never loads users itself.
type User struct {
	ID    uint64
	Email string
	Name  string
}

// Customer links one User to one gateway-side customer record.
// At most one row exists per (user, provider).
type Customer struct {
	ID     uint64
	UserID uint64

	Provider           int32
	ProviderCustomerID string

	DefaultPaymentMethodID *string

	// Synced is false when the link was recorded without a remote round trip.
	Synced bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
