package driver

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

const CodeStripe int32 = 1

type CustomerData struct {
	ProviderCustomerID     string
	Email                  string
	Name                   string
	DefaultPaymentMethodID *string
}

type PaymentMethodData struct {
	ProviderMethodID string
	Type             string
	Brand            string
	Last4            string
	ExpMonth         int32
	ExpYear          int32
	Default          bool
}

type SubscriptionData struct {
	ProviderSubscriptionID string
	Status                 int32
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
}

// ProductFilter narrows ListProducts. Semantics are gateway-defined; each
// driver documents how the fields translate.
type ProductFilter struct {
	Active        *bool
	Limit         int32
	StartingAfter string
}

type StartSubscriptionInput struct {
	Order *entity.Order
	User  *entity.User
	Price *entity.Price

	// ChargeNow requires the initial invoice to settle immediately; a decline
	// surfaces as a *PaymentError instead of leaving the subscription incomplete.
	ChargeNow bool

	// FirstParty marks subscriptions originated by this application, as opposed
	// to records imported from an earlier billing system.
	FirstParty bool

	// AnchorBillingCycle seeds the renewal schedule from a historical date.
	// Nil starts the cycle at creation time.
	AnchorBillingCycle *time.Time
}

type SwapPriceInput struct {
	ProviderSubscriptionID string
	NewPrice               *entity.Price
	ProrationBehavior      string
	ChargeNow              bool
}

type WebhookEvent struct {
	ProviderEventID        *string
	ProviderSubscriptionID *string
	EventType              string
	SubscriptionStatus     int32
}

// CustomerStore persists the link between local users and gateway customers.
// The repository layer satisfies it.
type CustomerStore interface {
	FindByUserID(ctx context.Context, provider int32, userID uint64) (*entity.Customer, error)
	Create(ctx context.Context, customer *entity.Customer) error
	Update(ctx context.Context, customer *entity.Customer) error
}

// Driver is the capability set a payment gateway backend must provide.
// Every operation maps to one or a small fixed number of gateway API calls
// with a bounded timeout; operations never retry internally.
type Driver interface {
	Code() int32
	Name() string

	CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	GetProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)

	// DeleteProduct returns false without an error when the gateway can only
	// archive the product because existing references prevent deletion. The
	// archived product stays retrievable via GetProduct with Active=false.
	DeleteProduct(ctx context.Context, product *entity.Product) (bool, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]*entity.Product, error)

	// GetCustomer returns (nil, nil) when the user has no linked gateway
	// customer yet.
	GetCustomer(ctx context.Context, user *entity.User) (*CustomerData, error)

	// CreateCustomer provisions a gateway customer and links it to the user.
	// syncNow=false records the link locally without a remote round trip.
	CreateCustomer(ctx context.Context, user *entity.User, syncNow bool) (bool, error)

	// ListPaymentMethods returns an empty slice when none exist. When the
	// gateway reports a default method it is the first element.
	ListPaymentMethods(ctx context.Context, user *entity.User) ([]*PaymentMethodData, error)

	// DefaultPaymentMethod returns (nil, nil) when the gateway has no default
	// method set for the customer.
	DefaultPaymentMethod(ctx context.Context, user *entity.User) (*PaymentMethodData, error)

	StartSubscription(ctx context.Context, input StartSubscriptionInput) (*SubscriptionData, error)
	SwapSubscriptionPrice(ctx context.Context, input SwapPriceInput) (*SubscriptionData, error)

	VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)

	// LastError returns a snapshot of the most recent payment failure seen by
	// this driver instance, or nil. Overwritten on each new failure.
	LastError() *PaymentErrorData
}
