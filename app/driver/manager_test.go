package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/config"
)

func newTestManager() *Manager {
	cfg := &config.Config{}
	cfg.Billing.DefaultDriver = "stripe"
	cfg.Stripe.SecretKey = "sk_test"
	return NewManager(cfg, newFakeCustomerStore())
}

func TestManagerMemoizesDriverInstances(t *testing.T) {
	m := newTestManager()

	first, err := m.Driver()
	if err != nil {
		t.Fatalf("driver lookup failed: %v", err)
	}
	second, err := m.Driver("stripe")
	if err != nil {
		t.Fatalf("driver lookup failed: %v", err)
	}
	if first != second {
		t.Fatal("expected the same driver instance on repeated lookups")
	}
}

func TestManagerUnknownDriver(t *testing.T) {
	m := newTestManager()

	_, err := m.Driver("braintree")
	if !errors.Is(err, ErrDriverNotConfigured) {
		t.Fatalf("expected ErrDriverNotConfigured, got %v", err)
	}
}

type extendedDriver struct {
	StripeDriver
}

func (d *extendedDriver) Name() string { return "custom" }

func TestManagerExtendRegistersCustomDriver(t *testing.T) {
	m := newTestManager()

	custom := &extendedDriver{}
	m.Extend("custom", func() (Driver, error) {
		return custom, nil
	})

	d, err := m.Driver("custom")
	if err != nil {
		t.Fatalf("driver lookup failed: %v", err)
	}
	if d.Name() != "custom" {
		t.Fatalf("expected custom driver, got %q", d.Name())
	}
}

func TestManagerFacadeUsesDefaultDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Billing.DefaultDriver = "fake"
	m := NewManager(cfg, newFakeCustomerStore())

	fake := &facadeDriver{}
	m.Extend("fake", func() (Driver, error) { return fake, nil })

	if _, err := m.CreateProduct(context.Background(), &entity.Product{ID: 1}); err != nil {
		t.Fatalf("facade create product failed: %v", err)
	}
	if !fake.createCalled {
		t.Fatal("expected facade to delegate to the default driver")
	}
}

type facadeDriver struct {
	createCalled bool
}

func (d *facadeDriver) Code() int32  { return 99 }
func (d *facadeDriver) Name() string { return "fake" }

func (d *facadeDriver) CreateProduct(_ context.Context, product *entity.Product) (*entity.Product, error) {
	d.createCalled = true
	return product, nil
}

func (d *facadeDriver) GetProduct(_ context.Context, product *entity.Product) (*entity.Product, error) {
	return product, nil
}

func (d *facadeDriver) UpdateProduct(_ context.Context, product *entity.Product) (*entity.Product, error) {
	return product, nil
}

func (d *facadeDriver) DeleteProduct(context.Context, *entity.Product) (bool, error) {
	return true, nil
}

func (d *facadeDriver) ListProducts(context.Context, ProductFilter) ([]*entity.Product, error) {
	return nil, nil
}

func (d *facadeDriver) GetCustomer(context.Context, *entity.User) (*CustomerData, error) {
	return nil, nil
}

func (d *facadeDriver) CreateCustomer(context.Context, *entity.User, bool) (bool, error) {
	return true, nil
}

func (d *facadeDriver) ListPaymentMethods(context.Context, *entity.User) ([]*PaymentMethodData, error) {
	return []*PaymentMethodData{}, nil
}

func (d *facadeDriver) DefaultPaymentMethod(context.Context, *entity.User) (*PaymentMethodData, error) {
	return nil, nil
}

func (d *facadeDriver) StartSubscription(context.Context, StartSubscriptionInput) (*SubscriptionData, error) {
	return &SubscriptionData{ProviderSubscriptionID: "sub_fake", Status: entity.SubscriptionStatusActive}, nil
}

func (d *facadeDriver) SwapSubscriptionPrice(context.Context, SwapPriceInput) (*SubscriptionData, error) {
	return &SubscriptionData{ProviderSubscriptionID: "sub_fake", Status: entity.SubscriptionStatusActive}, nil
}

func (d *facadeDriver) VerifyAndParseWebhook(context.Context, []byte, string) (*WebhookEvent, error) {
	return &WebhookEvent{}, nil
}

func (d *facadeDriver) LastError() *PaymentErrorData { return nil }
