package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/config"
)

// Factory builds one driver instance. Registered per name, invoked at most
// once per process lifetime.
type Factory func() (Driver, error)

// Manager resolves and caches driver instances by name. Resolution of an
// unregistered name is fatal to the caller; there is no fallback driver.
type Manager struct {
	defaultName string

	mu        sync.Mutex
	factories map[string]Factory
	drivers   map[string]Driver
}

func NewManager(cfg *config.Config, customers CustomerStore) *Manager {
	m := &Manager{
		defaultName: cfg.Billing.DefaultDriver,
		factories:   map[string]Factory{},
		drivers:     map[string]Driver{},
	}

	stripeCfg := cfg.Stripe
	m.Extend("stripe", func() (Driver, error) {
		return NewStripeDriver(StripeConfig{
			SecretKey:                 stripeCfg.SecretKey,
			WebhookSecret:             stripeCfg.WebhookSecret,
			APIBaseURL:                stripeCfg.APIBaseURL,
			SignatureToleranceSeconds: stripeCfg.SignatureToleranceSeconds,
			HTTPTimeout:               stripeCfg.HTTPTimeout,
		}, customers), nil
	})

	return m
}

// Extend registers a custom driver factory. Expected at process bootstrap,
// before concurrent use begins.
func (m *Manager) Extend(name string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[strings.TrimSpace(name)] = factory
}

// Driver returns the named driver, defaulting to the configured default.
// The instance is created on first request per name and reused afterwards.
func (m *Manager) Driver(name ...string) (Driver, error) {
	resolved := m.defaultName
	if len(name) > 0 && strings.TrimSpace(name[0]) != "" {
		resolved = strings.TrimSpace(name[0])
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.drivers[resolved]; ok {
		return d, nil
	}

	factory, ok := m.factories[resolved]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotConfigured, resolved)
	}

	d, err := factory()
	if err != nil {
		return nil, err
	}
	m.drivers[resolved] = d
	return d, nil
}

// The methods below forward contract operations to the default driver.
// Convenience facade only; no independent logic.

func (m *Manager) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.CreateProduct(ctx, product)
}

func (m *Manager) GetProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.GetProduct(ctx, product)
}

func (m *Manager) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.UpdateProduct(ctx, product)
}

func (m *Manager) DeleteProduct(ctx context.Context, product *entity.Product) (bool, error) {
	d, err := m.Driver()
	if err != nil {
		return false, err
	}
	return d.DeleteProduct(ctx, product)
}

func (m *Manager) ListProducts(ctx context.Context, filter ProductFilter) ([]*entity.Product, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.ListProducts(ctx, filter)
}

func (m *Manager) GetCustomer(ctx context.Context, user *entity.User) (*CustomerData, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.GetCustomer(ctx, user)
}

func (m *Manager) CreateCustomer(ctx context.Context, user *entity.User, syncNow bool) (bool, error) {
	d, err := m.Driver()
	if err != nil {
		return false, err
	}
	return d.CreateCustomer(ctx, user, syncNow)
}

func (m *Manager) ListPaymentMethods(ctx context.Context, user *entity.User) ([]*PaymentMethodData, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.ListPaymentMethods(ctx, user)
}

func (m *Manager) DefaultPaymentMethod(ctx context.Context, user *entity.User) (*PaymentMethodData, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.DefaultPaymentMethod(ctx, user)
}

func (m *Manager) StartSubscription(ctx context.Context, input StartSubscriptionInput) (*SubscriptionData, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.StartSubscription(ctx, input)
}

func (m *Manager) SwapSubscriptionPrice(ctx context.Context, input SwapPriceInput) (*SubscriptionData, error) {
	d, err := m.Driver()
	if err != nil {
		return nil, err
	}
	return d.SwapSubscriptionPrice(ctx, input)
}
