package checkout

import (
	"context"
	"fmt"
)

// EnsureCustomerExists guarantees the order's user has a linked gateway
// customer before billing. Creating the customer goes through the driver with
// an immediate remote round trip so the link is usable by the next step.
type EnsureCustomerExists struct{}

func (s *EnsureCustomerExists) Name() string {
	return "ensure_customer_exists"
}

func (s *EnsureCustomerExists) Handle(ctx context.Context, c *Checkout) error {
	existing, err := c.Driver.GetCustomer(ctx, c.User)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	ok, err := c.Driver.CreateCustomer(ctx, c.User, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCustomerProvisioning, err)
	}
	if !ok {
		return ErrCustomerProvisioning
	}
	return nil
}
