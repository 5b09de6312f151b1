package checkout

import (
	"context"
	"time"
)

// EnsureDefaultPaymentMethod reconciles the locally cached default payment
// method against the gateway. The gateway's reported default wins; without
// one, the gateway's first-listed stored method is adopted. When the gateway
// holds neither, a stale cached default is dropped: local state is a cache,
// never authoritative.
type EnsureDefaultPaymentMethod struct{}

func (s *EnsureDefaultPaymentMethod) Name() string {
	return "ensure_default_payment_method"
}

func (s *EnsureDefaultPaymentMethod) Handle(ctx context.Context, c *Checkout) error {
	link, err := c.Customers.FindByUserID(ctx, c.Driver.Code(), c.User.ID)
	if err != nil {
		return err
	}
	if link == nil {
		return nil
	}

	remoteDefault, err := c.Driver.DefaultPaymentMethod(ctx, c.User)
	if err != nil {
		return err
	}

	var wanted *string
	if remoteDefault != nil {
		wanted = &remoteDefault.ProviderMethodID
	} else {
		methods, err := c.Driver.ListPaymentMethods(ctx, c.User)
		if err != nil {
			return err
		}
		if len(methods) > 0 {
			wanted = &methods[0].ProviderMethodID
		}
	}

	if !sameMethod(link.DefaultPaymentMethodID, wanted) {
		link.DefaultPaymentMethodID = wanted
		link.UpdatedAt = time.Now().UTC()
		return c.Customers.Update(ctx, link)
	}
	return nil
}

func sameMethod(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
