package checkout

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/driver"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

// ErrCustomerProvisioning aborts the pipeline when a gateway customer could
// not be created. The whole pipeline is safe to re-run later.
var ErrCustomerProvisioning = errors.New("gateway customer provisioning failed")

// Checkout is the mutable state a pipeline run operates on. Steps read and
// mutate the order and its customer link; they own no state of their own.
type Checkout struct {
	Order     *entity.Order
	User      *entity.User
	Driver    driver.Driver
	Customers driver.CustomerStore
}

// Step is one idempotent precondition applied before billing starts.
// Re-running a step against already-reconciled state is a no-op.
type Step interface {
	Name() string
	Handle(ctx context.Context, c *Checkout) error
}

// Pipeline runs steps in order and stops at the first failing step.
// No partial billing: a failed step means the driver is never asked to charge.
type Pipeline struct {
	steps  []Step
	logger logrus.FieldLogger
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{
		steps:  steps,
		logger: factory.NewModuleLogger("checkout-pipeline"),
	}
}

// Default returns the pipeline with the two standard billing preconditions.
func Default() *Pipeline {
	return NewPipeline(
		&EnsureCustomerExists{},
		&EnsureDefaultPaymentMethod{},
	)
}

func (p *Pipeline) Run(ctx context.Context, c *Checkout) error {
	for _, step := range p.steps {
		if err := step.Handle(ctx, c); err != nil {
			p.logger.WithError(err).
				WithField("step", step.Name()).
				WithField("order_id", c.Order.ID).
				Warn("checkout step failed")
			return err
		}
	}
	return nil
}
