package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/batch"
	"github.com/vibast-solutions/ms-go-billing/app/checkout"
	"github.com/vibast-solutions/ms-go-billing/app/driver"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/config"
)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	FindByCallerRequestID(ctx context.Context, callerService, requestID string) (*entity.Order, error)
}

type orderEventRepository interface {
	Create(ctx context.Context, event *entity.OrderEvent) error
}

type productRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	Update(ctx context.Context, product *entity.Product) error
	FindByID(ctx context.Context, id uint64) (*entity.Product, error)
	FindPriceByID(ctx context.Context, id uint64) (*entity.Price, error)
}

type subscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
	Update(ctx context.Context, subscription *entity.Subscription) error
	FindByProviderSubscriptionID(ctx context.Context, provider int32, providerSubscriptionID string) (*entity.Subscription, error)
	ListActiveByPriceID(ctx context.Context, priceID uint64, limit int32) ([]*entity.Subscription, error)
}

type batchJobRepository interface {
	Create(ctx context.Context, job *entity.BatchJob) error
	FindByBatchID(ctx context.Context, batchID string) (*entity.BatchJob, error)
	CreateUnit(ctx context.Context, unit *entity.BatchUnit) error
}

type driverManager interface {
	Driver(name ...string) (driver.Driver, error)
}

type BillingService struct {
	orderRepo        orderRepository
	eventRepo        orderEventRepository
	productRepo      productRepository
	subscriptionRepo subscriptionRepository
	batchRepo        batchJobRepository
	customers        driver.CustomerStore
	drivers          driverManager
	pipeline         *checkout.Pipeline
	orchestrator     *batch.Orchestrator
	batchCfg         config.BatchConfig
	logger           logrus.FieldLogger
}

func NewBillingService(
	orderRepo orderRepository,
	eventRepo orderEventRepository,
	productRepo productRepository,
	subscriptionRepo subscriptionRepository,
	batchRepo batchJobRepository,
	customers driver.CustomerStore,
	drivers driverManager,
	batchCfg config.BatchConfig,
) *BillingService {
	return &BillingService{
		orderRepo:        orderRepo,
		eventRepo:        eventRepo,
		productRepo:      productRepo,
		subscriptionRepo: subscriptionRepo,
		batchRepo:        batchRepo,
		customers:        customers,
		drivers:          drivers,
		pipeline:         checkout.Default(),
		orchestrator:     batch.NewOrchestrator(batchCfg.Workers),
		batchCfg:         batchCfg,
		logger:           factory.NewModuleLogger("billing-service"),
	}
}

// SyncProduct mirrors a local product and all its prices to the gateway.
// Checkout may only reference prices once they carry a gateway price id;
// callers run this before putting a product on sale.
func (s *BillingService) SyncProduct(ctx context.Context, productID uint64) (*entity.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	d, err := s.drivers.Driver()
	if err != nil {
		return nil, err
	}

	if _, err := d.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product.UpdatedAt = now
	for _, price := range product.Prices {
		price.UpdatedAt = now
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns the gateway's view of the mirrored catalog. Local rows
// are not consulted; callers use this to audit what the gateway actually holds.
func (s *BillingService) ListProducts(ctx context.Context, filter driver.ProductFilter) ([]*entity.Product, error) {
	d, err := s.drivers.Driver()
	if err != nil {
		return nil, err
	}
	return d.ListProducts(ctx, filter)
}

type CheckoutInput struct {
	RequestID     string
	CallerService string
	User          entity.User
	ProductID     uint64
	PriceID       uint64
	OneTime       bool
	ChargeNow     bool

	// AnchorBillingCycle preserves the renewal date of an imported
	// subscription instead of restarting the cycle at checkout time.
	AnchorBillingCycle *time.Time
}

// Checkout creates the order, runs the precondition pipeline and, for
// recurring purchases, asks the driver to start the subscription. Re-invoking
// with the same caller request id returns the existing order.
func (s *BillingService) Checkout(ctx context.Context, input CheckoutInput) (*entity.Order, error) {
	requestID := strings.TrimSpace(input.RequestID)
	callerService := strings.TrimSpace(input.CallerService)
	if requestID == "" || callerService == "" || input.User.ID == 0 {
		return nil, ErrInvalidRequest
	}

	existing, err := s.orderRepo.FindByCallerRequestID(ctx, callerService, requestID)
	if err != nil {
		return nil, err
	}
	// A pending order is an aborted checkout: the same caller request re-enters
	// the pipeline instead of returning the wedged order.
	if existing != nil && existing.Status != entity.OrderStatusPending {
		return existing, nil
	}

	product, err := s.productRepo.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	price, err := s.productRepo.FindPriceByID(ctx, input.PriceID)
	if err != nil {
		return nil, err
	}
	if price == nil || price.ProductID != product.ID {
		return nil, ErrPriceNotFound
	}

	d, err := s.drivers.Driver()
	if err != nil {
		return nil, err
	}

	// A synced product must have every price mirrored before checkout
	// references them.
	if !product.PricesSynced() {
		if _, err := d.CreateProduct(ctx, product); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		product.UpdatedAt = now
		if err := s.productRepo.Update(ctx, product); err != nil {
			return nil, err
		}
		for _, synced := range product.Prices {
			if synced.ID == price.ID {
				price = synced
			}
		}
	}

	order := existing
	if order == nil {
		now := time.Now().UTC()
		order = &entity.Order{
			RequestID:     requestID,
			CallerService: callerService,
			UserID:        input.User.ID,
			ProductID:     product.ID,
			PriceID:       price.ID,
			Status:        entity.OrderStatusPending,
			OneTime:       input.OneTime,
			Provider:      d.Code(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.orderRepo.Create(ctx, order); err != nil {
			return nil, err
		}
		s.recordOrderEvent(ctx, order, "order_created", nil)
	}

	if err := s.transitionOrder(ctx, order, entity.OrderStatusProcessing, "checkout_started"); err != nil {
		return nil, err
	}

	run := &checkout.Checkout{
		Order:     order,
		User:      &input.User,
		Driver:    d,
		Customers: s.customers,
	}
	if err := s.pipeline.Run(ctx, run); err != nil {
		// Idempotent steps: the order is put back to pending so a retry with
		// the same caller request id re-enters the whole pipeline.
		if terr := s.transitionOrder(ctx, order, entity.OrderStatusPending, "checkout_aborted"); terr != nil {
			s.logger.WithError(terr).WithField("order_id", order.ID).Error("order update failed")
		}
		return nil, err
	}

	if input.OneTime {
		// Settlement of one-time purchases is owned by the invoicing flow;
		// this service only tracks the order, which stays processing until
		// that flow completes it or the caller cancels it.
		return order, nil
	}

	subData, err := d.StartSubscription(ctx, driver.StartSubscriptionInput{
		Order:              order,
		User:               &input.User,
		Price:              price,
		ChargeNow:          input.ChargeNow,
		FirstParty:         true,
		AnchorBillingCycle: input.AnchorBillingCycle,
	})
	if err != nil {
		status := entity.OrderStatusPending
		eventType := "checkout_aborted"
		var paymentErr *driver.PaymentError
		if errors.As(err, &paymentErr) {
			status = entity.OrderStatusCancelled
			eventType = "payment_declined"
		}
		if terr := s.transitionOrder(ctx, order, status, eventType); terr != nil {
			s.logger.WithError(terr).WithField("order_id", order.ID).Error("order update failed")
		}
		return nil, err
	}

	now := time.Now().UTC()
	subscription := &entity.Subscription{
		OrderID:                order.ID,
		UserID:                 input.User.ID,
		PriceID:                price.ID,
		Status:                 subData.Status,
		Provider:               d.Code(),
		ProviderSubscriptionID: subData.ProviderSubscriptionID,
		AnchorAt:               input.AnchorBillingCycle,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	periodStart := subData.CurrentPeriodStart
	periodEnd := subData.CurrentPeriodEnd
	if !periodStart.IsZero() {
		subscription.CurrentPeriodStart = &periodStart
	}
	if !periodEnd.IsZero() {
		subscription.CurrentPeriodEnd = &periodEnd
	}
	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
		return nil, err
	}

	order.ProviderSubscriptionID = &subData.ProviderSubscriptionID
	if input.ChargeNow && subData.Status == entity.SubscriptionStatusActive {
		if err := s.transitionOrder(ctx, order, entity.OrderStatusSucceeded, "subscription_started"); err != nil {
			return nil, err
		}
	} else {
		order.UpdatedAt = time.Now().UTC()
		if err := s.orderRepo.Update(ctx, order); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func (s *BillingService) GetOrder(ctx context.Context, id uint64) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *BillingService) CancelOrder(ctx context.Context, id uint64) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == entity.OrderStatusSucceeded {
		return nil, ErrInvalidStatus
	}
	if order.Status == entity.OrderStatusCancelled {
		return order, nil
	}

	if err := s.transitionOrder(ctx, order, entity.OrderStatusCancelled, "order_cancelled"); err != nil {
		return nil, err
	}
	return order, nil
}

// ApplyWebhook verifies a gateway callback and applies the subscription
// lifecycle change it carries. The mutation is persisted before the order
// event announcing it is written.
func (s *BillingService) ApplyWebhook(ctx context.Context, driverName string, payload []byte, signature string) error {
	d, err := s.drivers.Driver(driverName)
	if err != nil {
		return err
	}

	event, err := d.VerifyAndParseWebhook(ctx, payload, signature)
	if err != nil {
		return ErrCallbackRejected
	}
	if event.ProviderSubscriptionID == nil {
		return nil
	}

	subscription, err := s.subscriptionRepo.FindByProviderSubscriptionID(ctx, d.Code(), *event.ProviderSubscriptionID)
	if err != nil {
		return err
	}
	if subscription == nil {
		s.logger.WithField("provider_subscription_id", *event.ProviderSubscriptionID).
			Debug("webhook for unknown subscription ignored")
		return nil
	}

	now := time.Now().UTC()
	if event.SubscriptionStatus != 0 && event.SubscriptionStatus != subscription.Status {
		subscription.Status = event.SubscriptionStatus
		subscription.UpdatedAt = now
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			return err
		}
	}

	order, err := s.orderRepo.FindByID(ctx, subscription.OrderID)
	if err != nil {
		return err
	}
	if order == nil || order.Terminal() {
		return nil
	}

	switch event.EventType {
	case "invoice.paid":
		return s.transitionOrder(ctx, order, entity.OrderStatusSucceeded, "invoice_paid")
	case "customer.subscription.deleted":
		return s.transitionOrder(ctx, order, entity.OrderStatusCancelled, "subscription_deleted")
	}
	return nil
}

func (s *BillingService) GetBatch(ctx context.Context, batchID string) (*entity.BatchJob, error) {
	job, err := s.batchRepo.FindByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrBatchNotFound
	}
	return job, nil
}

func (s *BillingService) transitionOrder(ctx context.Context, order *entity.Order, newStatus int32, eventType string) error {
	oldStatus := order.Status
	order.Status = newStatus
	order.UpdatedAt = time.Now().UTC()

	if err := s.orderRepo.Update(ctx, order); err != nil {
		order.Status = oldStatus
		return err
	}
	s.recordOrderEvent(ctx, order, eventType, &oldStatus)
	return nil
}

func (s *BillingService) recordOrderEvent(ctx context.Context, order *entity.Order, eventType string, oldStatus *int32) {
	_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
		OrderID:   order.ID,
		EventType: eventType,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		CreatedAt: time.Now().UTC(),
	})
}
