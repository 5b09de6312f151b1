package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/checkout"
	"github.com/vibast-solutions/ms-go-billing/app/driver"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

type BillingController struct {
	billingService *service.BillingService
	logger         logrus.FieldLogger
}

func NewBillingController(billingService *service.BillingService) *BillingController {
	return &BillingController{
		billingService: billingService,
		logger:         factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *BillingController) SyncProduct(ctx echo.Context) error {
	id, err := types.PathID(ctx, "id")
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid product id")
	}

	item, err := c.billingService.SyncProduct(ctx.Request().Context(), id)
	if err != nil {
		var validationErr *driver.ValidationError
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			return c.writeError(ctx, http.StatusNotFound, "product not found")
		case errors.As(err, &validationErr):
			return c.writeError(ctx, http.StatusBadRequest, validationErr.Error())
		case driver.IsRetryable(err):
			return c.writeError(ctx, http.StatusBadGateway, "gateway unavailable")
		default:
			c.logger.WithError(err).Error("Sync product failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.ProductEnvelopeResponse{Product: mapper.ProductToResponse(item)})
}

func (c *BillingController) ListProducts(ctx echo.Context) error {
	filter := driver.ProductFilter{StartingAfter: ctx.QueryParam("starting_after")}
	if raw := ctx.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return c.writeError(ctx, http.StatusBadRequest, "invalid active filter")
		}
		filter.Active = &active
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || limit < 1 {
			return c.writeError(ctx, http.StatusBadRequest, "invalid limit")
		}
		filter.Limit = int32(limit)
	}

	items, err := c.billingService.ListProducts(ctx.Request().Context(), filter)
	if err != nil {
		if driver.IsRetryable(err) {
			return c.writeError(ctx, http.StatusBadGateway, "gateway unavailable")
		}
		c.logger.WithError(err).Error("List products failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	products := make([]*types.Product, 0, len(items))
	for _, item := range items {
		products = append(products, mapper.ProductToResponse(item))
	}
	return ctx.JSON(http.StatusOK, &types.ProductListResponse{Products: products})
}

func (c *BillingController) Checkout(ctx echo.Context) error {
	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.billingService.Checkout(ctx.Request().Context(), service.CheckoutInput{
		RequestID:     req.RequestID,
		CallerService: req.CallerService,
		User: entity.User{
			ID:    req.UserID,
			Email: req.UserEmail,
			Name:  req.UserName,
		},
		ProductID:          req.ProductID,
		PriceID:            req.PriceID,
		OneTime:            req.OneTime,
		ChargeNow:          req.ChargeNow,
		AnchorBillingCycle: req.Anchor(),
	})
	if err != nil {
		var paymentErr *driver.PaymentError
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrPriceNotFound):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.As(err, &paymentErr):
			return c.writeError(ctx, http.StatusPaymentRequired, paymentErr.Error())
		case errors.Is(err, checkout.ErrCustomerProvisioning), driver.IsRetryable(err):
			return c.writeError(ctx, http.StatusBadGateway, "gateway unavailable")
		default:
			c.logger.WithError(err).Error("Checkout failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *BillingController) GetOrder(ctx echo.Context) error {
	id, err := types.PathID(ctx, "id")
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid order id")
	}

	item, err := c.billingService.GetOrder(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		c.logger.WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *BillingController) CancelOrder(ctx echo.Context) error {
	id, err := types.PathID(ctx, "id")
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid order id")
	}

	item, err := c.billingService.CancelOrder(ctx.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			c.logger.WithError(err).Error("Cancel order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(item)})
}

func (c *BillingController) RunSwapPriceBatch(ctx echo.Context) error {
	req, err := types.NewSwapPriceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	job, err := c.billingService.RunSwapPriceBatch(ctx.Request().Context(), service.SwapPriceBatchInput{
		OldPriceID:        req.OldPriceID,
		NewPriceID:        req.NewPriceID,
		ProrationBehavior: req.ProrationBehavior,
		ChargeNow:         req.ChargeNow,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPriceNotFound):
			return c.writeError(ctx, http.StatusNotFound, "price not found")
		default:
			c.logger.WithError(err).Error("Swap price batch failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusAccepted, &types.BatchEnvelopeResponse{Batch: mapper.BatchJobToResponse(job)})
}

func (c *BillingController) GetBatch(ctx echo.Context) error {
	batchID := ctx.Param("id")
	if batchID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "invalid batch id")
	}

	job, err := c.billingService.GetBatch(ctx.Request().Context(), batchID)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "batch not found")
		}
		c.logger.WithError(err).Error("Get batch failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.BatchEnvelopeResponse{Batch: mapper.BatchJobToResponse(job)})
}

func (c *BillingController) HandleProviderWebhook(ctx echo.Context) error {
	providerName := ctx.Param("provider")
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	signature := ctx.Request().Header.Get("Stripe-Signature")

	err = c.billingService.ApplyWebhook(ctx.Request().Context(), providerName, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, driver.ErrDriverNotConfigured):
			return c.writeError(ctx, http.StatusNotFound, "unknown provider")
		case errors.Is(err, service.ErrCallbackRejected):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			c.logger.WithError(err).Error("Handle provider webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Provider webhook processed"})
}

func (c *BillingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
