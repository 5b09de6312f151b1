package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CheckoutRequest struct {
	RequestID     string `json:"request_id"`
	CallerService string `json:"caller_service"`
	UserID        uint64 `json:"user_id"`
	UserEmail     string `json:"user_email"`
	UserName      string `json:"user_name"`
	ProductID     uint64 `json:"product_id"`
	PriceID       uint64 `json:"price_id"`
	OneTime       bool   `json:"one_time"`
	ChargeNow     bool   `json:"charge_now"`

	// RFC3339; preserves an imported subscription's renewal schedule.
	AnchorBillingCycle string `json:"anchor_billing_cycle"`
}

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.RequestID = strings.TrimSpace(body.RequestID)
	if body.RequestID == "" {
		body.RequestID = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
	}
	body.CallerService = strings.TrimSpace(body.CallerService)
	body.UserEmail = strings.TrimSpace(body.UserEmail)
	body.UserName = strings.TrimSpace(body.UserName)
	body.AnchorBillingCycle = strings.TrimSpace(body.AnchorBillingCycle)

	return &body, nil
}

func (r *CheckoutRequest) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.CallerService == "" {
		return errors.New("caller_service is required")
	}
	if r.UserID == 0 {
		return errors.New("user_id is required")
	}
	if r.UserEmail == "" {
		return errors.New("user_email is required")
	}
	if r.ProductID == 0 {
		return errors.New("product_id is required")
	}
	if r.PriceID == 0 {
		return errors.New("price_id is required")
	}
	if r.AnchorBillingCycle != "" {
		if _, err := time.Parse(time.RFC3339, r.AnchorBillingCycle); err != nil {
			return errors.New("anchor_billing_cycle must be RFC3339")
		}
	}
	return nil
}

func (r *CheckoutRequest) Anchor() *time.Time {
	if r.AnchorBillingCycle == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, r.AnchorBillingCycle)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

type SwapPriceRequest struct {
	OldPriceID        uint64 `json:"old_price_id"`
	NewPriceID        uint64 `json:"new_price_id"`
	ProrationBehavior string `json:"proration_behavior"`
	ChargeNow         bool   `json:"charge_now"`
}

func NewSwapPriceRequestFromContext(ctx echo.Context) (*SwapPriceRequest, error) {
	var body SwapPriceRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ProrationBehavior = strings.TrimSpace(body.ProrationBehavior)
	return &body, nil
}

func (r *SwapPriceRequest) Validate() error {
	if r.OldPriceID == 0 {
		return errors.New("old_price_id is required")
	}
	if r.NewPriceID == 0 {
		return errors.New("new_price_id is required")
	}
	if r.OldPriceID == r.NewPriceID {
		return errors.New("old_price_id and new_price_id must differ")
	}
	switch r.ProrationBehavior {
	case "", "create_prorations", "none", "always_invoice":
	default:
		return errors.New("proration_behavior is invalid")
	}
	return nil
}

func PathID(ctx echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(ctx.Param(name), 10, 64)
}

type Order struct {
	ID                     uint64 `json:"id"`
	RequestID              string `json:"request_id"`
	CallerService          string `json:"caller_service"`
	UserID                 uint64 `json:"user_id"`
	ProductID              uint64 `json:"product_id"`
	PriceID                uint64 `json:"price_id"`
	Status                 string `json:"status"`
	OneTime                bool   `json:"one_time"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	CreatedAt              string `json:"created_at"`
	UpdatedAt              string `json:"updated_at"`
}

type OrderEnvelopeResponse struct {
	Order *Order `json:"order"`
}

type Product struct {
	ID                uint64  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	Active            bool    `json:"active"`
	ProviderProductID string  `json:"provider_product_id,omitempty"`
	Prices            []Price `json:"prices"`
}

type Price struct {
	ID              uint64 `json:"id"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval,omitempty"`
	IntervalCount   int32  `json:"interval_count,omitempty"`
	ProviderPriceID string `json:"provider_price_id,omitempty"`
}

type ProductEnvelopeResponse struct {
	Product *Product `json:"product"`
}

type ProductListResponse struct {
	Products []*Product `json:"products"`
}

type BatchJob struct {
	BatchID        string `json:"batch_id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	TotalUnits     int32  `json:"total_units"`
	SucceededUnits int32  `json:"succeeded_units"`
	FailedUnits    int32  `json:"failed_units"`
	CreatedAt      string `json:"created_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
}

type BatchEnvelopeResponse struct {
	Batch *BatchJob `json:"batch"`
}
