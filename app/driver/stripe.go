package driver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

// StripeDriver talks to the Stripe REST API directly. Every operation is a
// single bounded-timeout HTTP call (ListPaymentMethods and the subscription
// operations use two). Filter semantics for ListProducts: Active maps to the
// `active` query param, StartingAfter is Stripe's cursor (`starting_after`),
// Limit caps the page size.
type StripeDriver struct {
	cfg       StripeConfig
	client    *http.Client
	customers CustomerStore
	tracker   errorTracker
}

func NewStripeDriver(cfg StripeConfig, customers CustomerStore) *StripeDriver {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.stripe.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return &StripeDriver{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		customers: customers,
	}
}

func (d *StripeDriver) Code() int32 {
	return CodeStripe
}

func (d *StripeDriver) Name() string {
	return "stripe"
}

func (d *StripeDriver) LastError() *PaymentErrorData {
	return d.tracker.lastError()
}

func (d *StripeDriver) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if !product.Synced() {
		values := url.Values{}
		values.Set("name", product.Name)
		values.Set("active", strconv.FormatBool(product.Active))
		if product.Description != nil && strings.TrimSpace(*product.Description) != "" {
			values.Set("description", *product.Description)
		}
		values.Set("metadata[product_id]", strconv.FormatUint(product.ID, 10))

		body, err := d.call(ctx, http.MethodPost, "/v1/products", values)
		if err != nil {
			return nil, err
		}

		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		remoteID := strings.TrimSpace(payload.ID)
		if remoteID == "" {
			return nil, errors.New("stripe product id missing")
		}
		product.Provider = CodeStripe
		product.ProviderProductID = &remoteID
	}

	for _, price := range product.Prices {
		if price.ProviderPriceID != nil && *price.ProviderPriceID != "" {
			continue
		}
		if err := d.createPrice(ctx, product, price); err != nil {
			return nil, err
		}
	}

	return product, nil
}

func (d *StripeDriver) createPrice(ctx context.Context, product *entity.Product, price *entity.Price) error {
	values := url.Values{}
	values.Set("product", *product.ProviderProductID)
	values.Set("currency", strings.ToLower(price.Currency))
	values.Set("unit_amount", strconv.FormatInt(price.UnitAmountCents, 10))
	values.Set("metadata[price_id]", strconv.FormatUint(price.ID, 10))
	if price.Recurring() {
		values.Set("recurring[interval]", price.Interval)
		count := price.IntervalCount
		if count <= 0 {
			count = 1
		}
		values.Set("recurring[interval_count]", strconv.FormatInt(int64(count), 10))
	}

	body, err := d.call(ctx, http.MethodPost, "/v1/prices", values)
	if err != nil {
		return err
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}
	remoteID := strings.TrimSpace(payload.ID)
	if remoteID == "" {
		return errors.New("stripe price id missing")
	}
	price.ProviderPriceID = &remoteID
	return nil
}

func (d *StripeDriver) GetProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if !product.Synced() {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(product.ID, 10)}
	}

	body, err := d.call(ctx, http.MethodGet, "/v1/products/"+url.PathEscape(*product.ProviderProductID), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Active      bool   `json:"active"`
		Deleted     bool   `json:"deleted"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Deleted {
		return nil, &NotFoundError{Resource: "product", Ref: *product.ProviderProductID}
	}

	product.Name = payload.Name
	product.Active = payload.Active
	if desc := strings.TrimSpace(payload.Description); desc != "" {
		product.Description = &desc
	}
	return product, nil
}

func (d *StripeDriver) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if !product.Synced() {
		return nil, &NotFoundError{Resource: "product", Ref: strconv.FormatUint(product.ID, 10)}
	}

	values := url.Values{}
	values.Set("name", product.Name)
	values.Set("active", strconv.FormatBool(product.Active))
	if product.Description != nil {
		values.Set("description", *product.Description)
	}

	if _, err := d.call(ctx, http.MethodPost, "/v1/products/"+url.PathEscape(*product.ProviderProductID), values); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct asks Stripe to delete the product. Stripe refuses true
// deletion while prices reference the product; in that case the product is
// archived (active=false) and false is returned without an error. The caller
// can still fetch the archived product via GetProduct.
func (d *StripeDriver) DeleteProduct(ctx context.Context, product *entity.Product) (bool, error) {
	if !product.Synced() {
		return true, nil
	}
	path := "/v1/products/" + url.PathEscape(*product.ProviderProductID)

	body, err := d.call(ctx, http.MethodDelete, path, nil)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			archive := url.Values{}
			archive.Set("active", "false")
			if _, aerr := d.call(ctx, http.MethodPost, path, archive); aerr != nil {
				return false, aerr
			}
			product.Active = false
			return false, nil
		}
		return false, err
	}

	var payload struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, err
	}
	return payload.Deleted, nil
}

func (d *StripeDriver) ListProducts(ctx context.Context, filter ProductFilter) ([]*entity.Product, error) {
	values := url.Values{}
	if filter.Limit > 0 {
		values.Set("limit", strconv.FormatInt(int64(filter.Limit), 10))
	}
	if filter.Active != nil {
		values.Set("active", strconv.FormatBool(*filter.Active))
	}
	if strings.TrimSpace(filter.StartingAfter) != "" {
		values.Set("starting_after", strings.TrimSpace(filter.StartingAfter))
	}

	body, err := d.call(ctx, http.MethodGet, "/v1/products", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Active      bool   `json:"active"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	items := make([]*entity.Product, 0, len(payload.Data))
	for _, row := range payload.Data {
		remoteID := row.ID
		item := &entity.Product{
			Name:              row.Name,
			Active:            row.Active,
			Provider:          CodeStripe,
			ProviderProductID: &remoteID,
		}
		if desc := strings.TrimSpace(row.Description); desc != "" {
			item.Description = &desc
		}
		items = append(items, item)
	}
	return items, nil
}

func (d *StripeDriver) GetCustomer(ctx context.Context, user *entity.User) (*CustomerData, error) {
	link, err := d.customers.FindByUserID(ctx, CodeStripe, user.ID)
	if err != nil {
		return nil, err
	}
	if link == nil || strings.TrimSpace(link.ProviderCustomerID) == "" {
		return nil, nil
	}

	remote, err := d.fetchCustomer(ctx, link.ProviderCustomerID)
	if err != nil {
		return nil, err
	}
	return remote, nil
}

func (d *StripeDriver) fetchCustomer(ctx context.Context, providerCustomerID string) (*CustomerData, error) {
	body, err := d.call(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(providerCustomerID), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID              string `json:"id"`
		Email           string `json:"email"`
		Name            string `json:"name"`
		Deleted         bool   `json:"deleted"`
		InvoiceSettings struct {
			DefaultPaymentMethod interface{} `json:"default_payment_method"`
		} `json:"invoice_settings"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Deleted {
		return nil, &NotFoundError{Resource: "customer", Ref: providerCustomerID}
	}

	data := &CustomerData{
		ProviderCustomerID: payload.ID,
		Email:              payload.Email,
		Name:               payload.Name,
	}
	if s := parseStringish(payload.InvoiceSettings.DefaultPaymentMethod); s != "" {
		data.DefaultPaymentMethodID = &s
	}
	return data, nil
}

func (d *StripeDriver) CreateCustomer(ctx context.Context, user *entity.User, syncNow bool) (bool, error) {
	link, err := d.customers.FindByUserID(ctx, CodeStripe, user.ID)
	if err != nil {
		return false, err
	}
	if link != nil && strings.TrimSpace(link.ProviderCustomerID) != "" {
		return true, nil
	}

	now := time.Now().UTC()

	if !syncNow {
		if link == nil {
			return true, d.customers.Create(ctx, &entity.Customer{
				UserID:    user.ID,
				Provider:  CodeStripe,
				Synced:    false,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return true, nil
	}

	values := url.Values{}
	values.Set("email", user.Email)
	if strings.TrimSpace(user.Name) != "" {
		values.Set("name", user.Name)
	}
	values.Set("metadata[user_id]", strconv.FormatUint(user.ID, 10))

	body, err := d.call(ctx, http.MethodPost, "/v1/customers", values)
	if err != nil {
		return false, err
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, err
	}
	remoteID := strings.TrimSpace(payload.ID)
	if remoteID == "" {
		return false, errors.New("stripe customer id missing")
	}

	if link == nil {
		err = d.customers.Create(ctx, &entity.Customer{
			UserID:             user.ID,
			Provider:           CodeStripe,
			ProviderCustomerID: remoteID,
			Synced:             true,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	} else {
		link.ProviderCustomerID = remoteID
		link.Synced = true
		link.UpdatedAt = now
		err = d.customers.Update(ctx, link)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *StripeDriver) ListPaymentMethods(ctx context.Context, user *entity.User) ([]*PaymentMethodData, error) {
	link, err := d.customers.FindByUserID(ctx, CodeStripe, user.ID)
	if err != nil {
		return nil, err
	}
	if link == nil || strings.TrimSpace(link.ProviderCustomerID) == "" {
		return []*PaymentMethodData{}, nil
	}

	remote, err := d.fetchCustomer(ctx, link.ProviderCustomerID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("customer", link.ProviderCustomerID)
	values.Set("type", "card")

	body, err := d.call(ctx, http.MethodGet, "/v1/payment_methods", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Card struct {
				Brand    string `json:"brand"`
				Last4    string `json:"last4"`
				ExpMonth int32  `json:"exp_month"`
				ExpYear  int32  `json:"exp_year"`
			} `json:"card"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	items := make([]*PaymentMethodData, 0, len(payload.Data))
	for _, row := range payload.Data {
		item := &PaymentMethodData{
			ProviderMethodID: row.ID,
			Type:             row.Type,
			Brand:            row.Card.Brand,
			Last4:            row.Card.Last4,
			ExpMonth:         row.Card.ExpMonth,
			ExpYear:          row.Card.ExpYear,
		}
		if remote.DefaultPaymentMethodID != nil && row.ID == *remote.DefaultPaymentMethodID {
			item.Default = true
		}
		items = append(items, item)
	}

	// Default method first, remaining order as reported by the gateway.
	for i, item := range items {
		if item.Default && i > 0 {
			items[0], items[i] = items[i], items[0]
			break
		}
	}
	return items, nil
}

func (d *StripeDriver) DefaultPaymentMethod(ctx context.Context, user *entity.User) (*PaymentMethodData, error) {
	link, err := d.customers.FindByUserID(ctx, CodeStripe, user.ID)
	if err != nil {
		return nil, err
	}
	if link == nil || strings.TrimSpace(link.ProviderCustomerID) == "" {
		return nil, nil
	}

	remote, err := d.fetchCustomer(ctx, link.ProviderCustomerID)
	if err != nil {
		return nil, err
	}
	if remote.DefaultPaymentMethodID == nil {
		return nil, nil
	}

	body, err := d.call(ctx, http.MethodGet, "/v1/payment_methods/"+url.PathEscape(*remote.DefaultPaymentMethodID), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Card struct {
			Brand    string `json:"brand"`
			Last4    string `json:"last4"`
			ExpMonth int32  `json:"exp_month"`
			ExpYear  int32  `json:"exp_year"`
		} `json:"card"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &PaymentMethodData{
		ProviderMethodID: payload.ID,
		Type:             payload.Type,
		Brand:            payload.Card.Brand,
		Last4:            payload.Card.Last4,
		ExpMonth:         payload.Card.ExpMonth,
		ExpYear:          payload.Card.ExpYear,
		Default:          true,
	}, nil
}

func (d *StripeDriver) StartSubscription(ctx context.Context, input StartSubscriptionInput) (*SubscriptionData, error) {
	link, err := d.customers.FindByUserID(ctx, CodeStripe, input.User.ID)
	if err != nil {
		return nil, err
	}
	if link == nil || strings.TrimSpace(link.ProviderCustomerID) == "" {
		return nil, fmt.Errorf("%w: user_id=%d", ErrCustomerNotLinked, input.User.ID)
	}
	if input.Price.ProviderPriceID == nil || *input.Price.ProviderPriceID == "" {
		return nil, &ValidationError{Message: "price is not mirrored to the gateway", Param: "price"}
	}

	values := url.Values{}
	values.Set("customer", link.ProviderCustomerID)
	values.Set("items[0][price]", *input.Price.ProviderPriceID)
	values.Set("metadata[order_id]", strconv.FormatUint(input.Order.ID, 10))
	if input.FirstParty {
		values.Set("metadata[first_party]", "true")
	}
	if input.ChargeNow {
		values.Set("payment_behavior", "error_if_incomplete")
	} else {
		values.Set("payment_behavior", "default_incomplete")
	}

	if input.AnchorBillingCycle != nil {
		anchor := input.AnchorBillingCycle.UTC()
		next := nextRenewal(anchor, input.Price.Interval, input.Price.IntervalCount, time.Now().UTC())
		values.Set("backdate_start_date", strconv.FormatInt(anchor.Unix(), 10))
		values.Set("billing_cycle_anchor", strconv.FormatInt(next.Unix(), 10))
		values.Set("proration_behavior", "none")
	}

	body, err := d.call(ctx, http.MethodPost, "/v1/subscriptions", values)
	if err != nil {
		return nil, err
	}
	return parseSubscription(body)
}

func (d *StripeDriver) SwapSubscriptionPrice(ctx context.Context, input SwapPriceInput) (*SubscriptionData, error) {
	if input.NewPrice.ProviderPriceID == nil || *input.NewPrice.ProviderPriceID == "" {
		return nil, &ValidationError{Message: "price is not mirrored to the gateway", Param: "price"}
	}
	path := "/v1/subscriptions/" + url.PathEscape(input.ProviderSubscriptionID)

	body, err := d.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var current struct {
		Items struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &current); err != nil {
		return nil, err
	}
	if len(current.Items.Data) == 0 {
		return nil, &NotFoundError{Resource: "subscription item", Ref: input.ProviderSubscriptionID}
	}

	values := url.Values{}
	values.Set("items[0][id]", current.Items.Data[0].ID)
	values.Set("items[0][price]", *input.NewPrice.ProviderPriceID)
	proration := strings.TrimSpace(input.ProrationBehavior)
	if proration == "" {
		proration = "create_prorations"
	}
	values.Set("proration_behavior", proration)
	if input.ChargeNow {
		values.Set("payment_behavior", "error_if_incomplete")
	}

	body, err = d.call(ctx, http.MethodPost, path, values)
	if err != nil {
		return nil, err
	}
	return parseSubscription(body)
}

func (d *StripeDriver) VerifyAndParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(d.cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if !verifyStripeSignature(payload, signature, d.cfg.WebhookSecret, d.cfg.SignatureToleranceSeconds) {
		return nil, errors.New("invalid stripe signature")
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &WebhookEvent{EventType: event.Type}
	if eventID := strings.TrimSpace(event.ID); eventID != "" {
		result.ProviderEventID = &eventID
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var object struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		assignSubscriptionRef(result, object.ID)
		result.SubscriptionStatus = mapSubscriptionStatus(object.Status)
	case "customer.subscription.deleted":
		var object struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		assignSubscriptionRef(result, object.ID)
		result.SubscriptionStatus = entity.SubscriptionStatusCanceled
	case "invoice.paid":
		var object struct {
			Subscription interface{} `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		assignSubscriptionRef(result, parseStringish(object.Subscription))
		result.SubscriptionStatus = entity.SubscriptionStatusActive
	case "invoice.payment_failed":
		var object struct {
			Subscription interface{} `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		assignSubscriptionRef(result, parseStringish(object.Subscription))
		result.SubscriptionStatus = entity.SubscriptionStatusPastDue
	}

	return result, nil
}

func (d *StripeDriver) call(ctx context.Context, method, path string, values url.Values) ([]byte, error) {
	endpoint := d.cfg.APIBaseURL + path
	var reqBody io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(values) > 0 {
			endpoint += "?" + values.Encode()
		}
	} else if values != nil {
		reqBody = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.cfg.SecretKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	op := method + " " + path
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &RetryableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetryableError{Op: op, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, d.mapAPIError(op, path, resp.StatusCode, body)
	}
	return body, nil
}

func (d *StripeDriver) mapAPIError(op, path string, status int, body []byte) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return &RetryableError{Op: op, Err: fmt.Errorf("status=%d body=%s", status, string(body))}
	}

	var envelope struct {
		Error struct {
			Type        string `json:"type"`
			Code        string `json:"code"`
			Param       string `json:"param"`
			Message     string `json:"message"`
			DeclineCode string `json:"decline_code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	if status == http.StatusNotFound || envelope.Error.Code == "resource_missing" {
		resource, ref := resourceFromPath(path)
		return &NotFoundError{Resource: resource, Ref: ref}
	}

	if status == http.StatusPaymentRequired || envelope.Error.Type == "card_error" {
		paymentErr := &PaymentError{
			Code:        envelope.Error.Code,
			DeclineCode: envelope.Error.DeclineCode,
			Message:     envelope.Error.Message,
		}
		d.tracker.record(paymentErr)
		return paymentErr
	}

	if envelope.Error.Type == "invalid_request_error" {
		return &ValidationError{Message: envelope.Error.Message, Param: envelope.Error.Param}
	}

	return fmt.Errorf("stripe request failed: op=%s status=%d body=%s", op, status, string(body))
}

func parseSubscription(body []byte) (*SubscriptionData, error) {
	var payload struct {
		ID                 string `json:"id"`
		Status             string `json:"status"`
		CurrentPeriodStart int64  `json:"current_period_start"`
		CurrentPeriodEnd   int64  `json:"current_period_end"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("stripe subscription id missing")
	}

	return &SubscriptionData{
		ProviderSubscriptionID: payload.ID,
		Status:                 mapSubscriptionStatus(payload.Status),
		CurrentPeriodStart:     time.Unix(payload.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:       time.Unix(payload.CurrentPeriodEnd, 0).UTC(),
	}, nil
}

func mapSubscriptionStatus(status string) int32 {
	switch status {
	case "active", "trialing":
		return entity.SubscriptionStatusActive
	case "past_due", "unpaid":
		return entity.SubscriptionStatusPastDue
	case "canceled":
		return entity.SubscriptionStatusCanceled
	default:
		return entity.SubscriptionStatusIncomplete
	}
}

// nextRenewal advances the anchor by whole billing intervals until it lands
// after now. An anchor 15 days in the past on a 30-day interval renews in
// 15 days, not 30.
func nextRenewal(anchor time.Time, interval string, count int32, now time.Time) time.Time {
	if count <= 0 {
		count = 1
	}
	next := anchor
	for !next.After(now) {
		switch interval {
		case "day":
			next = next.AddDate(0, 0, int(count))
		case "week":
			next = next.AddDate(0, 0, 7*int(count))
		case "year":
			next = next.AddDate(int(count), 0, 0)
		default:
			next = next.AddDate(0, int(count), 0)
		}
	}
	return next
}

func resourceFromPath(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/v1/")
	parts := strings.Split(trimmed, "/")
	resource := strings.TrimSuffix(parts[0], "s")
	ref := ""
	if len(parts) > 1 {
		ref = parts[1]
	}
	return resource, ref
}

func assignSubscriptionRef(event *WebhookEvent, id string) {
	if s := strings.TrimSpace(id); s != "" {
		event.ProviderSubscriptionID = &s
	}
}

func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	parts := strings.Split(signatureHeader, ",")
	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	signedPayload := []byte(ts + "." + string(payload))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}

func parseStringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if raw, ok := t["id"]; ok {
			if s, ok := raw.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
