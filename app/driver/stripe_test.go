package driver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

type fakeCustomerStore struct {
	customers map[uint64]*entity.Customer
	created   int
	updated   int
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{customers: map[uint64]*entity.Customer{}}
}

func (s *fakeCustomerStore) FindByUserID(_ context.Context, provider int32, userID uint64) (*entity.Customer, error) {
	item, ok := s.customers[userID]
	if !ok || item.Provider != provider {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (s *fakeCustomerStore) Create(_ context.Context, customer *entity.Customer) error {
	s.created++
	copyItem := *customer
	s.customers[customer.UserID] = &copyItem
	return nil
}

func (s *fakeCustomerStore) Update(_ context.Context, customer *entity.Customer) error {
	s.updated++
	copyItem := *customer
	s.customers[customer.UserID] = &copyItem
	return nil
}

func newTestStripeDriver(server *httptest.Server, customers CustomerStore) *StripeDriver {
	return NewStripeDriver(StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: "whsec_test",
		APIBaseURL:    server.URL,
	}, customers)
}

func linkCustomer(store *fakeCustomerStore, userID uint64, providerCustomerID string) {
	store.customers[userID] = &entity.Customer{
		UserID:             userID,
		Provider:           CodeStripe,
		ProviderCustomerID: providerCustomerID,
		Synced:             true,
	}
}

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	ts := time.Now().Unix()
	signed := fmt.Sprintf("%d.%s", ts, string(payload))

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	sig := hex.EncodeToString(mac.Sum(nil))
	header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

	if !verifyStripeSignature(payload, header, secret, 300) {
		t.Fatal("expected signature to validate")
	}
	if verifyStripeSignature(payload, header, "wrong-secret", 300) {
		t.Fatal("expected signature with wrong secret to fail")
	}

	staleHeader := fmt.Sprintf("t=%d,v1=%s", ts-3600, sig)
	if verifyStripeSignature(payload, staleHeader, secret, 300) {
		t.Fatal("expected stale timestamp to fail")
	}
}

func TestNextRenewalAdvancesPastNow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	anchor := now.AddDate(0, 0, -15)

	next := nextRenewal(anchor, "day", 30, now)
	if got := next.Sub(now); got != 15*24*time.Hour {
		t.Fatalf("expected renewal 15 days out, got %s", got)
	}

	monthly := nextRenewal(now.AddDate(0, -2, -3), "month", 1, now)
	if !monthly.After(now) {
		t.Fatalf("expected monthly renewal after now, got %s", monthly)
	}
	if monthly.AddDate(0, -1, 0).After(now) {
		t.Fatalf("expected renewal within one interval of now, got %s", monthly)
	}
}

func TestDeleteProductArchivesWhenDeletionRefused(t *testing.T) {
	var archived bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/products/prod_1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"product has prices"}}`))
			return
		}
		_ = r.ParseForm()
		if r.PostFormValue("active") != "false" {
			t.Fatalf("expected archive call with active=false, got %v", r.PostForm)
		}
		archived = true
		_, _ = w.Write([]byte(`{"id":"prod_1","active":false}`))
	}))
	defer server.Close()

	d := newTestStripeDriver(server, newFakeCustomerStore())
	remoteID := "prod_1"
	product := &entity.Product{ID: 1, Name: "Plan", Active: true, Provider: CodeStripe, ProviderProductID: &remoteID}

	deleted, err := d.DeleteProduct(context.Background(), product)
	if err != nil {
		t.Fatalf("delete product failed: %v", err)
	}
	if deleted {
		t.Fatal("expected deleted=false when gateway can only archive")
	}
	if !archived {
		t.Fatal("expected archive request to be sent")
	}
	if product.Active {
		t.Fatal("expected product to be marked inactive after archive")
	}
}

func TestDeleteProductUnsyncedIsNoop(t *testing.T) {
	d := NewStripeDriver(StripeConfig{SecretKey: "sk_test"}, newFakeCustomerStore())

	deleted, err := d.DeleteProduct(context.Background(), &entity.Product{ID: 1, Name: "Plan"})
	if err != nil {
		t.Fatalf("delete product failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected unsynced product to report deleted")
	}
}

func TestStartSubscriptionDeclineRecordsLastError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card was declined."}}`))
	}))
	defer server.Close()

	store := newFakeCustomerStore()
	linkCustomer(store, 7, "cus_7")
	d := newTestStripeDriver(server, store)

	priceID := "price_1"
	_, err := d.StartSubscription(context.Background(), StartSubscriptionInput{
		Order:     &entity.Order{ID: 1},
		User:      &entity.User{ID: 7, Email: "u@example.com"},
		Price:     &entity.Price{ID: 1, ProviderPriceID: &priceID},
		ChargeNow: true,
	})

	var paymentErr *PaymentError
	if !errors.As(err, &paymentErr) {
		t.Fatalf("expected PaymentError, got %v", err)
	}
	if paymentErr.DeclineCode != "insufficient_funds" {
		t.Fatalf("unexpected decline code %q", paymentErr.DeclineCode)
	}

	last := d.LastError()
	if last == nil {
		t.Fatal("expected last error snapshot")
	}
	if last.Code != "card_declined" {
		t.Fatalf("unexpected last error code %q", last.Code)
	}
	if last.OccurredAt.IsZero() {
		t.Fatal("expected last error timestamp")
	}
}

func TestStartSubscriptionRequiresLinkedCustomer(t *testing.T) {
	d := NewStripeDriver(StripeConfig{SecretKey: "sk_test"}, newFakeCustomerStore())

	priceID := "price_1"
	_, err := d.StartSubscription(context.Background(), StartSubscriptionInput{
		Order: &entity.Order{ID: 1},
		User:  &entity.User{ID: 7},
		Price: &entity.Price{ID: 1, ProviderPriceID: &priceID},
	})
	if !errors.Is(err, ErrCustomerNotLinked) {
		t.Fatalf("expected ErrCustomerNotLinked, got %v", err)
	}
}

func TestStartSubscriptionAnchorSetsBackdateAndCycle(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_, _ = w.Write([]byte(`{"id":"sub_1","status":"active","current_period_start":1700000000,"current_period_end":1702592000}`))
	}))
	defer server.Close()

	store := newFakeCustomerStore()
	linkCustomer(store, 7, "cus_7")
	d := newTestStripeDriver(server, store)

	anchor := time.Now().UTC().AddDate(0, 0, -15)
	priceID := "price_1"
	data, err := d.StartSubscription(context.Background(), StartSubscriptionInput{
		Order:              &entity.Order{ID: 1},
		User:               &entity.User{ID: 7},
		Price:              &entity.Price{ID: 1, Interval: "day", IntervalCount: 30, ProviderPriceID: &priceID},
		AnchorBillingCycle: &anchor,
	})
	if err != nil {
		t.Fatalf("start subscription failed: %v", err)
	}
	if data.ProviderSubscriptionID != "sub_1" {
		t.Fatalf("unexpected subscription id %q", data.ProviderSubscriptionID)
	}
	if data.Status != entity.SubscriptionStatusActive {
		t.Fatalf("unexpected status %d", data.Status)
	}

	if len(form["backdate_start_date"]) == 0 {
		t.Fatal("expected backdate_start_date to be sent")
	}
	if len(form["billing_cycle_anchor"]) == 0 {
		t.Fatal("expected billing_cycle_anchor to be sent")
	}
	if got := form.Get("proration_behavior"); got != "none" {
		t.Fatalf("expected proration_behavior=none, got %q", got)
	}
}

func TestGetCustomerUnlinkedReturnsNil(t *testing.T) {
	d := NewStripeDriver(StripeConfig{SecretKey: "sk_test"}, newFakeCustomerStore())

	data, err := d.GetCustomer(context.Background(), &entity.User{ID: 7})
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if data != nil {
		t.Fatal("expected nil customer data for unlinked user")
	}
}

func TestCreateCustomerSyncNowLinksUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/customers" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"cus_new"}`))
	}))
	defer server.Close()

	store := newFakeCustomerStore()
	d := newTestStripeDriver(server, store)

	ok, err := d.CreateCustomer(context.Background(), &entity.User{ID: 7, Email: "u@example.com", Name: "U"}, true)
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	if !ok {
		t.Fatal("expected create customer to succeed")
	}

	link := store.customers[7]
	if link == nil || link.ProviderCustomerID != "cus_new" {
		t.Fatalf("expected linked customer cus_new, got %+v", link)
	}
	if !link.Synced {
		t.Fatal("expected link to be marked synced")
	}
}

func TestCreateCustomerIdempotentWhenLinked(t *testing.T) {
	store := newFakeCustomerStore()
	linkCustomer(store, 7, "cus_7")
	d := NewStripeDriver(StripeConfig{SecretKey: "sk_test"}, store)

	ok, err := d.CreateCustomer(context.Background(), &entity.User{ID: 7}, true)
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	if !ok {
		t.Fatal("expected already linked customer to report success")
	}
	if store.created != 0 || store.updated != 0 {
		t.Fatal("expected no store writes for already linked customer")
	}
}

func TestListPaymentMethodsDefaultFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/customers/cus_7":
			_, _ = w.Write([]byte(`{"id":"cus_7","email":"u@example.com","invoice_settings":{"default_payment_method":"pm_2"}}`))
		case "/v1/payment_methods":
			_, _ = w.Write([]byte(`{"data":[{"id":"pm_1","type":"card","card":{"brand":"visa","last4":"4242","exp_month":1,"exp_year":2030}},{"id":"pm_2","type":"card","card":{"brand":"mastercard","last4":"4444","exp_month":2,"exp_year":2031}}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	store := newFakeCustomerStore()
	linkCustomer(store, 7, "cus_7")
	d := newTestStripeDriver(server, store)

	items, err := d.ListPaymentMethods(context.Background(), &entity.User{ID: 7})
	if err != nil {
		t.Fatalf("list payment methods failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(items))
	}
	if items[0].ProviderMethodID != "pm_2" || !items[0].Default {
		t.Fatalf("expected default method first, got %+v", items[0])
	}
}

func TestCallMapsRetryableAndNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/products/prod_gone":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such product"}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error"}}`))
		}
	}))
	defer server.Close()

	d := newTestStripeDriver(server, newFakeCustomerStore())

	remoteID := "prod_gone"
	_, err := d.GetProduct(context.Background(), &entity.Product{ID: 1, ProviderProductID: &remoteID})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Resource != "product" {
		t.Fatalf("unexpected resource %q", notFound.Resource)
	}

	_, err = d.ListProducts(context.Background(), ProductFilter{})
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error for 500, got %v", err)
	}
}

func TestVerifyAndParseWebhookMapsEvents(t *testing.T) {
	secret := "whsec_test"
	d := NewStripeDriver(StripeConfig{SecretKey: "sk_test", WebhookSecret: secret}, newFakeCustomerStore())

	sign := func(payload []byte) string {
		ts := time.Now().Unix()
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, string(payload))))
		return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	}

	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{"subscription":"sub_1"}}}`)
	event, err := d.VerifyAndParseWebhook(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.ProviderSubscriptionID == nil || *event.ProviderSubscriptionID != "sub_1" {
		t.Fatalf("expected subscription ref sub_1, got %+v", event)
	}
	if event.SubscriptionStatus != entity.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %d", event.SubscriptionStatus)
	}

	payload = []byte(`{"id":"evt_2","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1"}}}`)
	event, err = d.VerifyAndParseWebhook(context.Background(), payload, sign(payload))
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.SubscriptionStatus != entity.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %d", event.SubscriptionStatus)
	}

	if _, err := d.VerifyAndParseWebhook(context.Background(), payload, "t=1,v1=bad"); err == nil {
		t.Fatal("expected invalid signature to be rejected")
	}
}
