package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/medilink/medilink/internal/clock"
	"github.com/medilink/medilink/internal/config"
	customerdomain "github.com/medilink/medilink/internal/customer/domain"
	customerrepo "github.com/medilink/medilink/internal/customer/repository"
	notificationdomain "github.com/medilink/medilink/internal/notification/domain"
	notificationrepo "github.com/medilink/medilink/internal/notification/repository"
	notificationservice "github.com/medilink/medilink/internal/notification/service"
	orderdomain "github.com/medilink/medilink/internal/order/domain"
	orderrepo "github.com/medilink/medilink/internal/order/repository"
	"github.com/medilink/medilink/internal/payment/adapters/stripe"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	productdomain "github.com/medilink/medilink/internal/product/domain"
	productrepo "github.com/medilink/medilink/internal/product/repository"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
	subscriptionrepo "github.com/medilink/medilink/internal/subscription/repository"
	"github.com/medilink/medilink/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_reconciler"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fetcherMock struct {
	mock.Mock
}

func (m *fetcherMock) GetSubscription(ctx context.Context, subscriptionID string) (*paymentdomain.RemoteSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	sub, _ := args.Get(0).(*paymentdomain.RemoteSubscription)
	return sub, args.Error(1)
}

type harness struct {
	db      *gorm.DB
	node    *snowflake.Node
	fetcher *fetcherMock
	svc     *Service
}

type harnessOption func(*config.Config, *Params)

func withDedupeOrders() harnessOption {
	return func(cfg *config.Config, _ *Params) { cfg.Payment.DedupeOrders = true }
}

func withRedis(client *redis.Client) harnessOption {
	return func(_ *config.Config, p *Params) { p.Redis = client }
}

func withNotifications(sink notificationdomain.Sink) harnessOption {
	return func(_ *config.Config, p *Params) { p.Notifications = sink }
}

type failingSink struct {
	err error
}

func (f failingSink) Create(context.Context, *gorm.DB, notificationdomain.CreateInput) (*notificationdomain.Notification, error) {
	return nil, f.err
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	log := zap.NewNop()
	clk := clock.Fixed(testNow)
	fetcher := &fetcherMock{}

	cfg := config.Config{Stripe: config.StripeConfig{WebhookSecret: testSecret}}
	p := Params{
		Log:           log,
		Clock:         clk,
		GenID:         node,
		Verifier:      stripe.NewWithBackends(cfg.Stripe, nil, log),
		Fetcher:       fetcher,
		Subscriptions: subscriptionrepo.Provide(),
		Orders:        orderrepo.Provide(),
		Products:      productrepo.Provide(),
		Customers:     customerrepo.Provide(),
		Registerer:    prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg, &p)
	}
	p.DB = db
	p.Cfg = cfg
	if p.Notifications == nil {
		p.Notifications = notificationservice.New(notificationservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Clock: clk,
			Repo:  notificationrepo.Provide(),
		})
	}

	return &harness{db: db, node: node, fetcher: fetcher, svc: NewService(p)}
}

func (h *harness) deliver(t *testing.T, payload []byte) (paymentdomain.Result, error) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return h.svc.IngestWebhook(context.Background(), payload, signed.Header)
}

func (h *harness) seedProduct(t *testing.T, price string, active bool) *productdomain.Product {
	t.Helper()
	product := &productdomain.Product{
		ID:        h.node.Generate(),
		Name:      "QR Medical Bracelet",
		Price:     decimal.RequireFromString(price),
		Currency:  "usd",
		IsActive:  active,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, h.db.Create(product).Error)
	return product
}

func (h *harness) seedSubscription(t *testing.T, stripeID, userID string) *subscriptiondomain.Subscription {
	t.Helper()
	start := testNow.AddDate(0, -1, 0)
	end := testNow
	sub := &subscriptiondomain.Subscription{
		ID:                   h.node.Generate(),
		UserID:               userID,
		StripeSubscriptionID: stripeID,
		StripeCustomerID:     "cus_1",
		Tier:                 subscriptiondomain.TierPremium,
		Status:               subscriptiondomain.StatusActive,
		BillingPeriod:        subscriptiondomain.BillingPeriodMonthly,
		CurrentPeriodStart:   &start,
		CurrentPeriodEnd:     &end,
		CreatedAt:            testNow,
		UpdatedAt:            testNow,
	}
	require.NoError(t, h.db.Create(sub).Error)
	return sub
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Count(&n).Error)
	return n
}

func (h *harness) notifications(t *testing.T, userID string) []notificationdomain.Notification {
	t.Helper()
	var items []notificationdomain.Notification
	require.NoError(t, h.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&items).Error)
	return items
}

func (h *harness) subscription(t *testing.T, stripeID string) subscriptiondomain.Subscription {
	t.Helper()
	var sub subscriptiondomain.Subscription
	require.NoError(t, h.db.Where("stripe_subscription_id = ?", stripeID).First(&sub).Error)
	return sub
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": testNow.Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func subscriptionCheckout(t *testing.T, eventID string, metadata map[string]any) []byte {
	return eventPayload(t, eventID, "checkout.session.completed", map[string]any{
		"id":           "cs_sub_1",
		"object":       "checkout.session",
		"mode":         "subscription",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata":     metadata,
	})
}

func paymentCheckout(t *testing.T, eventID string, metadata map[string]any) []byte {
	return eventPayload(t, eventID, "checkout.session.completed", map[string]any{
		"id":               "cs_pay_1",
		"object":           "checkout.session",
		"mode":             "payment",
		"customer":         "cus_1",
		"payment_intent":   "pi_1",
		"amount_total":     5997,
		"currency":         "usd",
		"metadata":         metadata,
		"customer_details": map[string]any{"email": "jane@example.com", "name": "Jane"},
	})
}

func remoteActive() *paymentdomain.RemoteSubscription {
	start := testNow
	end := testNow.AddDate(0, 1, 0)
	return &paymentdomain.RemoteSubscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             "active",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
}

func TestSubscriptionCheckoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.fetcher.On("GetSubscription", mock.Anything, "sub_1").Return(remoteActive(), nil).Once()

	payload := subscriptionCheckout(t, "evt_sub_1", map[string]any{"userId": "user_1", "tier": "premium", "period": "monthly"})

	first, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, first.Outcome)
	assert.Equal(t, paymentdomain.EventKindCheckoutCompleted, first.Kind)

	second, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, second.Outcome)

	assert.Equal(t, int64(1), h.count(t, &subscriptiondomain.Subscription{}))
	sub := h.subscription(t, "sub_1")
	assert.Equal(t, "user_1", sub.UserID)
	assert.Equal(t, subscriptiondomain.TierPremium, sub.Tier)
	assert.Equal(t, subscriptiondomain.BillingPeriodMonthly, sub.BillingPeriod)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(testNow.AddDate(0, 1, 0)))

	notes := h.notifications(t, "user_1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Subscription Activated", notes[0].Title)
	assert.Equal(t, notificationdomain.TypeSubscriptionUpdate, notes[0].Type)

	h.fetcher.AssertExpectations(t)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.svc.metrics.events.WithLabelValues("checkout_completed", "applied")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.svc.metrics.events.WithLabelValues("checkout_completed", "duplicate")))
}

func TestSubscriptionCheckoutLostRaceIsDuplicate(t *testing.T) {
	h := newHarness(t)
	// A concurrent delivery inserts the row while this one is fetching remote state.
	h.fetcher.On("GetSubscription", mock.Anything, "sub_1").
		Run(func(mock.Arguments) { h.seedSubscription(t, "sub_1", "user_1") }).
		Return(remoteActive(), nil).Once()

	payload := subscriptionCheckout(t, "evt_race", map[string]any{"userId": "user_1", "tier": "basic", "period": "yearly"})
	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, result.Outcome)

	assert.Equal(t, int64(1), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Empty(t, h.notifications(t, "user_1"))
}

func TestCheckoutWithoutUserIsNoop(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "9.99", true)

	for name, payload := range map[string][]byte{
		"subscription": subscriptionCheckout(t, "evt_nouser_sub", map[string]any{"tier": "basic", "period": "monthly"}),
		"payment":      paymentCheckout(t, "evt_nouser_pay", map[string]any{"productId": product.ID.String()}),
	} {
		t.Run(name, func(t *testing.T) {
			result, err := h.deliver(t, payload)
			require.NoError(t, err)
			assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)
		})
	}

	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(0), h.count(t, &orderdomain.Order{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))
	h.fetcher.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestInvalidSignatureWritesNothing(t *testing.T) {
	h := newHarness(t)
	payload := subscriptionCheckout(t, "evt_forged", map[string]any{"userId": "user_1", "tier": "basic", "period": "monthly"})

	_, err := h.svc.IngestWebhook(context.Background(), payload, "t=1700000000,v1=0000")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = h.svc.IngestWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))
	assert.Equal(t, int64(0), h.count(t, &paymentdomain.EventRecord{}))
	h.fetcher.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestPaymentCheckoutComputesAmounts(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "19.99", true)
	address := &customerdomain.ShippingAddress{
		ID:         h.node.Generate(),
		UserID:     "user_1",
		FullName:   "Jane Doe",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
		IsDefault:  true,
		CreatedAt:  testNow,
	}
	require.NoError(t, h.db.Create(address).Error)

	payload := paymentCheckout(t, "evt_pay_1", map[string]any{"userId": "user_1", "productId": product.ID.String(), "quantity": "3"})
	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, result.Outcome)

	var orders []orderdomain.Order
	require.NoError(t, h.db.Preload("Items").Find(&orders).Error)
	require.Len(t, orders, 1)
	order := orders[0]
	assert.Equal(t, "user_1", order.UserID)
	assert.Equal(t, orderdomain.StatusPending, order.Status)
	assert.Equal(t, "59.97", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "cs_pay_1", order.StripeCheckoutSessionID)
	assert.Equal(t, "pi_1", order.StripePaymentIntentID)
	require.NotNil(t, order.ShippingAddressID)
	assert.Equal(t, address.ID, *order.ShippingAddressID)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, product.ID, item.ProductID)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, "19.99", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "59.97", item.TotalPrice.StringFixed(2))

	notes := h.notifications(t, "user_1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Order Placed", notes[0].Title)
	assert.Equal(t, notificationdomain.TypeOrderUpdate, notes[0].Type)
	require.NotNil(t, notes[0].RelatedOrderID)
	assert.Equal(t, order.ID, *notes[0].RelatedOrderID)
}

func TestPaymentCheckoutDefaultsQuantityWithoutAddress(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "9.99", true)

	payload := paymentCheckout(t, "evt_pay_default", map[string]any{"userId": "user_2", "productId": product.ID.String()})
	_, err := h.deliver(t, payload)
	require.NoError(t, err)

	var order orderdomain.Order
	require.NoError(t, h.db.Preload("Items").First(&order).Error)
	assert.Nil(t, order.ShippingAddressID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].Quantity)
	assert.Equal(t, "9.99", order.TotalAmount.StringFixed(2))
}

func TestPaymentCheckoutReplayCreatesSecondOrder(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "14.99", true)
	payload := paymentCheckout(t, "evt_pay_replay", map[string]any{"userId": "user_1", "productId": product.ID.String()})

	for range 2 {
		result, err := h.deliver(t, payload)
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.OutcomeApplied, result.Outcome)
	}

	// Replays are not deduplicated unless payment.dedupe_orders is set.
	assert.Equal(t, int64(2), h.count(t, &orderdomain.Order{}))
	assert.Len(t, h.notifications(t, "user_1"), 2)
}

func TestPaymentCheckoutReplayWithDedupe(t *testing.T) {
	h := newHarness(t, withDedupeOrders())
	product := h.seedProduct(t, "14.99", true)
	payload := paymentCheckout(t, "evt_pay_dedupe", map[string]any{"userId": "user_1", "productId": product.ID.String()})

	first, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, first.Outcome)

	second, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, second.Outcome)

	assert.Equal(t, int64(1), h.count(t, &orderdomain.Order{}))
	assert.Equal(t, int64(1), h.count(t, &orderdomain.OrderItem{}))
	assert.Len(t, h.notifications(t, "user_1"), 1)
}

func TestPaymentCheckoutSkipsUnavailableProducts(t *testing.T) {
	h := newHarness(t)
	inactive := h.seedProduct(t, "9.99", false)

	cases := map[string]map[string]any{
		"inactive":   {"userId": "user_1", "productId": inactive.ID.String()},
		"missing":    {"userId": "user_1", "productId": h.node.Generate().String()},
		"no product": {"userId": "user_1"},
		"bad id":     {"userId": "user_1", "productId": "not-a-number"},
		"bad qty":    {"userId": "user_1", "productId": inactive.ID.String(), "quantity": "zero"},
	}
	for name, metadata := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := h.deliver(t, paymentCheckout(t, "evt_"+name, metadata))
			require.NoError(t, err)
			assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)
		})
	}

	assert.Equal(t, int64(0), h.count(t, &orderdomain.Order{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))
}

func subscriptionObject(status string, cancelAtPeriodEnd bool, canceledAt int64) map[string]any {
	obj := map[string]any{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             "cus_1",
		"status":               status,
		"current_period_start": testNow.Unix(),
		"current_period_end":   testNow.AddDate(0, 1, 0).Unix(),
		"cancel_at_period_end": cancelAtPeriodEnd,
	}
	if canceledAt > 0 {
		obj["canceled_at"] = canceledAt
	}
	return obj
}

func TestSubscriptionUpdateCancelAtPeriodEnd(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", "user_1")

	payload := eventPayload(t, "evt_upd_1", "customer.subscription.updated", subscriptionObject("active", true, 0))
	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, result.Outcome)

	sub := h.subscription(t, "sub_1")
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodStart)
	assert.True(t, sub.CurrentPeriodStart.Equal(testNow))

	notes := h.notifications(t, "user_1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Subscription Will Cancel", notes[0].Title)

	// Identical redelivery notifies again; notifications are not deduplicated.
	_, err = h.deliver(t, payload)
	require.NoError(t, err)
	assert.Len(t, h.notifications(t, "user_1"), 2)
}

func TestSubscriptionUpdatePlainIsSilent(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", "user_1")

	payload := eventPayload(t, "evt_upd_plain", "customer.subscription.updated", subscriptionObject("past_due", false, 0))
	_, err := h.deliver(t, payload)
	require.NoError(t, err)

	sub := h.subscription(t, "sub_1")
	assert.Equal(t, subscriptiondomain.StatusPastDue, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Empty(t, h.notifications(t, "user_1"))
}

func TestSubscriptionUpdateStoresUnknownStatus(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", "user_1")

	payload := eventPayload(t, "evt_upd_odd", "customer.subscription.updated", subscriptionObject("on_hold", false, 0))
	_, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.Status("on_hold"), h.subscription(t, "sub_1").Status)
}

func TestSubscriptionDeleted(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", "user_1")
	canceledAt := testNow.Add(-time.Hour).Unix()

	payload := eventPayload(t, "evt_del_1", "customer.subscription.deleted", subscriptionObject("canceled", false, canceledAt))
	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.EventKindSubscriptionDeleted, result.Kind)

	sub := h.subscription(t, "sub_1")
	assert.Equal(t, subscriptiondomain.StatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, canceledAt, sub.CanceledAt.Unix())

	notes := h.notifications(t, "user_1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Subscription Canceled", notes[0].Title)
}

func TestSubscriptionEventForUnknownSubscription(t *testing.T) {
	h := newHarness(t)

	payload := eventPayload(t, "evt_upd_unknown", "customer.subscription.updated", subscriptionObject("active", true, 0))
	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)
	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))
}

func invoiceObject(subscriptionID string) map[string]any {
	return map[string]any{
		"id":           "in_1",
		"object":       "invoice",
		"subscription": subscriptionID,
		"period_start": testNow.AddDate(0, -1, 0).Unix(),
		"period_end":   testNow.Unix(),
		"lines": map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":     "il_1",
				"object": "line_item",
				"period": map[string]any{
					"start": testNow.Unix(),
					"end":   testNow.AddDate(0, 1, 0).Unix(),
				},
			}},
		},
	}
}

func TestInvoicePaymentFailed(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", "user_1")

	result, err := h.deliver(t, eventPayload(t, "evt_inv_fail", "invoice.payment_failed", invoiceObject("sub_1")))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, result.Outcome)

	assert.Equal(t, subscriptiondomain.StatusPastDue, h.subscription(t, "sub_1").Status)
	notes := h.notifications(t, "user_1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Payment Failed", notes[0].Title)
}

func TestInvoicePaymentFailedUnknownSubscription(t *testing.T) {
	h := newHarness(t)

	result, err := h.deliver(t, eventPayload(t, "evt_inv_fail_unknown", "invoice.payment_failed", invoiceObject("sub_missing")))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)
	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))
}

func TestInvoicePaymentSucceededRefreshesPeriod(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", "user_1")

	result, err := h.deliver(t, eventPayload(t, "evt_inv_ok", "invoice.payment_succeeded", invoiceObject("sub_1")))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, result.Outcome)

	sub := h.subscription(t, "sub_1")
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodStart.Equal(testNow))
	assert.True(t, sub.CurrentPeriodEnd.Equal(testNow.AddDate(0, 1, 0)))
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	assert.Empty(t, h.notifications(t, "user_1"))
}

func TestUnknownEventIsIgnored(t *testing.T) {
	h := newHarness(t)

	result, err := h.deliver(t, eventPayload(t, "evt_refund", "charge.refunded", map[string]any{"id": "ch_1", "object": "charge"}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeIgnored, result.Outcome)
	assert.Equal(t, paymentdomain.EventKindUnknown, result.Kind)
}

func TestGatewayFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	gatewayErr := errors.New("stripe unavailable")
	h.fetcher.On("GetSubscription", mock.Anything, "sub_1").Return(nil, gatewayErr).Once()

	payload := subscriptionCheckout(t, "evt_sub_fail", map[string]any{"userId": "user_1", "tier": "family", "period": "monthly"})
	_, err := h.deliver(t, payload)
	require.ErrorIs(t, err, gatewayErr)

	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))

	var record paymentdomain.EventRecord
	require.NoError(t, h.db.Where("provider_event_id = ?", "evt_sub_fail").First(&record).Error)
	assert.Equal(t, paymentdomain.OutcomeFailed, record.Outcome)
	require.NotNil(t, record.Error)
	assert.Contains(t, *record.Error, "stripe unavailable")
}

func TestUndecodableObjectIsSkipped(t *testing.T) {
	h := newHarness(t)
	payload := eventPayload(t, "evt_bad_object", "checkout.session.completed", map[string]any{
		"id":       "cs_bad",
		"object":   "checkout.session",
		"mode":     "subscription",
		"metadata": 5,
	})

	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)
	assert.Equal(t, paymentdomain.EventKindCheckoutCompleted, result.Kind)

	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(0), h.count(t, &notificationdomain.Notification{}))
	h.fetcher.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)

	var record paymentdomain.EventRecord
	require.NoError(t, h.db.Where("provider_event_id = ?", "evt_bad_object").First(&record).Error)
	assert.Equal(t, paymentdomain.OutcomeSkipped, record.Outcome)
}

func TestOrderRollsBackWhenNotificationFails(t *testing.T) {
	h := newHarness(t, withNotifications(failingSink{err: errors.New("sink down")}))
	product := h.seedProduct(t, "19.99", true)

	payload := paymentCheckout(t, "evt_pay_rollback", map[string]any{"userId": "user_1", "productId": product.ID.String(), "quantity": "2"})
	_, err := h.deliver(t, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")

	assert.Equal(t, int64(0), h.count(t, &orderdomain.Order{}))
	assert.Equal(t, int64(0), h.count(t, &orderdomain.OrderItem{}))

	var record paymentdomain.EventRecord
	require.NoError(t, h.db.Where("provider_event_id = ?", "evt_pay_rollback").First(&record).Error)
	assert.Equal(t, paymentdomain.OutcomeFailed, record.Outcome)
}

func TestSubscriptionRollsBackWhenNotificationFails(t *testing.T) {
	h := newHarness(t, withNotifications(failingSink{err: errors.New("sink down")}))
	h.fetcher.On("GetSubscription", mock.Anything, "sub_1").Return(remoteActive(), nil).Once()

	payload := subscriptionCheckout(t, "evt_sub_rollback", map[string]any{"userId": "user_1", "tier": "family", "period": "monthly"})
	_, err := h.deliver(t, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")

	assert.Equal(t, int64(0), h.count(t, &subscriptiondomain.Subscription{}))
}

func TestJournalMasksPayload(t *testing.T) {
	h := newHarness(t)
	product := h.seedProduct(t, "9.99", true)

	payload := paymentCheckout(t, "evt_journal", map[string]any{"userId": "user_1", "productId": product.ID.String()})
	_, err := h.deliver(t, payload)
	require.NoError(t, err)

	var record paymentdomain.EventRecord
	require.NoError(t, h.db.Where("provider_event_id = ?", "evt_journal").First(&record).Error)
	assert.Equal(t, stripe.Provider, record.Provider)
	assert.Equal(t, "checkout.session.completed", record.EventType)
	assert.Equal(t, paymentdomain.EventKindCheckoutCompleted, record.Kind)
	assert.Equal(t, paymentdomain.OutcomeApplied, record.Outcome)
	assert.True(t, record.ReceivedAt.Equal(testNow))
	assert.NotContains(t, string(record.Payload), "jane@example.com")
	assert.Contains(t, string(record.Payload), `"customer_details":"***"`)
}

func TestInflightGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := newHarness(t, withRedis(client))
	h.seedSubscription(t, "sub_1", "user_1")
	payload := eventPayload(t, "evt_busy", "invoice.payment_failed", invoiceObject("sub_1"))

	require.NoError(t, mr.Set(inflightKeyPrefix+"evt_busy", "other-delivery"))
	_, err := h.deliver(t, payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventInFlight)
	assert.Equal(t, subscriptiondomain.StatusActive, h.subscription(t, "sub_1").Status)
	assert.Equal(t, int64(0), h.count(t, &paymentdomain.EventRecord{}))

	mr.Del(inflightKeyPrefix + "evt_busy")
	result, err := h.deliver(t, payload)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeApplied, result.Outcome)
	assert.False(t, mr.Exists(inflightKeyPrefix+"evt_busy"))
	assert.Equal(t, subscriptiondomain.StatusPastDue, h.subscription(t, "sub_1").Status)
}

func TestInflightGuardFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := newHarness(t, withRedis(client))
	result, err := h.deliver(t, eventPayload(t, "evt_open", "charge.refunded", map[string]any{"id": "ch_1"}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeIgnored, result.Outcome)
}

func TestMaskPayload(t *testing.T) {
	raw := `{"card": "4242", "user": {"billing_details": "secret"}, "items": [{"payment_method_details": {"x": 1}}], "other": "ok"}`
	masked := maskPayload([]byte(raw))

	var output map[string]any
	require.NoError(t, json.Unmarshal(masked, &output))

	assert.Equal(t, "***", output["card"])
	assert.Equal(t, "ok", output["other"])

	user, _ := output["user"].(map[string]any)
	assert.Equal(t, "***", user["billing_details"])

	items, _ := output["items"].([]any)
	require.Len(t, items, 1)
	item, _ := items[0].(map[string]any)
	assert.Equal(t, "***", item["payment_method_details"])

	assert.Equal(t, "{}", string(maskPayload([]byte("not json"))))
}
