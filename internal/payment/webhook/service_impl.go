package webhook

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/medilink/medilink/internal/clock"
	"github.com/medilink/medilink/internal/config"
	customerdomain "github.com/medilink/medilink/internal/customer/domain"
	notificationdomain "github.com/medilink/medilink/internal/notification/domain"
	orderdomain "github.com/medilink/medilink/internal/order/domain"
	"github.com/medilink/medilink/internal/payment/adapters/stripe"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	productdomain "github.com/medilink/medilink/internal/product/domain"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Cfg           config.Config
	Clock         clock.Clock
	GenID         *snowflake.Node
	Verifier      paymentdomain.EventVerifier
	Fetcher       paymentdomain.SubscriptionFetcher
	Subscriptions subscriptiondomain.Repository
	Orders        orderdomain.Repository
	Products      productdomain.Repository
	Customers     customerdomain.Repository
	Notifications notificationdomain.Sink
	Redis         *redis.Client         `optional:"true"`
	Registerer    prometheus.Registerer `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	genID         *snowflake.Node
	verifier      paymentdomain.EventVerifier
	fetcher       paymentdomain.SubscriptionFetcher
	subscriptions subscriptiondomain.Repository
	orders        orderdomain.Repository
	products      productdomain.Repository
	customers     customerdomain.Repository
	notifications notificationdomain.Sink
	guard         *inflightGuard
	metrics       *metrics
	dedupeOrders  bool
}

func NewService(p Params) *Service {
	log := p.Log.Named("payment.webhook")
	ttl := p.Cfg.Payment.InflightTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Service{
		db:            p.DB,
		log:           log,
		clock:         p.Clock,
		genID:         p.GenID,
		verifier:      p.Verifier,
		fetcher:       p.Fetcher,
		subscriptions: p.Subscriptions,
		orders:        p.Orders,
		products:      p.Products,
		customers:     p.Customers,
		notifications: p.Notifications,
		guard:         &inflightGuard{client: p.Redis, ttl: ttl, log: log},
		metrics:       newMetrics(p.Registerer),
		dedupeOrders:  p.Cfg.Payment.DedupeOrders,
	}
}

// IngestWebhook verifies one Stripe delivery and reconciles local state with it. A nil error
// means the delivery should be acknowledged, including when nothing was changed.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) (paymentdomain.Result, error) {
	event, err := s.verifier.VerifyEvent(payload, signature)
	if err != nil {
		s.metrics.observe(paymentdomain.EventKindUnknown, "rejected", time.Time{})
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			s.log.Warn("webhook signature rejected", zap.Int("payload_size", len(payload)))
		} else {
			s.log.Warn("webhook payload rejected", zap.Error(err))
		}
		return paymentdomain.Result{}, err
	}

	result := paymentdomain.Result{EventID: event.ID, Type: event.Type, Kind: event.Kind}

	release, err := s.guard.claim(ctx, event.ID, uuid.NewString())
	if err != nil {
		s.metrics.observe(event.Kind, "in_flight", time.Time{})
		s.log.Info("webhook event already in flight", zap.String("event_id", event.ID))
		return result, err
	}
	defer release()

	started := time.Now()
	receivedAt := s.clock.Now(ctx)
	s.log.Info("processing webhook",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("kind", string(event.Kind)))

	outcome, procErr := s.dispatch(ctx, event)
	if procErr != nil {
		outcome = paymentdomain.OutcomeFailed
	}
	s.journal(ctx, event, payload, outcome, procErr, receivedAt)
	s.metrics.observe(event.Kind, string(outcome), started)

	if procErr != nil {
		s.log.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(procErr))
		return result, procErr
	}

	result.Outcome = outcome
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event *paymentdomain.Event) (paymentdomain.Outcome, error) {
	if event.DecodeError != "" {
		return s.skip(event, "event object could not be decoded", zap.String("decode_error", event.DecodeError))
	}
	switch event.Kind {
	case paymentdomain.EventKindCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case paymentdomain.EventKindSubscriptionUpdated, paymentdomain.EventKindSubscriptionDeleted:
		return s.handleSubscriptionChanged(ctx, event)
	case paymentdomain.EventKindInvoicePaymentSucceeded:
		return s.handleInvoicePaid(ctx, event)
	case paymentdomain.EventKindInvoicePaymentFailed:
		return s.handleInvoiceFailed(ctx, event)
	default:
		s.log.Debug("webhook event ignored",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		return paymentdomain.OutcomeIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *paymentdomain.Event) (paymentdomain.Outcome, error) {
	session := event.Checkout
	if session == nil {
		return s.skip(event, "missing checkout session")
	}
	switch session.Mode {
	case paymentdomain.CheckoutModeSubscription:
		return s.activateSubscription(ctx, event, session)
	case paymentdomain.CheckoutModePayment:
		return s.placeOrder(ctx, event, session)
	default:
		return s.skip(event, "unsupported checkout mode", zap.String("mode", string(session.Mode)))
	}
}

func (s *Service) activateSubscription(ctx context.Context, event *paymentdomain.Event, session *paymentdomain.CheckoutSession) (paymentdomain.Outcome, error) {
	userID := strings.TrimSpace(session.Meta(paymentdomain.MetadataUserID))
	if userID == "" {
		return s.skip(event, "checkout metadata missing user id")
	}
	if session.SubscriptionID == "" {
		return s.skip(event, "checkout session missing subscription reference")
	}
	tier, err := subscriptiondomain.ParseTier(session.Meta(paymentdomain.MetadataTier))
	if err != nil {
		return s.skip(event, "checkout metadata has invalid tier", zap.String("tier", session.Meta(paymentdomain.MetadataTier)))
	}
	period, err := subscriptiondomain.ParseBillingPeriod(session.Meta(paymentdomain.MetadataPeriod))
	if err != nil {
		return s.skip(event, "checkout metadata has invalid period", zap.String("period", session.Meta(paymentdomain.MetadataPeriod)))
	}

	existing, err := s.subscriptions.FindByStripeID(ctx, s.db, session.SubscriptionID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return paymentdomain.OutcomeDuplicate, nil
	}

	remote, err := s.fetcher.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return "", err
	}
	status := subscriptiondomain.Status(remote.Status)
	s.warnUnknownStatus(status, remote.ID)

	customerID := remote.CustomerID
	if customerID == "" {
		customerID = session.CustomerID
	}
	now := s.clock.Now(ctx)
	sub := &subscriptiondomain.Subscription{
		ID:                   s.genID.Generate(),
		UserID:               userID,
		StripeSubscriptionID: session.SubscriptionID,
		StripeCustomerID:     customerID,
		Tier:                 tier,
		Status:               status,
		BillingPeriod:        period,
		CurrentPeriodStart:   remote.CurrentPeriodStart,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CancelAtPeriodEnd:    remote.CancelAtPeriodEnd,
		CanceledAt:           remote.CanceledAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	outcome := paymentdomain.OutcomeApplied
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.subscriptions.InsertIfAbsent(ctx, tx, sub)
		if err != nil {
			return err
		}
		if !created {
			outcome = paymentdomain.OutcomeDuplicate
			return nil
		}
		_, err = s.notifications.Create(ctx, tx, notificationdomain.CreateInput{
			UserID:  userID,
			Type:    notificationdomain.TypeSubscriptionUpdate,
			Title:   "Subscription Activated",
			Message: "Your " + string(tier) + " subscription is now active.",
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if outcome == paymentdomain.OutcomeApplied {
		s.log.Info("subscription activated",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID),
			zap.String("stripe_subscription_id", sub.StripeSubscriptionID),
			zap.String("tier", string(tier)))
	}
	return outcome, nil
}

func (s *Service) placeOrder(ctx context.Context, event *paymentdomain.Event, session *paymentdomain.CheckoutSession) (paymentdomain.Outcome, error) {
	userID := strings.TrimSpace(session.Meta(paymentdomain.MetadataUserID))
	if userID == "" {
		return s.skip(event, "checkout metadata missing user id")
	}
	rawProductID := strings.TrimSpace(session.Meta(paymentdomain.MetadataProductID))
	if rawProductID == "" {
		return s.skip(event, "checkout metadata missing product id")
	}
	productID, err := snowflake.ParseString(rawProductID)
	if err != nil {
		return s.skip(event, "checkout metadata has invalid product id", zap.String("product_id", rawProductID))
	}
	quantity := 1
	if raw := strings.TrimSpace(session.Meta(paymentdomain.MetadataQuantity)); raw != "" {
		quantity, err = strconv.Atoi(raw)
		if err != nil || quantity < 1 {
			return s.skip(event, "checkout metadata has invalid quantity", zap.String("quantity", raw))
		}
	}

	if s.dedupeOrders && session.ID != "" {
		existing, err := s.orders.FindByCheckoutSessionID(ctx, s.db, session.ID)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return paymentdomain.OutcomeDuplicate, nil
		}
	}

	product, err := s.products.FindByID(ctx, s.db, productID)
	if err != nil {
		return "", err
	}
	if product == nil || !product.IsActive {
		return s.skip(event, "checkout references missing or inactive product", zap.String("product_id", rawProductID))
	}

	address, err := s.customers.FirstShippingAddress(ctx, s.db, userID)
	if err != nil {
		return "", err
	}

	now := s.clock.Now(ctx)
	total := orderdomain.LineTotal(product.Price, quantity)
	currency := product.Currency
	if currency == "" {
		currency = session.Currency
	}
	order := &orderdomain.Order{
		ID:                      s.genID.Generate(),
		UserID:                  userID,
		StripePaymentIntentID:   session.PaymentIntentID,
		StripeCheckoutSessionID: session.ID,
		TotalAmount:             total,
		Currency:                currency,
		Status:                  orderdomain.StatusPending,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if address != nil {
		addressID := address.ID
		order.ShippingAddressID = &addressID
	}
	items := []orderdomain.OrderItem{{
		ID:         s.genID.Generate(),
		ProductID:  product.ID,
		Quantity:   quantity,
		UnitPrice:  product.Price,
		TotalPrice: total,
		CreatedAt:  now,
	}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.Insert(ctx, tx, order, items); err != nil {
			return err
		}
		orderID := order.ID
		_, err := s.notifications.Create(ctx, tx, notificationdomain.CreateInput{
			UserID:         userID,
			Type:           notificationdomain.TypeOrderUpdate,
			Title:          "Order Placed",
			Message:        "Your order for " + strconv.Itoa(quantity) + " x " + product.Name + " has been placed.",
			RelatedOrderID: &orderID,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.Info("order placed",
		zap.String("event_id", event.ID),
		zap.String("user_id", userID),
		zap.String("order_id", order.ID.String()),
		zap.String("total", total.StringFixed(2)))
	return paymentdomain.OutcomeApplied, nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, event *paymentdomain.Event) (paymentdomain.Outcome, error) {
	remote := event.Subscription
	if remote == nil || remote.ID == "" {
		return s.skip(event, "missing subscription object")
	}

	outcome := paymentdomain.OutcomeApplied
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		local, err := s.subscriptions.FindByStripeID(ctx, tx, remote.ID)
		if err != nil {
			return err
		}
		if local == nil {
			outcome = paymentdomain.OutcomeSkipped
			return nil
		}

		status := subscriptiondomain.Status(remote.Status)
		s.warnUnknownStatus(status, remote.ID)
		if err := s.subscriptions.UpdateRemoteState(ctx, tx, remote.ID, subscriptiondomain.RemoteState{
			Status:             status,
			CurrentPeriodStart: remote.CurrentPeriodStart,
			CurrentPeriodEnd:   remote.CurrentPeriodEnd,
			CancelAtPeriodEnd:  remote.CancelAtPeriodEnd,
			CanceledAt:         remote.CanceledAt,
		}, s.clock.Now(ctx)); err != nil {
			return err
		}

		var title, message string
		switch {
		case event.Kind == paymentdomain.EventKindSubscriptionDeleted:
			title, message = "Subscription Canceled", "Your subscription has been canceled."
		case remote.CancelAtPeriodEnd:
			title, message = "Subscription Will Cancel", "Your subscription will cancel at the end of the current billing period."
		default:
			return nil
		}
		_, err = s.notifications.Create(ctx, tx, notificationdomain.CreateInput{
			UserID:  local.UserID,
			Type:    notificationdomain.TypeSubscriptionUpdate,
			Title:   title,
			Message: message,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if outcome == paymentdomain.OutcomeSkipped {
		s.log.Info("no local subscription for event",
			zap.String("event_id", event.ID),
			zap.String("stripe_subscription_id", remote.ID))
	}
	return outcome, nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, event *paymentdomain.Event) (paymentdomain.Outcome, error) {
	invoice := event.Invoice
	if invoice == nil || invoice.SubscriptionID == "" {
		return s.skip(event, "invoice has no subscription reference")
	}
	if invoice.PeriodStart == nil || invoice.PeriodEnd == nil {
		return s.skip(event, "invoice has no billing period")
	}

	local, err := s.subscriptions.FindByStripeID(ctx, s.db, invoice.SubscriptionID)
	if err != nil {
		return "", err
	}
	if local == nil {
		return s.skip(event, "no local subscription for invoice", zap.String("stripe_subscription_id", invoice.SubscriptionID))
	}

	if err := s.subscriptions.UpdatePeriod(ctx, s.db, invoice.SubscriptionID, invoice.PeriodStart, invoice.PeriodEnd, s.clock.Now(ctx)); err != nil {
		return "", err
	}
	return paymentdomain.OutcomeApplied, nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, event *paymentdomain.Event) (paymentdomain.Outcome, error) {
	invoice := event.Invoice
	if invoice == nil || invoice.SubscriptionID == "" {
		return s.skip(event, "invoice has no subscription reference")
	}

	outcome := paymentdomain.OutcomeApplied
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		local, err := s.subscriptions.FindByStripeID(ctx, tx, invoice.SubscriptionID)
		if err != nil {
			return err
		}
		if local == nil {
			outcome = paymentdomain.OutcomeSkipped
			return nil
		}
		if err := s.subscriptions.UpdateStatus(ctx, tx, invoice.SubscriptionID, subscriptiondomain.StatusPastDue, s.clock.Now(ctx)); err != nil {
			return err
		}
		_, err = s.notifications.Create(ctx, tx, notificationdomain.CreateInput{
			UserID:  local.UserID,
			Type:    notificationdomain.TypeSubscriptionUpdate,
			Title:   "Payment Failed",
			Message: "We could not process your latest subscription payment. Please update your payment method.",
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Service) skip(event *paymentdomain.Event, reason string, fields ...zap.Field) (paymentdomain.Outcome, error) {
	s.log.Warn("webhook event skipped: "+reason, append([]zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	}, fields...)...)
	return paymentdomain.OutcomeSkipped, nil
}

func (s *Service) warnUnknownStatus(status subscriptiondomain.Status, stripeSubscriptionID string) {
	if !status.Known() {
		s.log.Warn("unrecognized subscription status stored as received",
			zap.String("status", string(status)),
			zap.String("stripe_subscription_id", stripeSubscriptionID))
	}
}

// journal records the delivery for audit. Failures are logged only.
func (s *Service) journal(ctx context.Context, event *paymentdomain.Event, payload []byte, outcome paymentdomain.Outcome, procErr error, receivedAt time.Time) {
	processedAt := s.clock.Now(ctx)
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        stripe.Provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Kind:            event.Kind,
		Outcome:         outcome,
		Payload:         datatypes.JSON(maskPayload(payload)),
		ReceivedAt:      receivedAt,
		ProcessedAt:     &processedAt,
	}
	if procErr != nil {
		msg := procErr.Error()
		record.Error = &msg
	}
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(record).Error; err != nil {
		s.log.Error("failed to journal webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
