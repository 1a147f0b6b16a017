package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/medilink/medilink/internal/clock"
	"github.com/medilink/medilink/internal/config"
	customerdomain "github.com/medilink/medilink/internal/customer/domain"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	productdomain "github.com/medilink/medilink/internal/product/domain"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxProductQuantity = 10
	sessionPlaceholder = "{CHECKOUT_SESSION_ID}"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Cfg           config.Config
	Clock         clock.Clock
	Gateway       paymentdomain.Gateway
	Customers     customerdomain.Repository
	Products      productdomain.Repository
	Subscriptions subscriptiondomain.Repository
}

// Service starts Stripe checkout flows. Orders and subscriptions are only written when the
// resulting webhook arrives.
type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           config.Config
	clock         clock.Clock
	gateway       paymentdomain.Gateway
	customers     customerdomain.Repository
	products      productdomain.Repository
	subscriptions subscriptiondomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.checkout"),
		cfg:           p.Cfg,
		clock:         p.Clock,
		gateway:       p.Gateway,
		customers:     p.Customers,
		products:      p.Products,
		subscriptions: p.Subscriptions,
	}
}

func (s *Service) CreateSubscriptionCheckout(ctx context.Context, input paymentdomain.SubscriptionCheckoutInput) (*paymentdomain.CheckoutSessionResult, error) {
	buyer, err := normalizeBuyer(input.Buyer)
	if err != nil {
		return nil, err
	}
	tier, err := subscriptiondomain.ParseTier(input.Tier)
	if err != nil {
		return nil, err
	}
	period, err := subscriptiondomain.ParseBillingPeriod(input.Period)
	if err != nil {
		return nil, err
	}
	priceID, ok := s.cfg.Stripe.PriceID(string(tier), string(period))
	if !ok {
		return nil, paymentdomain.ErrPriceNotConfigured
	}

	active, err := s.subscriptions.FindActiveByUserID(ctx, s.db, buyer.UserID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, paymentdomain.ErrSubscriptionExists
	}

	customerID, err := s.ensureCustomer(ctx, buyer)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionInput{
		Mode:       paymentdomain.CheckoutModeSubscription,
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.url("/subscription/success?session_id=" + sessionPlaceholder),
		CancelURL:  s.url("/pricing"),
		Metadata: map[string]string{
			paymentdomain.MetadataUserID: buyer.UserID,
			paymentdomain.MetadataTier:   string(tier),
			paymentdomain.MetadataPeriod: string(period),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription checkout created",
		zap.String("user_id", buyer.UserID),
		zap.String("tier", string(tier)),
		zap.String("period", string(period)),
		zap.String("session_id", session.ID))
	return session, nil
}

func (s *Service) CreateProductCheckout(ctx context.Context, input paymentdomain.ProductCheckoutInput) (*paymentdomain.CheckoutSessionResult, error) {
	buyer, err := normalizeBuyer(input.Buyer)
	if err != nil {
		return nil, err
	}
	if input.Quantity < 1 || input.Quantity > maxProductQuantity {
		return nil, paymentdomain.ErrInvalidQuantity
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(input.ProductID))
	if err != nil {
		return nil, productdomain.ErrInvalidID
	}

	product, err := s.products.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, productdomain.ErrNotFound
	}
	if !product.IsActive {
		return nil, productdomain.ErrInactive
	}

	customerID, err := s.ensureCustomer(ctx, buyer)
	if err != nil {
		return nil, err
	}

	currency := product.Currency
	if currency == "" {
		currency = s.cfg.Stripe.Currency
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionInput{
		Mode:       paymentdomain.CheckoutModePayment,
		CustomerID: customerID,
		LineItem: &paymentdomain.ProductLineItem{
			Name:       product.Name,
			UnitAmount: product.Price.Shift(2).Round(0).IntPart(),
			Currency:   strings.ToLower(currency),
			Quantity:   int64(input.Quantity),
		},
		SuccessURL: s.url("/orders/success?session_id=" + sessionPlaceholder),
		CancelURL:  s.url("/shop"),
		Metadata: map[string]string{
			paymentdomain.MetadataUserID:    buyer.UserID,
			paymentdomain.MetadataProductID: product.ID.String(),
			paymentdomain.MetadataQuantity:  strconv.Itoa(input.Quantity),
		},
		ShippingCountries: s.cfg.Stripe.ShippingCountries,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product checkout created",
		zap.String("user_id", buyer.UserID),
		zap.String("product_id", product.ID.String()),
		zap.Int("quantity", input.Quantity),
		zap.String("session_id", session.ID))
	return session, nil
}

// ensureCustomer returns the user's Stripe customer, creating and recording one on first use.
func (s *Service) ensureCustomer(ctx context.Context, buyer paymentdomain.Buyer) (string, error) {
	existing, err := s.customers.FindByUserID(ctx, s.db, buyer.UserID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, paymentdomain.CustomerInput{
		UserID: buyer.UserID,
		Email:  buyer.Email,
		Name:   buyer.Name,
	})
	if err != nil {
		return "", err
	}

	now := s.clock.Now(ctx)
	created, err := s.customers.Insert(ctx, s.db, &customerdomain.Customer{
		UserID:           buyer.UserID,
		Email:            buyer.Email,
		Name:             buyer.Name,
		StripeCustomerID: customerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return "", err
	}
	if created {
		return customerID, nil
	}

	// A concurrent checkout recorded a customer first; use theirs.
	existing, err = s.customers.FindByUserID(ctx, s.db, buyer.UserID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return "", errors.New("customer_mapping_missing")
	}
	s.log.Warn("discarding duplicate stripe customer",
		zap.String("user_id", buyer.UserID),
		zap.String("customer_id", customerID))
	return existing.StripeCustomerID, nil
}

func (s *Service) url(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}

func normalizeBuyer(b paymentdomain.Buyer) (paymentdomain.Buyer, error) {
	b.UserID = strings.TrimSpace(b.UserID)
	b.Email = strings.TrimSpace(b.Email)
	b.Name = strings.TrimSpace(b.Name)
	if b.UserID == "" {
		return b, paymentdomain.ErrInvalidBuyer
	}
	return b, nil
}
