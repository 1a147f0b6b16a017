package domain

import (
	"context"
	"errors"
)

type WebhookService interface {
	IngestWebhook(ctx context.Context, payload []byte, signature string) (Result, error)
}

type CheckoutService interface {
	CreateSubscriptionCheckout(ctx context.Context, input SubscriptionCheckoutInput) (*CheckoutSessionResult, error)
	CreateProductCheckout(ctx context.Context, input ProductCheckoutInput) (*CheckoutSessionResult, error)
}

type Buyer struct {
	UserID string
	Email  string
	Name   string
}

type SubscriptionCheckoutInput struct {
	Buyer  Buyer
	Tier   string
	Period string
}

type ProductCheckoutInput struct {
	Buyer     Buyer
	ProductID string
	Quantity  int
}

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrEventInFlight        = errors.New("event_in_flight")
	ErrRemoteNotFound       = errors.New("remote_not_found")
	ErrGatewayNotConfigured = errors.New("gateway_not_configured")
	ErrPriceNotConfigured   = errors.New("price_not_configured")
	ErrSubscriptionExists   = errors.New("subscription_exists")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidBuyer         = errors.New("invalid_buyer")
)
