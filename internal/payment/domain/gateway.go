package domain

import "context"

// EventVerifier authenticates a raw webhook delivery and decodes it. It must not hand back any
// payload data when verification fails.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*RemoteSubscription, error)
}

type Gateway interface {
	EventVerifier
	SubscriptionFetcher
	CreateCustomer(ctx context.Context, input CustomerInput) (string, error)
	CreateCheckoutSession(ctx context.Context, input CheckoutSessionInput) (*CheckoutSessionResult, error)
}

type CustomerInput struct {
	UserID string
	Email  string
	Name   string
}

type CheckoutSessionInput struct {
	Mode       CheckoutMode
	CustomerID string
	// PriceID is used in subscription mode.
	PriceID string
	// LineItem is used in payment mode.
	LineItem          *ProductLineItem
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
	ShippingCountries []string
}

type ProductLineItem struct {
	Name       string
	UnitAmount int64
	Currency   string
	Quantity   int64
}

type CheckoutSessionResult struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}
