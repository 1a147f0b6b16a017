package domain

import "time"

// EventKind is the closed set of gateway events the reconciler reacts to.
type EventKind string

const (
	EventKindCheckoutCompleted       EventKind = "checkout_completed"
	EventKindSubscriptionUpdated     EventKind = "subscription_updated"
	EventKindSubscriptionDeleted     EventKind = "subscription_deleted"
	EventKindInvoicePaymentSucceeded EventKind = "invoice_payment_succeeded"
	EventKindInvoicePaymentFailed    EventKind = "invoice_payment_failed"
	EventKindUnknown                 EventKind = "unknown"
)

type CheckoutMode string

const (
	CheckoutModeSubscription CheckoutMode = "subscription"
	CheckoutModePayment      CheckoutMode = "payment"
)

// Metadata keys attached to checkout sessions and echoed back on completion.
const (
	MetadataUserID    = "userId"
	MetadataTier      = "tier"
	MetadataPeriod    = "period"
	MetadataProductID = "productId"
	MetadataQuantity  = "quantity"
)

// Event is a verified gateway event. Exactly one payload pointer is set for known kinds;
// none is set for EventKindUnknown.
type Event struct {
	ID      string
	Type    string
	Kind    EventKind
	Created time.Time

	Checkout     *CheckoutSession
	Subscription *RemoteSubscription
	Invoice      *Invoice

	// DecodeError is set when the signature verified but the object did not decode. The
	// payload fields stay nil.
	DecodeError string
}

type CheckoutSession struct {
	ID              string
	Mode            CheckoutMode
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
}

// RemoteSubscription is the gateway's authoritative view of a subscription.
type RemoteSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

type Invoice struct {
	ID             string
	SubscriptionID string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

func (c *CheckoutSession) Meta(key string) string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}
