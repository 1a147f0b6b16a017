package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medilink/medilink/internal/config"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const Provider = "stripe"

// Adapter talks to Stripe through stripe-go. A zero API key disables the outbound calls but
// keeps webhook verification working.
type Adapter struct {
	webhookSecret string
	api           *client.API
	log           *zap.Logger
}

// New builds an adapter with the default Stripe backends.
func New(cfg config.Config, log *zap.Logger) *Adapter {
	return NewWithBackends(cfg.Stripe, nil, log)
}

// NewWithBackends lets callers point the client at a different API backend.
func NewWithBackends(cfg config.StripeConfig, backends *stripego.Backends, log *zap.Logger) *Adapter {
	a := &Adapter{
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		log:           log.Named("payment.stripe"),
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		a.api = &client.API{}
		a.api.Init(key, backends)
	}
	return a
}

func (a *Adapter) VerifyEvent(payload []byte, signature string) (*paymentdomain.Event, error) {
	signature = strings.TrimSpace(signature)
	if a.webhookSecret == "" || signature == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, a.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, paymentdomain.ErrInvalidSignature
		}
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	return mapEvent(event), nil
}

// mapEvent never fails on a verified event: an object that does not decode is reported through
// DecodeError so the delivery can be journaled and acknowledged.
func mapEvent(event stripego.Event) *paymentdomain.Event {
	out := &paymentdomain.Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Kind:    paymentdomain.EventKindUnknown,
		Created: unixTime(event.Created),
	}
	if event.Data == nil {
		return out
	}

	switch event.Type {
	case "checkout.session.completed":
		out.Kind = paymentdomain.EventKindCheckoutCompleted
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			out.DecodeError = "checkout session: " + err.Error()
			return out
		}
		out.Checkout = mapCheckoutSession(&session)
	case "customer.subscription.updated", "customer.subscription.deleted":
		out.Kind = paymentdomain.EventKindSubscriptionUpdated
		if event.Type == "customer.subscription.deleted" {
			out.Kind = paymentdomain.EventKindSubscriptionDeleted
		}
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			out.DecodeError = "subscription: " + err.Error()
			return out
		}
		out.Subscription = mapSubscription(&sub)
	case "invoice.payment_succeeded", "invoice.payment_failed":
		out.Kind = paymentdomain.EventKindInvoicePaymentSucceeded
		if event.Type == "invoice.payment_failed" {
			out.Kind = paymentdomain.EventKindInvoicePaymentFailed
		}
		var invoice stripego.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			out.DecodeError = "invoice: " + err.Error()
			return out
		}
		out.Invoice = mapInvoice(&invoice)
	}
	return out
}

func mapCheckoutSession(s *stripego.CheckoutSession) *paymentdomain.CheckoutSession {
	out := &paymentdomain.CheckoutSession{
		ID:          s.ID,
		Mode:        paymentdomain.CheckoutMode(s.Mode),
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
		Metadata:    s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

func mapSubscription(s *stripego.Subscription) *paymentdomain.RemoteSubscription {
	out := &paymentdomain.RemoteSubscription{
		ID:                 s.ID,
		Status:             string(s.Status),
		CurrentPeriodStart: unixTimePtr(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTimePtr(s.CurrentPeriodEnd),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         unixTimePtr(s.CanceledAt),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

// mapInvoice prefers the first line's service period; the invoice-level bounds describe the
// billing window, which lags the subscription period by one cycle.
func mapInvoice(inv *stripego.Invoice) *paymentdomain.Invoice {
	out := &paymentdomain.Invoice{
		ID:          inv.ID,
		PeriodStart: unixTimePtr(inv.PeriodStart),
		PeriodEnd:   unixTimePtr(inv.PeriodEnd),
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0] != nil && inv.Lines.Data[0].Period != nil {
		period := inv.Lines.Data[0].Period
		if period.Start > 0 && period.End > 0 {
			out.PeriodStart = unixTimePtr(period.Start)
			out.PeriodEnd = unixTimePtr(period.End)
		}
	}
	return out
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*paymentdomain.RemoteSubscription, error) {
	if a.api == nil {
		return nil, paymentdomain.ErrGatewayNotConfigured
	}
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, paymentdomain.ErrRemoteNotFound
	}

	sub, err := a.api.Subscriptions.Get(subscriptionID, &stripego.SubscriptionParams{
		Params: stripego.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapError("get subscription", err)
	}
	return mapSubscription(sub), nil
}

func (a *Adapter) CreateCustomer(ctx context.Context, input paymentdomain.CustomerInput) (string, error) {
	if a.api == nil {
		return "", paymentdomain.ErrGatewayNotConfigured
	}

	params := &stripego.CustomerParams{
		Params: stripego.Params{Context: ctx},
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		params.Email = stripego.String(email)
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		params.Name = stripego.String(name)
	}
	params.AddMetadata(paymentdomain.MetadataUserID, input.UserID)

	cust, err := a.api.Customers.New(params)
	if err != nil {
		return "", wrapError("create customer", err)
	}
	a.log.Info("stripe customer created", zap.String("user_id", input.UserID), zap.String("customer_id", cust.ID))
	return cust.ID, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, input paymentdomain.CheckoutSessionInput) (*paymentdomain.CheckoutSessionResult, error) {
	if a.api == nil {
		return nil, paymentdomain.ErrGatewayNotConfigured
	}

	params := &stripego.CheckoutSessionParams{
		Params:     stripego.Params{Context: ctx},
		Mode:       stripego.String(string(input.Mode)),
		SuccessURL: stripego.String(input.SuccessURL),
		CancelURL:  stripego.String(input.CancelURL),
	}
	if input.CustomerID != "" {
		params.Customer = stripego.String(input.CustomerID)
	}
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	switch input.Mode {
	case paymentdomain.CheckoutModeSubscription:
		if input.PriceID == "" {
			return nil, paymentdomain.ErrPriceNotConfigured
		}
		params.LineItems = []*stripego.CheckoutSessionLineItemParams{{
			Price:    stripego.String(input.PriceID),
			Quantity: stripego.Int64(1),
		}}
		params.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: input.Metadata,
		}
	case paymentdomain.CheckoutModePayment:
		item := input.LineItem
		if item == nil || item.Quantity <= 0 {
			return nil, paymentdomain.ErrInvalidQuantity
		}
		params.LineItems = []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(item.Currency),
				UnitAmount: stripego.Int64(item.UnitAmount),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(item.Name),
				},
			},
			Quantity: stripego.Int64(item.Quantity),
		}}
		if len(input.ShippingCountries) > 0 {
			params.ShippingAddressCollection = &stripego.CheckoutSessionShippingAddressCollectionParams{
				AllowedCountries: stripego.StringSlice(input.ShippingCountries),
			}
		}
	default:
		return nil, fmt.Errorf("unsupported checkout mode %q", input.Mode)
	}

	session, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapError("create checkout session", err)
	}
	return &paymentdomain.CheckoutSessionResult{ID: session.ID, URL: session.URL}, nil
}

func wrapError(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripego.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("stripe %s: %w", op, paymentdomain.ErrRemoteNotFound)
		}
		return fmt.Errorf("stripe %s: status %d: %w", op, stripeErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
