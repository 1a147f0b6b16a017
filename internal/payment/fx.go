package payment

import (
	"github.com/medilink/medilink/internal/payment/adapters/stripe"
	"github.com/medilink/medilink/internal/payment/domain"
	paymentservice "github.com/medilink/medilink/internal/payment/service"
	"github.com/medilink/medilink/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(stripe.New),
	fx.Provide(
		func(a *stripe.Adapter) domain.Gateway { return a },
		func(a *stripe.Adapter) domain.EventVerifier { return a },
		func(a *stripe.Adapter) domain.SubscriptionFetcher { return a },
	),
	fx.Provide(paymentservice.NewService),
	fx.Provide(func(s *paymentservice.Service) domain.CheckoutService { return s }),
	fx.Provide(webhook.NewService),
	fx.Provide(func(s *webhook.Service) domain.WebhookService { return s }),
)
