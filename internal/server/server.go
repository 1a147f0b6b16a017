package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medilink/medilink/internal/config"
	notificationdomain "github.com/medilink/medilink/internal/notification/domain"
	orderdomain "github.com/medilink/medilink/internal/order/domain"
	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	subscriptiondomain "github.com/medilink/medilink/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(RunHTTP),
)

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	DB            *gorm.DB
	Registry      *prometheus.Registry
	Webhooks      paymentdomain.WebhookService
	Checkout      paymentdomain.CheckoutService
	Subscriptions subscriptiondomain.Repository
	Orders        orderdomain.Repository
	Notifications notificationdomain.Service
}

type Server struct {
	cfg           config.Config
	log           *zap.Logger
	db            *gorm.DB
	registry      *prometheus.Registry
	webhooks      paymentdomain.WebhookService
	checkout      paymentdomain.CheckoutService
	subscriptions subscriptiondomain.Repository
	orders        orderdomain.Repository
	notifications notificationdomain.Service
	engine        *gin.Engine
}

func New(p Params) *Server {
	if !p.Cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		db:            p.DB,
		registry:      p.Registry,
		webhooks:      p.Webhooks,
		checkout:      p.Checkout,
		subscriptions: p.Subscriptions,
		orders:        p.Orders,
		notifications: p.Notifications,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(engine)
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", s.Metrics())

	api := r.Group("/api")
	api.POST("/webhooks/stripe", s.HandleStripeWebhook)

	user := api.Group("", s.RequireIdentity())
	user.POST("/checkout/subscription", s.CreateSubscriptionCheckout)
	user.POST("/checkout/product", s.CreateProductCheckout)
	user.GET("/subscription", s.GetSubscription)
	user.GET("/orders", s.ListOrders)
	user.GET("/orders/:id", s.GetOrder)
	user.GET("/notifications", s.ListNotifications)
	user.POST("/notifications/:id/read", s.MarkNotificationRead)
}

// RunHTTP binds the listener on start and drains in-flight requests on stop.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.log.Warn("http request", fields...)
			return
		}
		s.log.Debug("http request", fields...)
	}
}
