package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

type Config struct {
	AppName    string
	AppEnv     string
	AppVersion string
	BaseURL    string
	HTTPAddr   string
	// ProxyToken authenticates the upstream auth proxy that injects identity headers.
	ProxyToken string

	Database      DatabaseConfig
	Redis         RedisConfig
	Stripe        StripeConfig
	Payment       PaymentConfig
	Observability ObservabilityConfig
	Scheduler     SchedulerConfig
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type StripeConfig struct {
	APIKey            string
	WebhookSecret     string
	Currency          string
	// Prices maps "<tier>_<period>" to a Stripe price id.
	Prices            map[string]string
	ShippingCountries []string
}

type PaymentConfig struct {
	DedupeOrders bool
	InflightTTL  time.Duration
}

type ObservabilityConfig struct {
	ServiceName  string
	OTLPEndpoint string
	OTLPInsecure bool
}

type SchedulerConfig struct {
	Enabled              bool
	Interval             time.Duration
	WebhookRetentionDays int
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// PriceID returns the configured Stripe price for a tier and billing period.
func (c StripeConfig) PriceID(tier, period string) (string, bool) {
	id, ok := c.Prices[strings.ToLower(tier)+"_"+strings.ToLower(period)]
	id = strings.TrimSpace(id)
	return id, ok && id != ""
}

// Load reads configuration from an optional .env file, an optional medilink.yaml and the environment.
// Nested keys map to env vars with "." replaced by "_" (stripe.webhook_secret -> STRIPE_WEBHOOK_SECRET).
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("medilink")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/medilink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		AppName:    v.GetString("app.name"),
		AppEnv:     v.GetString("app.env"),
		AppVersion: v.GetString("app.version"),
		BaseURL:    strings.TrimRight(strings.TrimSpace(v.GetString("app.base_url")), "/"),
		HTTPAddr:   v.GetString("app.http_addr"),
		ProxyToken: strings.TrimSpace(v.GetString("app.proxy_token")),
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Stripe: StripeConfig{
			APIKey:            strings.TrimSpace(v.GetString("stripe.api_key")),
			WebhookSecret:     strings.TrimSpace(v.GetString("stripe.webhook_secret")),
			Currency:          strings.ToLower(v.GetString("stripe.currency")),
			Prices:            readPrices(v),
			ShippingCountries: readList(v, "stripe.shipping_countries"),
		},
		Payment: PaymentConfig{
			DedupeOrders: v.GetBool("payment.dedupe_orders"),
			InflightTTL:  v.GetDuration("payment.inflight_ttl"),
		},
		Observability: ObservabilityConfig{
			ServiceName:  v.GetString("observability.service_name"),
			OTLPEndpoint: v.GetString("observability.otlp_endpoint"),
			OTLPInsecure: v.GetBool("observability.otlp_insecure"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              v.GetBool("scheduler.enabled"),
			Interval:             v.GetDuration("scheduler.interval"),
			WebhookRetentionDays: v.GetInt("scheduler.webhook_retention_days"),
		},
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "medilink")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.shipping_countries", "US,CA")
	v.SetDefault("payment.dedupe_orders", false)
	v.SetDefault("payment.inflight_ttl", "2m")
	v.SetDefault("observability.service_name", "medilink")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.webhook_retention_days", 90)
}

// readPrices accepts either a yaml map or a flat "basic_monthly=price_1,basic_yearly=price_2" string,
// which is the form env vars take.
func readPrices(v *viper.Viper) map[string]string {
	out := map[string]string{}
	if raw := strings.TrimSpace(v.GetString("stripe.prices")); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok {
				continue
			}
			out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
		return out
	}
	for key, value := range v.GetStringMapString("stripe.prices") {
		out[strings.ToLower(key)] = value
	}
	return out
}

func readList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range strings.Split(v.GetString(key), ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
