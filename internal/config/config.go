package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port    string
	BaseURL string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePublicKey     string
	StripePriceID       string
	PriceAmount         decimal.Decimal
	PriceCurrency       string

	JWTSecret string

	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	TracerEndpoint string

	SessionStore    string
	SessionTTL      time.Duration
	ProcessingDelay time.Duration
	GatewayTimeout  time.Duration
	PipelineWorkers int
}

// Load reads configuration from the environment, falling back to a .env file
// in the working directory when present.
func Load() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("URL", "http://localhost:3000")
	v.SetDefault("STRIPE_PRICE_ID", "price_1QBb7AB3BGwI4SEkQnXMSlFf")
	v.SetDefault("PRICE_AMOUNT", "10.00")
	v.SetDefault("PRICE_CURRENCY", "brl")
	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("SESSION_TTL", "0s")
	v.SetDefault("PROCESSING_DELAY", "1s")
	v.SetDefault("GATEWAY_TIMEOUT", "5s")
	v.SetDefault("PIPELINE_WORKERS", 4)

	amount, err := decimal.NewFromString(v.GetString("PRICE_AMOUNT"))
	if err != nil {
		amount = decimal.RequireFromString("10.00")
	}

	workers := v.GetInt("PIPELINE_WORKERS")
	if workers <= 0 {
		workers = 1
	}

	return &Config{
		Port:    v.GetString("PORT"),
		BaseURL: strings.TrimRight(v.GetString("URL"), "/"),

		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		StripePublicKey:     v.GetString("STRIPE_PUBLIC_KEY"),
		StripePriceID:       v.GetString("STRIPE_PRICE_ID"),
		PriceAmount:         amount,
		PriceCurrency:       strings.ToLower(v.GetString("PRICE_CURRENCY")),

		JWTSecret: v.GetString("JWT_SECRET"),

		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		KafkaBrokers:   v.GetString("KAFKA_BROKERS"),
		NatsURL:        v.GetString("NATS_URL"),
		TracerEndpoint: v.GetString("OTEL_EXPORTER_ENDPOINT"),

		SessionStore:    strings.ToLower(v.GetString("SESSION_STORE")),
		SessionTTL:      v.GetDuration("SESSION_TTL"),
		ProcessingDelay: v.GetDuration("PROCESSING_DELAY"),
		GatewayTimeout:  v.GetDuration("GATEWAY_TIMEOUT"),
		PipelineWorkers: workers,
	}
}
