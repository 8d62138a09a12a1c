package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("URL", "")

	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.True(t, cfg.PriceAmount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "brl", cfg.PriceCurrency)
	assert.Equal(t, time.Second, cfg.ProcessingDelay)
	assert.Equal(t, 5*time.Second, cfg.GatewayTimeout)
	assert.Zero(t, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.PipelineWorkers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("URL", "https://skill.example.com/")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_1")
	t.Setenv("PRICE_AMOUNT", "19.90")
	t.Setenv("PRICE_CURRENCY", "USD")
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("PROCESSING_DELAY", "250ms")
	t.Setenv("PIPELINE_WORKERS", "0")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://skill.example.com", cfg.BaseURL)
	assert.Equal(t, "sk_test_1", cfg.StripeSecretKey)
	assert.Equal(t, "whsec_1", cfg.StripeWebhookSecret)
	assert.True(t, cfg.PriceAmount.Equal(decimal.RequireFromString("19.9")))
	assert.Equal(t, "usd", cfg.PriceCurrency)
	assert.Equal(t, "redis", cfg.SessionStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.ProcessingDelay)
	assert.Equal(t, 1, cfg.PipelineWorkers)
}

func TestLoad_InvalidAmountFallsBack(t *testing.T) {
	t.Setenv("PRICE_AMOUNT", "ten")

	cfg := Load()

	assert.True(t, cfg.PriceAmount.Equal(decimal.NewFromInt(10)))
}
