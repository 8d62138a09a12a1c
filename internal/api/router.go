package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/skill-check/internal/handlers"
	"github.com/akylbek/payment-system/skill-check/internal/middleware"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

func NewRouter(sessionHandler *handlers.SessionHandler, webhookHandler *handlers.WebhookHandler, redisClient *redis.Client) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "skill-check"})
	})

	// Checkout
	idempotency := middleware.IdempotencyMiddleware(redisClient)
	r.POST("/checkout", idempotency, sessionHandler.CreateCheckout)
	r.POST("/create-checkout-session", idempotency, sessionHandler.CreateCheckout)
	r.GET("/checkout/config", sessionHandler.CheckoutConfig)

	// Status polling and result
	r.GET("/status/:sessionKey", sessionHandler.GetStatus)
	r.GET("/api/payment-status/:sessionKey", sessionHandler.GetStatus)
	r.GET("/skill-check", sessionHandler.SkillCheck)
	r.GET("/unlock/:sessionKey", sessionHandler.GetUnlockToken)

	// Gateway notifications
	r.POST("/webhook", webhookHandler.HandleStripe)
	r.POST("/webhook/stripe", webhookHandler.HandleStripe)

	// Debug reads
	r.GET("/admin/sessions", sessionHandler.ListSessions)
	r.GET("/session/:sessionKey", sessionHandler.GetSession)

	return r
}
