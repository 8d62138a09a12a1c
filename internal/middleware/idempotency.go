package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/skill-check/internal/models"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	IdempotencyCtxKey = "idempotency_key"
)

func IdempotencyCacheKey(key string) string {
	return fmt.Sprintf("idempotency:checkout:%s", key)
}

// IdempotencyMiddleware replays the checkout response previously cached for the
// request's Idempotency-Key. The header is optional; without it, or without
// Redis, every request starts a new checkout.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || redisClient == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		cached, err := redisClient.Get(ctx, IdempotencyCacheKey(key)).Result()
		if err == nil {
			var resp models.CheckoutResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				c.JSON(http.StatusOK, resp)
				c.Abort()
				return
			}
		}

		c.Set(IdempotencyCtxKey, key)
		c.Next()
	}
}
