package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/checkout"
	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/middleware"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/pipeline"
	"github.com/akylbek/payment-system/skill-check/internal/repository"
	"github.com/akylbek/payment-system/skill-check/internal/status"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

type SessionHandler struct {
	checkout    *checkout.Service
	status      *status.Service
	store       interfaces.SessionStore
	tokens      interfaces.UnlockTokenStore
	redisClient *redis.Client
	publicKey   string
	// unlockSecret verifies stored unlock tokens before they are handed out.
	unlockSecret string
}

func NewSessionHandler(checkoutSvc *checkout.Service, statusSvc *status.Service, store interfaces.SessionStore,
	tokens interfaces.UnlockTokenStore, redisClient *redis.Client, publicKey, unlockSecret string) *SessionHandler {
	return &SessionHandler{
		checkout:     checkoutSvc,
		status:       statusSvc,
		store:        store,
		tokens:       tokens,
		redisClient:  redisClient,
		publicKey:    publicKey,
		unlockSecret: unlockSecret,
	}
}

func (h *SessionHandler) CreateCheckout(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)

	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Warn("Invalid checkout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.checkout.Start(ctx, req)
	if err != nil {
		telemetry.Logger.Error("Failed to create checkout session",
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	if key := c.GetString(middleware.IdempotencyCtxKey); key != "" && h.redisClient != nil {
		respJSON, _ := json.Marshal(resp)
		h.redisClient.Set(ctx, middleware.IdempotencyCacheKey(key), respJSON, 24*time.Hour)
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *SessionHandler) CheckoutConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publishableKey": h.publicKey})
}

func (h *SessionHandler) GetStatus(c *gin.Context) {
	view, err := h.status.GetStatus(c.Request.Context(), c.Param("sessionKey"))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Failed to fetch session status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session status"})
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) SkillCheck(c *gin.Context) {
	key := firstQuery(c, "sessionKey", "session_key", "session_id")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionKey is required"})
		return
	}

	session, err := h.status.SkillCheck(c.Request.Context(), key)
	var notCompleted *status.NotCompletedError
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	case errors.As(err, &notCompleted):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Payment not completed yet",
			"status": notCompleted.Status,
		})
		return
	case err != nil:
		telemetry.Logger.Error("Failed to validate payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outcome": *session.Outcome,
		"message": "Skill check revealed after payment confirmation",
	})
}

func (h *SessionHandler) GetUnlockToken(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.store.Get(ctx, c.Param("sessionKey"))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}

	token, err := h.tokens.UnlockToken(ctx, session.ID)
	if errors.Is(err, repository.ErrTokenNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No special content for this session"})
		return
	}
	if err != nil {
		telemetry.Logger.Error("Failed to fetch unlock token",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch unlock token"})
		return
	}

	claims, err := pipeline.ParseUnlockToken(h.unlockSecret, token)
	if err != nil || claims.SessionID != session.ID {
		telemetry.Logger.Warn("Stored unlock token failed verification",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "No special content for this session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": claims.ExpiresAt.Time})
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": len(sessions), "sessions": sessions})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.store.Get(c.Request.Context(), c.Param("sessionKey"))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}

	c.JSON(http.StatusOK, session)
}

func firstQuery(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.Query(name); v != "" {
			return v
		}
	}
	return ""
}
