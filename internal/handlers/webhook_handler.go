package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
	"github.com/akylbek/payment-system/skill-check/internal/webhook"
)

const SignatureHeader = "Stripe-Signature"

type WebhookHandler struct {
	verifier   *webhook.Verifier
	dispatcher *webhook.Dispatcher
}

func NewWebhookHandler(verifier *webhook.Verifier, dispatcher *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, dispatcher: dispatcher}
}

// HandleStripe acknowledges every authentic delivery, even when processing it
// failed, so the gateway only redelivers on signature rejection.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader(SignatureHeader))
	if err != nil {
		telemetry.WebhookRejected.Inc()
		telemetry.Logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error: " + err.Error()})
		return
	}

	telemetry.Logger.Info("Webhook received",
		zap.String("event_id", event.ID()),
		zap.String("event_type", event.Type()),
	)
	h.dispatcher.Dispatch(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
