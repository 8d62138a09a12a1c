package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTracingMiddleware_PropagatesSpanToHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var handlerSpan trace.SpanContext
	r := gin.New()
	r.Use(TracingMiddleware())
	r.GET("/status/:sessionKey", func(c *gin.Context) {
		handlerSpan = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/status/U1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, handlerSpan.IsValid())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", handlerSpan.TraceID().String())
}

func TestInjectKafkaHeaders_KeepsExistingHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx, span := provider.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("skill_check_completed")}})

	keys := make(map[string]string, len(headers))
	for _, h := range headers {
		keys[h.Key] = string(h.Value)
	}
	assert.Equal(t, "skill_check_completed", keys["event_type"])
	assert.Contains(t, keys["traceparent"], span.SpanContext().TraceID().String())
}
