package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/api"
	"github.com/akylbek/payment-system/skill-check/internal/checkout"
	"github.com/akylbek/payment-system/skill-check/internal/config"
	"github.com/akylbek/payment-system/skill-check/internal/finalize"
	"github.com/akylbek/payment-system/skill-check/internal/gateway"
	"github.com/akylbek/payment-system/skill-check/internal/handlers"
	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/outcome"
	"github.com/akylbek/payment-system/skill-check/internal/pipeline"
	"github.com/akylbek/payment-system/skill-check/internal/reaper"
	"github.com/akylbek/payment-system/skill-check/internal/reconcile"
	"github.com/akylbek/payment-system/skill-check/internal/repository"
	"github.com/akylbek/payment-system/skill-check/internal/status"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
	"github.com/akylbek/payment-system/skill-check/internal/webhook"
)

func main() {
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("skill-check", cfg.TracerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	logger := telemetry.Logger
	logger.Info("Starting skill-check service")

	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to Redis
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		defer redisClient.Close()
	}

	// Session store
	var store interfaces.SessionStore
	switch {
	case cfg.SessionStore == "redis" && redisClient != nil:
		store = repository.NewRedisSessionStore(redisClient, cfg.SessionTTL)
		logger.Info("Using Redis session store")
	default:
		memStore := repository.NewMemorySessionStore()
		store = memStore
		if cfg.SessionTTL > 0 {
			r := &reaper.Reaper{Store: memStore, TTL: cfg.SessionTTL, Interval: sweepInterval(cfg.SessionTTL), Logger: logger}
			go r.Run(ctx)
		}
	}

	var tokens interfaces.UnlockTokenStore = repository.NewMemoryUnlockTokenStore()
	if redisClient != nil {
		tokens = repository.NewUnlockTokenStore(redisClient)
	}

	product := models.Product{
		PriceID:  cfg.StripePriceID,
		Amount:   cfg.PriceAmount,
		Currency: cfg.PriceCurrency,
		Type:     "neymar_skill_check",
	}

	// Completion pipeline actions
	var actions []pipeline.Action

	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		actions = append(actions, pipeline.NewEmailAction(nc, logger))
	}

	if cfg.KafkaBrokers != "" {
		kafkaWriter := &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
			Balancer: &kafka.LeastBytes{},
		}
		defer kafkaWriter.Close()
		actions = append(actions, pipeline.NewRealtimeAction(kafkaWriter))
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		analyticsRepo := repository.NewAnalyticsRepository(db)
		if err := analyticsRepo.InitDB(); err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		actions = append(actions, pipeline.NewAnalyticsAction(analyticsRepo, product))
	}

	if cfg.JWTSecret != "" {
		actions = append(actions, pipeline.NewUnlockAction(cfg.JWTSecret, tokens))
	} else {
		logger.Warn("JWT_SECRET is empty, special content unlock disabled")
	}

	completion := pipeline.New(logger, actions, pipeline.WithWorkers(cfg.PipelineWorkers))
	completion.Start()

	// Core services
	stripeGateway := gateway.NewStripeGateway(cfg.StripeSecretKey, product, cfg.BaseURL)
	finalizer := finalize.New(store, outcome.Coin{}, completion, logger, cfg.ProcessingDelay)
	poller := reconcile.NewPoller(stripeGateway, finalizer, logger, cfg.GatewayTimeout)
	statusSvc := status.NewService(store, poller, logger)
	checkoutSvc := checkout.NewService(stripeGateway, store, logger)
	dispatcher := webhook.NewDispatcher(store, finalizer, logger)

	sessionHandler := handlers.NewSessionHandler(checkoutSvc, statusSvc, store, tokens, redisClient, cfg.StripePublicKey, cfg.JWTSecret)
	webhookHandler := handlers.NewWebhookHandler(webhook.NewVerifier(cfg.StripeWebhookSecret), dispatcher)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(sessionHandler, webhookHandler, redisClient)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Skill-check service starting",
			zap.String("port", cfg.Port),
			zap.String("webhook_endpoint", cfg.BaseURL+"/webhook/stripe"),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := completion.Stop(shutdownCtx); err != nil {
		logger.Error("Completion pipeline did not drain", zap.Error(err))
	}

	logger.Info("Server exited")
}

func sweepInterval(ttl time.Duration) time.Duration {
	if interval := ttl / 10; interval > time.Second {
		return interval
	}
	return time.Second
}
