package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/repository"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

const (
	EmailSubject    = "notifications.email"
	CompletedTopic  = "skillcheck.completed"
	UnlockTokenTTL  = 30 * 24 * time.Hour
	unlockTokenType = "special_content"
)

var ErrMissingOutcome = errors.New("completed session has no outcome")

// MessagePublisher is satisfied by *nats.Conn.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, rec repository.CompletionRecord) error
}

type ResultEmail struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Template  string `json:"template"`
	SessionID string `json:"session_id"`
	HasSkill  bool   `json:"has_skill"`
}

// EmailAction hands the result email to the mail worker over NATS.
type EmailAction struct {
	publisher MessagePublisher
	logger    *zap.Logger
}

func NewEmailAction(publisher MessagePublisher, logger *zap.Logger) *EmailAction {
	return &EmailAction{publisher: publisher, logger: logger}
}

func (a *EmailAction) Name() string { return "email" }

func (a *EmailAction) Run(ctx context.Context, session models.PaymentSession) error {
	if session.CustomerEmail == "" {
		a.logger.Info("No customer email, skipping result email", zap.String("session_id", session.ID))
		return nil
	}
	if session.Outcome == nil {
		return ErrMissingOutcome
	}

	msg, err := json.Marshal(ResultEmail{
		To:        session.CustomerEmail,
		Subject:   "Your skill check result",
		Template:  "skill-result",
		SessionID: session.ID,
		HasSkill:  *session.Outcome,
	})
	if err != nil {
		return err
	}

	if err := a.publisher.Publish(EmailSubject, msg); err != nil {
		return fmt.Errorf("publish email: %w", err)
	}

	a.logger.Info("Result email queued",
		zap.String("session_id", session.ID),
		zap.String("email", session.CustomerEmail),
	)
	return nil
}

// RealtimeAction emits a completion event that push channels (websocket, SSE)
// consume from Kafka.
type RealtimeAction struct {
	writer MessageWriter
}

func NewRealtimeAction(writer MessageWriter) *RealtimeAction {
	return &RealtimeAction{writer: writer}
}

func (a *RealtimeAction) Name() string { return "realtime" }

func (a *RealtimeAction) Run(ctx context.Context, session models.PaymentSession) error {
	event := map[string]interface{}{
		"session_id":   session.ID,
		"external_id":  session.ExternalID,
		"status":       session.Status,
		"has_skill":    session.Outcome,
		"completed_at": session.CompletedAt,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return a.writer.WriteMessages(ctx, kafka.Message{
		Topic:   CompletedTopic,
		Key:     []byte(session.ID),
		Value:   eventJSON,
		Headers: telemetry.InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("skill_check_completed")}}),
	})
}

type AnalyticsAction struct {
	recorder CompletionRecorder
	product  models.Product
}

func NewAnalyticsAction(recorder CompletionRecorder, product models.Product) *AnalyticsAction {
	return &AnalyticsAction{recorder: recorder, product: product}
}

func (a *AnalyticsAction) Name() string { return "analytics" }

func (a *AnalyticsAction) Run(ctx context.Context, session models.PaymentSession) error {
	if session.Outcome == nil || session.CompletedAt == nil {
		return ErrMissingOutcome
	}

	return a.recorder.RecordCompletion(ctx, repository.CompletionRecord{
		SessionID:   session.ID,
		ExternalID:  session.ExternalID,
		Outcome:     *session.Outcome,
		Amount:      a.product.Amount,
		Currency:    a.product.Currency,
		CreatedAt:   session.CreatedAt,
		CompletedAt: *session.CompletedAt,
	})
}

// UnlockClaims is carried by the special-content token.
type UnlockClaims struct {
	SessionID string `json:"session_id"`
	HasSkill  bool   `json:"has_skill"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// UnlockAction issues a signed special-content token for winners.
type UnlockAction struct {
	secret []byte
	store  interfaces.UnlockTokenStore
	now    func() time.Time
}

func NewUnlockAction(secret string, store interfaces.UnlockTokenStore) *UnlockAction {
	return &UnlockAction{secret: []byte(secret), store: store, now: time.Now}
}

func (a *UnlockAction) Name() string { return "unlock" }

func (a *UnlockAction) Applies(session models.PaymentSession) bool {
	return session.Outcome != nil && *session.Outcome
}

func (a *UnlockAction) Run(ctx context.Context, session models.PaymentSession) error {
	if len(a.secret) == 0 {
		return errors.New("unlock signing secret is not configured")
	}

	now := a.now()
	claims := UnlockClaims{
		SessionID: session.ID,
		HasSkill:  true,
		Type:      unlockTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(UnlockTokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return fmt.Errorf("sign unlock token: %w", err)
	}

	return a.store.SaveUnlockToken(ctx, session.ID, token, UnlockTokenTTL)
}

// ParseUnlockToken validates a token issued by UnlockAction.
func ParseUnlockToken(secret, token string) (*UnlockClaims, error) {
	claims := &UnlockClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}
