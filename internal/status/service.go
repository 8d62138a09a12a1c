package status

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
)

var ErrNotCompleted = errors.New("payment not completed yet")

// NotCompletedError is returned by SkillCheck before the session has completed.
type NotCompletedError struct {
	Status models.SessionStatus
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("%v (status %s)", ErrNotCompleted, e.Status)
}

func (e *NotCompletedError) Is(target error) bool { return target == ErrNotCompleted }

type Reconciler interface {
	Reconcile(ctx context.Context, session *models.PaymentSession) error
}

type Service struct {
	store      interfaces.SessionStore
	reconciler Reconciler
	logger     *zap.Logger
}

func NewService(store interfaces.SessionStore, reconciler Reconciler, logger *zap.Logger) *Service {
	return &Service{store: store, reconciler: reconciler, logger: logger}
}

// GetStatus returns the client-facing view of a session, first asking the
// gateway when the session is still pending. Gateway failures leave the
// session pending; the client keeps polling.
func (s *Service) GetStatus(ctx context.Context, key string) (*models.StatusView, error) {
	session, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if session.Status != models.StatusPending {
		return session.View(), nil
	}

	if err := s.reconciler.Reconcile(ctx, session); err != nil {
		s.logger.Warn("Reconciliation failed, session stays pending",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return session.View(), nil
	}

	session, err = s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return session.View(), nil
}

// SkillCheck reveals the outcome of a completed session.
func (s *Service) SkillCheck(ctx context.Context, key string) (*models.PaymentSession, error) {
	session, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusCompleted {
		return nil, &NotCompletedError{Status: session.Status}
	}
	return session, nil
}
