// Package finalize owns the only path that completes a payment session. Both the
// webhook dispatcher and the reconciliation poller go through Finalize, and the
// check-and-set on pending→processing decides which of them gets to run it.
package finalize

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/interfaces"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/outcome"
)

// completeAttempts bounds retries of processing→completed when the store errors.
const completeAttempts = 3

type Source string

const (
	SourceWebhook        Source = "webhook"
	SourceReconciliation Source = "reconciliation"
)

// Scheduler receives completed sessions. *pipeline.Pipeline satisfies it.
type Scheduler interface {
	Enqueue(session models.PaymentSession)
}

type Request struct {
	Key    string
	Source Source
	// CustomerEmail, when set, replaces the email captured at checkout.
	CustomerEmail string
}

type Finalizer struct {
	store     interfaces.SessionStore
	generator outcome.Generator
	scheduler Scheduler
	logger    *zap.Logger

	// reconciliationDelay simulates result processing on the poll path.
	reconciliationDelay time.Duration
	retryBackoff        time.Duration
	now                 func() time.Time
}

func New(store interfaces.SessionStore, generator outcome.Generator, scheduler Scheduler, logger *zap.Logger, reconciliationDelay time.Duration) *Finalizer {
	return &Finalizer{
		store:               store,
		generator:           generator,
		scheduler:           scheduler,
		logger:              logger,
		reconciliationDelay: reconciliationDelay,
		retryBackoff:        100 * time.Millisecond,
		now:                 time.Now,
	}
}

// Finalize claims the session for completion. It returns false without error when
// another trigger already claimed it. The webhook path completes before returning;
// the reconciliation path completes in the background after the processing delay.
func (f *Finalizer) Finalize(ctx context.Context, req Request) (bool, error) {
	won, err := f.store.Transition(ctx, req.Key, models.StatusPending, models.StatusProcessing,
		func(s *models.PaymentSession) {
			if req.CustomerEmail != "" {
				s.CustomerEmail = req.CustomerEmail
			}
		})
	if err != nil {
		return false, err
	}
	if !won {
		f.logger.Info("Session already claimed, skipping finalize",
			zap.String("session_key", req.Key),
			zap.String("source", string(req.Source)),
		)
		return false, nil
	}

	f.logger.Info("Session claimed for completion",
		zap.String("session_key", req.Key),
		zap.String("source", string(req.Source)),
	)

	if req.Source == SourceReconciliation && f.reconciliationDelay > 0 {
		bg := context.WithoutCancel(ctx)
		time.AfterFunc(f.reconciliationDelay, func() {
			f.complete(bg, req)
		})
		return true, nil
	}

	f.complete(ctx, req)
	return true, nil
}

// complete runs only for the trigger that won pending→processing, so the outcome
// is drawn here exactly once. Store retries only ever re-assign the same value.
func (f *Finalizer) complete(ctx context.Context, req Request) {
	result := f.generator.Generate()
	completedAt := f.now()

	var (
		applied bool
		err     error
	)
	for attempt := 1; attempt <= completeAttempts; attempt++ {
		applied, err = f.store.Transition(ctx, req.Key, models.StatusProcessing, models.StatusCompleted,
			func(s *models.PaymentSession) {
				outcome, at := result, completedAt
				s.Outcome = &outcome
				s.CompletedAt = &at
			})
		if err == nil || errors.Is(err, models.ErrNotFound) || attempt == completeAttempts {
			break
		}
		f.logger.Warn("Completing session failed, retrying",
			zap.String("session_key", req.Key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(time.Duration(attempt) * f.retryBackoff):
			continue
		}
		break
	}
	if err != nil {
		f.logger.Error("Failed to complete session, left in processing",
			zap.String("session_key", req.Key),
			zap.Error(err),
		)
		return
	}
	if !applied {
		// Only the claimant reaches here, so this means the record moved underneath us.
		f.logger.Warn("Session left processing before completion",
			zap.String("session_key", req.Key),
		)
		return
	}

	session, err := f.store.Get(ctx, req.Key)
	if err != nil {
		f.logger.Error("Failed to reload completed session",
			zap.String("session_key", req.Key),
			zap.Error(err),
		)
		return
	}

	f.logger.Info("Skill check result",
		zap.String("session_id", session.ID),
		zap.String("external_id", session.ExternalID),
		zap.Bool("has_skill", *session.Outcome),
		zap.String("source", string(req.Source)),
	)

	f.scheduler.Enqueue(*session)
}
