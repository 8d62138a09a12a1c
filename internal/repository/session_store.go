package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

var ErrEmptySessionKey = errors.New("session ids must not be empty")

// MemorySessionStore keeps one canonical record per session, keyed by the
// internal id, plus an index from the gateway's external id to the internal id.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.PaymentSession
	aliases  map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.PaymentSession),
		aliases:  make(map[string]string),
	}
}

func (s *MemorySessionStore) Create(ctx context.Context, internalID, externalID string, meta models.SessionMetadata) (*models.PaymentSession, error) {
	if internalID == "" || externalID == "" {
		return nil, ErrEmptySessionKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{internalID, externalID} {
		if s.bound(key) {
			return nil, fmt.Errorf("%w: %s", models.ErrAlreadyExists, key)
		}
	}

	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	session := &models.PaymentSession{
		ID:            internalID,
		ExternalID:    externalID,
		Status:        models.StatusPending,
		CreatedAt:     createdAt,
		CustomerEmail: meta.CustomerEmail,
		UserID:        meta.UserID,
	}
	s.sessions[internalID] = session
	s.aliases[externalID] = internalID

	return session.Clone(), nil
}

func (s *MemorySessionStore) Get(ctx context.Context, key string) (*models.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.resolve(key)
	if !ok {
		return nil, models.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) Transition(ctx context.Context, key string, expected, next models.SessionStatus, mutate func(*models.PaymentSession)) (bool, error) {
	if !models.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, expected, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.resolve(key)
	if !ok {
		return false, models.ErrNotFound
	}

	if session.Status != expected {
		telemetry.SessionTransitions.WithLabelValues(string(expected), string(next), "rejected").Inc()
		return false, nil
	}

	// mutate works on a copy so the identifiers and status stay under our control.
	updated := session.Clone()
	if mutate != nil {
		mutate(updated)
	}
	session.Outcome = updated.Outcome
	session.CompletedAt = updated.CompletedAt
	session.CustomerEmail = updated.CustomerEmail
	session.Status = next

	telemetry.SessionTransitions.WithLabelValues(string(expected), string(next), "applied").Inc()
	return true, nil
}

func (s *MemorySessionStore) List(ctx context.Context) ([]models.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]models.PaymentSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session.Clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Sweep removes sessions created before cutoff. Sessions in processing are kept
// because a finalizer may still be about to complete them.
func (s *MemorySessionStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.Status == models.StatusProcessing || !session.CreatedAt.Before(cutoff) {
			continue
		}
		delete(s.aliases, session.ExternalID)
		delete(s.sessions, id)
		removed++
	}
	return removed, nil
}

func (s *MemorySessionStore) bound(key string) bool {
	if _, ok := s.sessions[key]; ok {
		return true
	}
	_, ok := s.aliases[key]
	return ok
}

func (s *MemorySessionStore) resolve(key string) (*models.PaymentSession, bool) {
	if session, ok := s.sessions[key]; ok {
		return session, true
	}
	if id, ok := s.aliases[key]; ok {
		session, ok := s.sessions[id]
		return session, ok
	}
	return nil, false
}
