package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

const (
	sessionKeyPrefix = "skillcheck:session:"
	aliasKeyPrefix   = "skillcheck:alias:"

	maxTxRetries = 5
)

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSessionStore stores each session as a JSON document under its internal id
// and an alias key pointing from the external id to the internal id. Check-and-set
// uses WATCH/MULTI so concurrent writers are serialized by Redis.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore builds a store; a zero ttl keeps keys forever.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context, internalID, externalID string, meta models.SessionMetadata) (*models.PaymentSession, error) {
	if internalID == "" || externalID == "" {
		return nil, ErrEmptySessionKey
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
	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	watched := []string{
		sessionKeyPrefix + internalID, aliasKeyPrefix + internalID,
		sessionKeyPrefix + externalID, aliasKeyPrefix + externalID,
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, watched...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s / %s", models.ErrAlreadyExists, internalID, externalID)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, sessionKeyPrefix+internalID, data, s.ttl)
			p.Set(ctx, aliasKeyPrefix+externalID, internalID, s.ttl)
			return nil
		})
		return err
	}, watched...)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("%w: concurrent create of %s", models.ErrAlreadyExists, internalID)
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, key string) (*models.PaymentSession, error) {
	id, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.rdb, id)
}

func (s *RedisSessionStore) Transition(ctx context.Context, key string, expected, next models.SessionStatus, mutate func(*models.PaymentSession)) (bool, error) {
	if !models.CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, expected, next)
	}

	id, err := s.resolve(ctx, key)
	if err != nil {
		return false, err
	}
	recordKey := sessionKeyPrefix + id

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		applied := false
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			session, err := s.load(ctx, tx, id)
			if err != nil {
				return err
			}
			if session.Status != expected {
				return nil
			}

			externalID, createdAt := session.ExternalID, session.CreatedAt
			if mutate != nil {
				mutate(session)
			}
			session.ID, session.ExternalID, session.CreatedAt = id, externalID, createdAt
			session.Status = next

			data, err := json.Marshal(session)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, recordKey, data, redis.KeepTTL)
				return nil
			})
			if err == nil {
				applied = true
			}
			return err
		}, recordKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, err
		}

		result := "rejected"
		if applied {
			result = "applied"
		}
		telemetry.SessionTransitions.WithLabelValues(string(expected), string(next), result).Inc()
		return applied, nil
	}

	return false, fmt.Errorf("transition %s: too much contention", id)
}

func (s *RedisSessionStore) List(ctx context.Context) ([]models.PaymentSession, error) {
	var sessions []models.PaymentSession

	iter := s.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var session models.PaymentSession
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *RedisSessionStore) resolve(ctx context.Context, key string) (string, error) {
	n, err := s.rdb.Exists(ctx, sessionKeyPrefix+key).Result()
	if err != nil {
		return "", err
	}
	if n > 0 {
		return key, nil
	}

	id, err := s.rdb.Get(ctx, aliasKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrNotFound
	}
	return id, err
}

func (s *RedisSessionStore) load(ctx context.Context, c stringGetter, id string) (*models.PaymentSession, error) {
	data, err := c.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session models.PaymentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}
