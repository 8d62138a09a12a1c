package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTokenNotFound = errors.New("unlock token not found")

type UnlockTokenStore struct {
	rdb *redis.Client
}

func NewUnlockTokenStore(rdb *redis.Client) *UnlockTokenStore {
	return &UnlockTokenStore{rdb: rdb}
}

func (s *UnlockTokenStore) SaveUnlockToken(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, "unlock:"+sessionID, token, ttl).Err()
}

func (s *UnlockTokenStore) UnlockToken(ctx context.Context, sessionID string) (string, error) {
	token, err := s.rdb.Get(ctx, "unlock:"+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	return token, err
}

// MemoryUnlockTokenStore is used when no Redis is configured. Expiry is checked on read.
type MemoryUnlockTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	value     string
	expiresAt time.Time
}

func NewMemoryUnlockTokenStore() *MemoryUnlockTokenStore {
	return &MemoryUnlockTokenStore{tokens: make(map[string]memoryToken)}
}

func (s *MemoryUnlockTokenStore) SaveUnlockToken(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[sessionID] = memoryToken{value: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryUnlockTokenStore) UnlockToken(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[sessionID]
	if !ok || time.Now().After(t.expiresAt) {
		return "", ErrTokenNotFound
	}
	return t.value, nil
}
