package finalize_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/finalize"
	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/repository"
	"github.com/akylbek/payment-system/skill-check/internal/testutil"
)

type fixture struct {
	store     *repository.MemorySessionStore
	generator *testutil.CountingGenerator
	scheduler *testutil.RecordingScheduler
	finalizer *finalize.Finalizer
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()

	store := repository.NewMemorySessionStore()
	_, err := store.Create(context.Background(), "U1", "A", models.SessionMetadata{CustomerEmail: "checkout@example.com"})
	require.NoError(t, err)

	generator := &testutil.CountingGenerator{Result: true}
	scheduler := &testutil.RecordingScheduler{}
	return &fixture{
		store:     store,
		generator: generator,
		scheduler: scheduler,
		finalizer: finalize.New(store, generator, scheduler, zap.NewNop(), delay),
	}
}

func TestFinalize_WebhookCompletesSynchronously(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	won, err := f.finalizer.Finalize(ctx, finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	assert.True(t, won)

	session, err := f.store.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, session.Status)
	require.NotNil(t, session.Outcome)
	assert.True(t, *session.Outcome)
	require.NotNil(t, session.CompletedAt)
	assert.Equal(t, "checkout@example.com", session.CustomerEmail)

	assert.Equal(t, int64(1), f.generator.Calls())
	require.Equal(t, 1, f.scheduler.Count())
	assert.Equal(t, "U1", f.scheduler.Sessions()[0].ID)
}

func TestFinalize_GatewayEmailReplacesCheckoutEmail(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.finalizer.Finalize(ctx, finalize.Request{
		Key:           "A",
		Source:        finalize.SourceWebhook,
		CustomerEmail: "paid@example.com",
	})
	require.NoError(t, err)

	session, err := f.store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "paid@example.com", session.CustomerEmail)
}

func TestFinalize_SecondTriggerIsNoOp(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	won, err := f.finalizer.Finalize(ctx, finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	require.True(t, won)

	first, err := f.store.Get(ctx, "A")
	require.NoError(t, err)

	won, err = f.finalizer.Finalize(ctx, finalize.Request{Key: "U1", Source: finalize.SourceReconciliation})
	require.NoError(t, err)
	assert.False(t, won)

	second, err := f.store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), f.generator.Calls())
	assert.Equal(t, 1, f.scheduler.Count())
}

func TestFinalize_ReconciliationCompletesAfterDelay(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	won, err := f.finalizer.Finalize(ctx, finalize.Request{Key: "U1", Source: finalize.SourceReconciliation})
	require.NoError(t, err)
	require.True(t, won)

	session, err := f.store.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, session.Status)
	assert.Nil(t, session.Outcome, "outcome only exists once completed")

	// a webhook arriving while processing must not complete it a second time
	won, err = f.finalizer.Finalize(ctx, finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	assert.False(t, won)

	require.Eventually(t, func() bool {
		s, err := f.store.Get(ctx, "U1")
		return err == nil && s.Status == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), f.generator.Calls())
	assert.Equal(t, 1, f.scheduler.Count())
}

func TestFinalize_ReconciliationSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	won, err := f.finalizer.Finalize(ctx, finalize.Request{Key: "U1", Source: finalize.SourceReconciliation})
	require.NoError(t, err)
	require.True(t, won)
	cancel()

	require.Eventually(t, func() bool {
		return f.scheduler.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFinalize_ExpiredSessionIsNotCompleted(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.store.Transition(ctx, "A", models.StatusPending, models.StatusExpired, nil)
	require.NoError(t, err)

	won, err := f.finalizer.Finalize(ctx, finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	assert.False(t, won)

	session, err := f.store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, session.Status)
	assert.Nil(t, session.Outcome)
	assert.Zero(t, f.generator.Calls())
}

func TestFinalize_UnknownSession(t *testing.T) {
	f := newFixture(t, 0)

	won, err := f.finalizer.Finalize(context.Background(), finalize.Request{Key: "missing", Source: finalize.SourceWebhook})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, won)
}

func TestFinalize_RacingTriggersProduceOneOutcome(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t, 0)
		ctx := context.Background()

		var wins atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 8; i++ {
			req := finalize.Request{Key: "A", Source: finalize.SourceWebhook}
			if i%2 == 1 {
				req = finalize.Request{Key: "U1", Source: finalize.SourceReconciliation}
			}
			wg.Add(1)
			go func(req finalize.Request) {
				defer wg.Done()
				<-start
				won, err := f.finalizer.Finalize(ctx, req)
				if err == nil && won {
					wins.Add(1)
				}
			}(req)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int64(1), wins.Load())
		assert.Equal(t, int64(1), f.generator.Calls())
		assert.Equal(t, 1, f.scheduler.Count())
	}
}

// replayingStore runs mutate against a throwaway copy before delegating, the way
// the Redis store re-runs it after an optimistic transaction conflict.
type replayingStore struct {
	*repository.MemorySessionStore
}

func (s replayingStore) Transition(ctx context.Context, key string, expected, next models.SessionStatus, mutate func(*models.PaymentSession)) (bool, error) {
	if mutate != nil {
		mutate(&models.PaymentSession{})
		mutate(&models.PaymentSession{})
	}
	return s.MemorySessionStore.Transition(ctx, key, expected, next, mutate)
}

// flakyStore fails processing→completed a fixed number of times.
type flakyStore struct {
	*repository.MemorySessionStore
	failures atomic.Int64
}

func (s *flakyStore) Transition(ctx context.Context, key string, expected, next models.SessionStatus, mutate func(*models.PaymentSession)) (bool, error) {
	if next == models.StatusCompleted && s.failures.Add(-1) >= 0 {
		return false, errors.New("redis: connection refused")
	}
	return s.MemorySessionStore.Transition(ctx, key, expected, next, mutate)
}

func TestFinalize_StoreReplayDoesNotRedrawOutcome(t *testing.T) {
	f := newFixture(t, 0)
	generator := &testutil.CountingGenerator{Result: true}
	finalizer := finalize.New(replayingStore{f.store}, generator, f.scheduler, zap.NewNop(), 0)

	won, err := finalizer.Finalize(context.Background(), finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	require.True(t, won)

	assert.Equal(t, int64(1), generator.Calls())

	session, err := f.store.Get(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, session.Outcome)
	assert.True(t, *session.Outcome)
}

func TestFinalize_RetriesTransientCompletionErrors(t *testing.T) {
	f := newFixture(t, 0)
	store := &flakyStore{MemorySessionStore: f.store}
	store.failures.Store(2)

	finalizer := finalize.New(store, f.generator, f.scheduler, zap.NewNop(), 0)
	finalizer.SetRetryBackoff(time.Millisecond)

	won, err := finalizer.Finalize(context.Background(), finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	require.True(t, won)

	session, err := f.store.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, session.Status)
	assert.Equal(t, int64(1), f.generator.Calls())
	assert.Equal(t, 1, f.scheduler.Count())
}

func TestFinalize_GivesUpAfterBoundedRetries(t *testing.T) {
	f := newFixture(t, 0)
	store := &flakyStore{MemorySessionStore: f.store}
	store.failures.Store(100)

	finalizer := finalize.New(store, f.generator, f.scheduler, zap.NewNop(), 0)
	finalizer.SetRetryBackoff(time.Millisecond)

	won, err := finalizer.Finalize(context.Background(), finalize.Request{Key: "A", Source: finalize.SourceWebhook})
	require.NoError(t, err)
	assert.True(t, won)

	session, err := f.store.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, session.Status)
	assert.Equal(t, int64(97), store.failures.Load())
	assert.Zero(t, f.scheduler.Count())
}
