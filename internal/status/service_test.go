package status_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/repository"
	"github.com/akylbek/payment-system/skill-check/internal/status"
)

type stubReconciler struct {
	calls int
	err   error
	apply func(session *models.PaymentSession)
}

func (r *stubReconciler) Reconcile(ctx context.Context, session *models.PaymentSession) error {
	r.calls++
	if r.apply != nil {
		r.apply(session)
	}
	return r.err
}

func newStore(t *testing.T) *repository.MemorySessionStore {
	t.Helper()
	store := repository.NewMemorySessionStore()
	_, err := store.Create(context.Background(), "U1", "cs_test_1", models.SessionMetadata{})
	require.NoError(t, err)
	return store
}

func TestGetStatus_PendingTriggersReconciliation(t *testing.T) {
	store := newStore(t)
	reconciler := &stubReconciler{apply: func(session *models.PaymentSession) {
		_, err := store.Transition(context.Background(), session.ID, models.StatusPending, models.StatusProcessing, nil)
		require.NoError(t, err)
	}}
	svc := status.NewService(store, reconciler, zap.NewNop())

	view, err := svc.GetStatus(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, 1, reconciler.calls)
	assert.Equal(t, models.StatusProcessing, view.Status)
	assert.Nil(t, view.Outcome)
}

func TestGetStatus_GatewayFailureKeepsPending(t *testing.T) {
	store := newStore(t)
	svc := status.NewService(store, &stubReconciler{err: errors.New("gateway unavailable")}, zap.NewNop())

	view, err := svc.GetStatus(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
}

func TestGetStatus_SettledSessionsSkipReconciliation(t *testing.T) {
	store := newStore(t)
	_, err := store.Transition(context.Background(), "U1", models.StatusPending, models.StatusExpired, nil)
	require.NoError(t, err)

	reconciler := &stubReconciler{}
	svc := status.NewService(store, reconciler, zap.NewNop())

	view, err := svc.GetStatus(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, view.Status)
	assert.Zero(t, reconciler.calls)
}

func TestGetStatus_UnknownSession(t *testing.T) {
	svc := status.NewService(newStore(t), &stubReconciler{}, zap.NewNop())

	_, err := svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSkillCheck(t *testing.T) {
	store := newStore(t)
	svc := status.NewService(store, &stubReconciler{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.SkillCheck(ctx, "U1")
	assert.ErrorIs(t, err, status.ErrNotCompleted)
	var notCompleted *status.NotCompletedError
	require.ErrorAs(t, err, &notCompleted)
	assert.Equal(t, models.StatusPending, notCompleted.Status)

	_, err = store.Transition(ctx, "U1", models.StatusPending, models.StatusProcessing, nil)
	require.NoError(t, err)
	_, err = store.Transition(ctx, "U1", models.StatusProcessing, models.StatusCompleted, func(s *models.PaymentSession) {
		result := true
		s.Outcome = &result
	})
	require.NoError(t, err)

	session, err := svc.SkillCheck(ctx, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, session.Outcome)
	assert.True(t, *session.Outcome)

	_, err = svc.SkillCheck(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
