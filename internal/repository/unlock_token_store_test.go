package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUnlockTokenStore(t *testing.T) {
	store := NewMemoryUnlockTokenStore()
	ctx := context.Background()

	_, err := store.UnlockToken(ctx, "U1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, store.SaveUnlockToken(ctx, "U1", "token-1", time.Hour))
	token, err := store.UnlockToken(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	require.NoError(t, store.SaveUnlockToken(ctx, "U2", "token-2", -time.Second))
	_, err = store.UnlockToken(ctx, "U2")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
