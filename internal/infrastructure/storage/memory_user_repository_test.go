package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tumor-scan/internal/domain/entity"
)

func TestMemoryUserRepository_GetCreatesUser(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 5, 50)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	user.SetState(entity.StateAwaitingScan)
	require.NoError(t, repo.Save(ctx, user))
	user, err = repo.Get(ctx, 5, 50)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingScan, user.State)
}

func TestMemoryUserRepository_ChangesNeedSave(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 7, 70)
	require.NoError(t, err)
	user.SetState(entity.StateProcessing)

	again, err := repo.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, again.State)

	require.NoError(t, repo.Save(ctx, user))
	again, err = repo.Get(ctx, 7, 71)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, again.State)
	require.Equal(t, int64(71), again.ChatID)
}
