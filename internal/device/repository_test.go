package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmpush/swarmpush/internal/device"
)

func strPtr(s string) *string { return &s }

// repositories returns every Repository implementation that runs without
// external services.
func repositories(t *testing.T) map[string]device.Repository {
	t.Helper()

	sqliteRepo, err := device.OpenSQLiteRepository(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]device.Repository{
		"memory": device.NewInMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestRepository_UpsertCreatesThenUpdates(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			reg := device.NewRegistration("ExponentPushToken[aaa]", strPtr("Apple"), strPtr("iPhone 15"), nil)
			stored, created, err := repo.Upsert(ctx, &reg)
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, "aaa", *stored.DeviceID)
			assert.False(t, stored.CreatedAt.IsZero())

			updated := device.NewRegistration("ExponentPushToken[aaa]", strPtr("Apple"), strPtr("iPhone 16"), strPtr("Alice"))
			stored, created, err = repo.Upsert(ctx, &updated)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, "iPhone 16", *stored.DeviceName)
			assert.Equal(t, "Alice", *stored.UserName)

			all, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1, "re-registering a token must not append")
			assert.Equal(t, "iPhone 16", *all[0].DeviceName)
		})
	}
}

func TestRepository_UpsertKeepsStoredNameWhenAbsent(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := device.NewRegistration("tok-1", nil, nil, strPtr("Alice"))
			_, _, err := repo.Upsert(ctx, &first)
			require.NoError(t, err)

			relaunch := device.NewRegistration("tok-1", strPtr("Samsung"), nil, nil)
			stored, _, err := repo.Upsert(ctx, &relaunch)
			require.NoError(t, err)

			require.NotNil(t, stored.UserName)
			assert.Equal(t, "Alice", *stored.UserName)
			assert.Equal(t, "Samsung", *stored.Brand)
		})
	}
}

func TestRepository_UpsertRejectsEmptyToken(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := repo.Upsert(context.Background(), &device.Registration{})
			assert.ErrorIs(t, err, device.ErrEmptyPushToken)
		})
	}
}

func TestRepository_GetAndDelete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.Get(ctx, "missing")
			assert.ErrorIs(t, err, device.ErrDeviceNotFound)

			reg := device.NewRegistration("tok-2", nil, nil, nil)
			_, _, err = repo.Upsert(ctx, &reg)
			require.NoError(t, err)

			got, err := repo.Get(ctx, "tok-2")
			require.NoError(t, err)
			assert.Equal(t, "tok-2", got.PushToken)
			assert.Nil(t, got.DeviceID)

			require.NoError(t, repo.Delete(ctx, "tok-2"))
			assert.ErrorIs(t, repo.Delete(ctx, "tok-2"), device.ErrDeviceNotFound)

			all, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := device.NewInMemoryRepository()
	ctx := context.Background()

	reg := device.NewRegistration("tok-3", strPtr("Apple"), nil, nil)
	_, _, err := repo.Upsert(ctx, &reg)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "tok-3")
	require.NoError(t, err)
	*got.Brand = "mutated"

	again, err := repo.Get(ctx, "tok-3")
	require.NoError(t, err)
	assert.Equal(t, "Apple", *again.Brand)
}
