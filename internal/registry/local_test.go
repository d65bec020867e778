package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/registry"
)

func strPtr(s string) *string { return &s }

func newLocal() (*registry.Local, *device.Service) {
	svc := device.NewService(device.NewInMemoryRepository(), nil, zerolog.Nop())
	return registry.NewLocal(svc, zerolog.Nop()), svc
}

// nextSnapshot waits for a snapshot matching cond, skipping others.
func nextSnapshot(t *testing.T, sub *registry.Subscription, cond func(registry.Snapshot) bool) registry.Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			require.True(t, ok, "subscription closed early: %v", sub.Err())
			if cond(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func TestLocal_UpsertEchoesStoredName(t *testing.T) {
	store, _ := newLocal()
	ctx := context.Background()

	_, err := store.Upsert(ctx, device.NewRegistration("ExponentPushToken[a]", nil, nil, strPtr("Alice")))
	require.NoError(t, err)

	stored, err := store.Upsert(ctx, device.NewRegistration("ExponentPushToken[a]", strPtr("Apple"), nil, nil))
	require.NoError(t, err)
	require.NotNil(t, stored.UserName)
	assert.Equal(t, "Alice", *stored.UserName)
	assert.Equal(t, "Apple", *stored.Brand)
}

func TestLocal_SubscribeDeliversInitialAndChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, _ := newLocal()
	ctx := context.Background()

	_, err := store.Upsert(ctx, device.NewRegistration("ExponentPushToken[a]", nil, nil, nil))
	require.NoError(t, err)

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	first := nextSnapshot(t, sub, func(s registry.Snapshot) bool { return true })
	require.Len(t, first, 1)
	assert.Equal(t, "ExponentPushToken[a]", first[0].PushToken)

	_, err = store.Upsert(ctx, device.NewRegistration("ExponentPushToken[b]", nil, nil, nil))
	require.NoError(t, err)

	snap := nextSnapshot(t, sub, func(s registry.Snapshot) bool { return len(s) == 2 })
	assert.Equal(t, "ExponentPushToken[b]", snap[1].PushToken)
}

func TestLocal_OverwriteKeepsSingleEntry(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, _ := newLocal()
	ctx := context.Background()

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	for _, name := range []string{"one", "two", "three"} {
		_, err := store.Upsert(ctx, device.NewRegistration("ExponentPushToken[a]", nil, nil, strPtr(name)))
		require.NoError(t, err)
	}

	snap := nextSnapshot(t, sub, func(s registry.Snapshot) bool {
		return len(s) == 1 && s[0].UserName != nil && *s[0].UserName == "three"
	})
	assert.Len(t, snap, 1)
}

func TestLocal_CloseStopsDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, svc := newLocal()
	ctx := context.Background()

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	nextSnapshot(t, sub, func(registry.Snapshot) bool { return true })

	sub.Close()
	sub.Close()

	_, err = store.Upsert(ctx, device.NewRegistration("ExponentPushToken[late]", nil, nil, nil))
	require.NoError(t, err)

	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, svc.Hub().Watchers())
}

func TestLocal_ContextCancelEndsSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, _ := newLocal()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestLocal_SlowConsumerGetsLatest(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, _ := newLocal()
	ctx := context.Background()

	sub, err := store.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 10; i++ {
		_, err := store.Upsert(ctx, device.NewRegistration("ExponentPushToken["+string(rune('a'+i))+"]", nil, nil, nil))
		require.NoError(t, err)
	}

	snap := nextSnapshot(t, sub, func(s registry.Snapshot) bool { return len(s) == 10 })
	assert.Len(t, snap, 10)
}
