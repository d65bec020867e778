package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmpush/swarmpush/internal/auth"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/registry"
	"github.com/swarmpush/swarmpush/internal/selection"
)

func strPtr(s string) *string { return &s }

func testSnapshot() registry.Snapshot {
	return registry.Snapshot{
		{PushToken: "ExponentPushToken[aaa]", DeviceID: strPtr("aaa"), UserName: strPtr("alice"), Brand: strPtr("Google"), DeviceName: strPtr("Pixel 8")},
		{PushToken: "ExponentPushToken[bbb]", DeviceID: strPtr("bbb")},
	}
}

func TestToggleRecipients(t *testing.T) {
	sel := selection.New()

	unknown := toggleRecipients(sel, testSnapshot(), []string{"aaa", "2", "nope", "9"})

	assert.Equal(t, []string{"nope", "9"}, unknown)
	assert.Equal(t, []string{"ExponentPushToken[aaa]", "ExponentPushToken[bbb]"}, sel.Snapshot())

	// Toggling again deselects.
	toggleRecipients(sel, testSnapshot(), []string{"ExponentPushToken[aaa]"})
	assert.Equal(t, []string{"ExponentPushToken[bbb]"}, sel.Snapshot())
}

func TestChooseInteractively(t *testing.T) {
	sel := selection.New()
	in := strings.NewReader("1 2\n2\n\n")
	var out bytes.Buffer

	err := chooseInteractively(in, &out, sel, testSnapshot)

	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[aaa]"}, sel.Snapshot())
	assert.Contains(t, out.String(), "[x] 1  alice (Google - Pixel 8)")
}

func TestChooseInteractively_DropsVanishedDevices(t *testing.T) {
	sel := selection.New()
	sel.Toggle("ExponentPushToken[gone]")
	var out bytes.Buffer

	err := chooseInteractively(strings.NewReader(""), &out, sel, testSnapshot)

	require.NoError(t, err)
	assert.Zero(t, sel.Len())
	assert.Contains(t, out.String(), "1 selected devices left the registry")
}

func TestPrintSnapshot(t *testing.T) {
	var table bytes.Buffer
	require.NoError(t, printSnapshot(&table, testSnapshot(), false))
	assert.Contains(t, table.String(), "alice")
	assert.Contains(t, table.String(), "Anonymous")

	var js bytes.Buffer
	require.NoError(t, printSnapshot(&js, nil, true))
	assert.Equal(t, "[]\n", js.String())
}

func TestFirstSnapshot_Local(t *testing.T) {
	svc := device.NewService(device.NewInMemoryRepository(), device.NewHub(), zerolog.Nop())
	_, _, err := svc.Register(context.Background(), &device.Registration{PushToken: "ExponentPushToken[x]"})
	require.NoError(t, err)

	snap, err := firstSnapshot(context.Background(), registry.NewLocal(svc, zerolog.Nop()), time.Second)

	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "ExponentPushToken[x]", snap[0].PushToken)
}

type unlistableRepository struct {
	*device.InMemoryRepository
}

func (unlistableRepository) List(context.Context) ([]*device.Registration, error) {
	return nil, errors.New("connection refused")
}

func TestFirstSnapshot_FailedSubscriptionIsAnError(t *testing.T) {
	svc := device.NewService(unlistableRepository{device.NewInMemoryRepository()}, nil, zerolog.Nop())
	store := registry.NewLocal(svc, zerolog.Nop())

	for i := 0; i < 20; i++ {
		snap, err := firstSnapshot(context.Background(), store, time.Second)
		require.Error(t, err, "attempt %d", i)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Nil(t, snap)
	}
}

func TestTokenIssue(t *testing.T) {
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut

	err := app.Run([]string{"swarmctl", "token", "issue", "--operator", "ops", "--key", "k", "--ttl", "1h"})
	require.NoError(t, err)

	svc, err := auth.NewTokenService(auth.TokenConfig{SigningKey: "k", Issuer: "swarmpush", Audience: "swarmpush-api"})
	require.NoError(t, err)
	operator, err := svc.Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", operator)
	assert.Contains(t, errOut.String(), "expires")
}
