package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/registry"
)

func TestHTTPClient_Upsert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/devices", r.URL.Path)

		var req models.DeviceRegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ExponentPushToken[abc]", req.PushToken)
		assert.Nil(t, req.UserName)

		reg := req.Registration()
		reg.UserName = strPtr("Alice")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.DeviceRegisterResponse{Message: "Device registered", DeviceInfo: reg})
	}))
	defer server.Close()

	client := registry.NewHTTPClient(registry.HTTPClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})
	stored, err := client.Upsert(context.Background(), device.NewRegistration("ExponentPushToken[abc]", nil, nil, nil))

	require.NoError(t, err)
	require.NotNil(t, stored.UserName)
	assert.Equal(t, "Alice", *stored.UserName)
}

func TestHTTPClient_UpsertProblem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		models.NewBadRequest("req_1", "pushToken is required", nil).Write(w)
	}))
	defer server.Close()

	client := registry.NewHTTPClient(registry.HTTPClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})
	_, err := client.Upsert(context.Background(), device.Registration{})

	var statusErr *registry.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "pushToken is required", statusErr.Detail)
}

func TestHTTPClient_SubscribeResubscribesAfterDrop(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/devices/stream", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)
		snap := []device.Registration{device.NewRegistration("ExponentPushToken[a]", nil, nil, nil)}
		if n > 1 {
			snap = append(snap, device.NewRegistration("ExponentPushToken[b]", nil, nil, nil))
		}
		_ = conn.WriteJSON(snap)

		if n == 1 {
			// Drop the first stream.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := registry.NewHTTPClient(registry.HTTPClientConfig{
		BaseURL:    server.URL,
		MaxBackoff: 50 * time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	sub, err := client.Subscribe(context.Background())
	require.NoError(t, err)

	snap := nextSnapshot(t, sub, func(s registry.Snapshot) bool { return len(s) == 2 })
	assert.Equal(t, "ExponentPushToken[b]", snap[1].PushToken)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))

	sub.Close()
	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
}

func TestHTTPClient_SubscribeRejectsBadURL(t *testing.T) {
	client := registry.NewHTTPClient(registry.HTTPClientConfig{BaseURL: "ftp://example.com"})
	_, err := client.Subscribe(context.Background())
	assert.Error(t, err)
}
