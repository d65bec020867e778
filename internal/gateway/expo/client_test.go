package expo_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmpush/swarmpush/internal/dispatch"
	"github.com/swarmpush/swarmpush/internal/gateway/expo"
	"github.com/swarmpush/swarmpush/internal/provider/resilience"
)

func TestClient_PushSendsOneBatch(t *testing.T) {
	var calls atomic.Int32
	var got []dispatch.Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"tkt-1"},
			{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}
		]}`))
	}))
	defer server.Close()

	client := expo.NewClient(expo.ClientConfig{URL: server.URL, AccessToken: "secret"})
	msgs := dispatch.BuildMessages([]string{"ExponentPushToken[a]", "ExponentPushToken[b]"}, "Hello", "World")

	tickets, err := client.Push(context.Background(), msgs)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, msgs, got)
	require.Len(t, tickets, 2)
	assert.Equal(t, dispatch.Ticket{To: "ExponentPushToken[a]", Status: dispatch.TicketOK, ID: "tkt-1"}, tickets[0])
	assert.Equal(t, dispatch.TicketError, tickets[1].Status)
	assert.Equal(t, "DeviceNotRegistered", tickets[1].Error)
}

func TestClient_PushAcceptsBodyWithoutTickets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := expo.NewClient(expo.ClientConfig{URL: server.URL})
	tickets, err := client.Push(context.Background(), dispatch.BuildMessages([]string{"a"}, "t", "b"))

	require.NoError(t, err)
	assert.Nil(t, tickets)
}

func TestClient_PushNon2xxIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"errors":[{"code":"UNAVAILABLE"}]}`))
	}))
	defer server.Close()

	reg := resilience.NewRegistry()
	client := expo.NewClient(expo.ClientConfig{URL: server.URL, Registry: reg})

	_, err := client.Push(context.Background(), dispatch.BuildMessages([]string{"a"}, "t", "b"))
	require.Error(t, err)

	var statusErr *expo.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())

	h, ok := reg.Health(expo.ProviderName)
	require.True(t, ok)
	assert.NotNil(t, h.LastFailureAt)
}

func TestClient_PushStatusErrorCarriesExpoError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
		errText string
	}{
		{
			name:    "request level error",
			body:    `{"errors":[{"code":"UNAUTHORIZED","message":"bad access token"}]}`,
			code:    "UNAUTHORIZED",
			message: "bad access token",
			errText: "expo push: unexpected status 401: UNAUTHORIZED: bad access token",
		},
		{
			name:    "plain text body",
			body:    "gateway timeout",
			errText: "expo push: unexpected status 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := expo.NewClient(expo.ClientConfig{URL: server.URL, HTTPClient: server.Client()})
			_, err := client.Push(context.Background(), dispatch.BuildMessages([]string{"a"}, "t", "b"))

			var statusErr *expo.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.code, statusErr.Code)
			assert.Equal(t, tt.message, statusErr.Message)
			assert.Equal(t, tt.body, statusErr.Body)
			assert.EqualError(t, err, tt.errText)
		})
	}
}

func TestClient_PushNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := expo.NewClient(expo.ClientConfig{URL: url})
	_, err := client.Push(context.Background(), dispatch.BuildMessages([]string{"a"}, "t", "b"))
	assert.Error(t, err)
}
