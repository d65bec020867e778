package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmpush/swarmpush/internal/api/handler"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/registry"
)

// brokenListRepository stores devices but cannot list them.
type brokenListRepository struct {
	*device.InMemoryRepository
}

func (brokenListRepository) List(context.Context) ([]*device.Registration, error) {
	return nil, errors.New("connection refused")
}

func TestStream_FailedSubscriptionSendsOnlyCloseFrame(t *testing.T) {
	svc := device.NewService(brokenListRepository{device.NewInMemoryRepository()}, nil, zerolog.Nop())
	h := handler.NewStreamHandler(registry.NewLocal(svc, zerolog.Nop()), zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	// Done and the closed snapshot channel race; repeat so both paths run.
	for i := 0; i < 20; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		resp.Body.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		msgType, data, err := conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway),
			"attempt %d: got frame type %d %q, err %v", i, msgType, data, err)
		conn.Close()
	}
}
