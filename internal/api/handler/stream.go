package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/swarmpush/swarmpush/internal/registry"
)

const (
	// Time allowed to write a snapshot to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

// StreamHandler serves live registry snapshots over a websocket.
type StreamHandler struct {
	store    registry.Store
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a StreamHandler over store.
func NewStreamHandler(store registry.Store, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Read-only stream of data that is public over GET /v1/devices.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Stream handles GET /v1/devices/stream. Each message is one JSON array
// holding every registration.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.store.Subscribe(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to registry")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer sub.Close()

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			h.closeGoingAway(conn, sub)
			return
		case snap, ok := <-sub.Snapshots():
			// The channel closes just before Done, so either may fire first.
			if !ok {
				h.closeGoingAway(conn, sub)
				return
			}
			if snap == nil {
				snap = registry.Snapshot{}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) closeGoingAway(conn *websocket.Conn, sub *registry.Subscription) {
	<-sub.Done()
	if err := sub.Err(); err != nil {
		h.logger.Warn().Err(err).Msg("registry subscription ended")
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}

// readPump discards client messages and cancels the stream once the peer
// goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}
