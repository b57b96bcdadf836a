// Package wsbridge adapts the transport-agnostic Subscription Hub to
// gorilla/websocket, keeping package hub free of any transport dependency.
// writePump/readPump are adapted from jobmanager.JobWSClient, which drove
// one raw client channel directly; here they drain a hub.Subscriber instead.
package wsbridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/foundryml/forge/internal/common"
	"github.com/foundryml/forge/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 512
	pongWait   = 60 * time.Second
)

// Serve upgrades an HTTP request to a websocket connection, registers it
// with h, and streams events to it in JSON form until the client
// disconnects or the hub evicts it for a slow send.
func Serve[T any](h *hub.Hub[T], logger *common.Logger, bufferSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		sub := h.Register(bufferSize)
		logger.Debug().Str("subscriber", sub.Handle).Int("subscribers", h.Count()).Msg("subscriber connected")

		done := make(chan struct{})
		go readPump(conn, h, sub.Handle, logger, done)
		writePump(conn, sub, logger)
		close(done)
		h.Unregister(sub.Handle)
		logger.Debug().Str("subscriber", sub.Handle).Msg("subscriber disconnected")
	}
}

// writePump drains sub.Events to the connection until the channel is closed
// or a write fails, sending periodic pings to detect dead connections.
func writePump[T any](conn *websocket.Conn, sub *hub.Subscriber[T], logger *common.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to marshal progress event")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads inbound frames only to detect the peer closing the
// connection; the subscription carries no client-to-server messages.
func readPump[T any](conn *websocket.Conn, h *hub.Hub[T], handle string, logger *common.Logger, done <-chan struct{}) {
	defer func() { h.Unregister(handle) }()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
