package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/webitel/shardscope/internal/domain/registry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSHandler streams every published fleet snapshot to a websocket client.
type WSHandler struct {
	logger   *slog.Logger
	hub      registry.Hubber
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, hub registry.Hubber) *WSHandler {
	return &WSHandler{
		logger: logger.With("component", "ws"),
		hub:    hub,
		upgrader: websocket.Upgrader{
			// read-only telemetry; dashboards are served from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. REGISTER FIRST so no snapshot published during the upgrade is lost
	watcher, ok := h.hub.Register()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unregister(watcher.ID())

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	h.logger.Info("ws opened", "watcher_id", watcher.ID())
	defer h.logger.Info("ws closed", "watcher_id", watcher.ID(), "dropped", watcher.Dropped())

	// 3. READ PUMP: only control frames are expected; a read error means the peer left
	gone := make(chan struct{})
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// 4. MAIN WS PUMP LOOP
	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-watcher.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case data := <-watcher.Recv():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("ws send failed", "error", err)
				return
			}
		}
	}
}
