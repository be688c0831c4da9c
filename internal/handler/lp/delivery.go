package lp

import (
	"net/http"
	"time"

	"github.com/webitel/shardscope/internal/domain/registry"
)

const DefaultPollTimeout = 30 * time.Second

type LPHandler struct {
	hub     registry.Hubber
	timeout time.Duration
}

func NewLPHandler(hub registry.Hubber, timeout time.Duration) *LPHandler {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &LPHandler{
		hub:     hub,
		timeout: timeout,
	}
}

// Poll handles the long-polling request.
// It holds the connection until the next snapshot is published or timeout occurs.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Temporary Subscription.
	// The watcher lives only for the duration of this HTTP request.
	watcher, ok := h.hub.Register()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unregister(watcher.ID())

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	// 2. Wait for data or timeout.
	select {
	case <-r.Context().Done():
		// Client disconnected.
		return

	case <-watcher.Done():
		w.WriteHeader(http.StatusServiceUnavailable)
		return

	case <-timer.C:
		// Standard Long-Polling timeout to prevent hanging connections.
		w.WriteHeader(http.StatusNoContent)
		return

	case data := <-watcher.Recv():
		// 3. Final transmission. Only the newest snapshot matters.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
