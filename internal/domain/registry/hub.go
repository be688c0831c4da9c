/*
Package registry fans published fleet snapshots out to every live watcher
on this node.

Each watcher owns a small mailbox so one slow websocket never blocks the
broker consumer or the other watchers.
*/
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const DefaultMailboxSize = 8

// Hubber defines the gateway for watcher management and snapshot routing.
type Hubber interface {
	Broadcast(payload []byte) int
	Register() (*Watcher, bool)
	Unregister(id uuid.UUID)
	Watchers() int
	Shutdown()
}

// Hub keeps watchers in a sync.Map; registration is rare and broadcast is
// the hot path.
type Hub struct {
	watchers    sync.Map
	count       atomic.Int64
	mailboxSize int

	mu     sync.RWMutex
	closed bool
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{mailboxSize: DefaultMailboxSize}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Broadcast pushes payload to every watcher and returns how many accepted it.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}

	delivered := 0
	h.watchers.Range(func(_, v any) bool {
		if w, ok := v.(*Watcher); ok && w.Push(payload) {
			delivered++
		}
		return true
	})
	return delivered
}

// Register attaches a new watcher. It fails once the hub is shut down.
func (h *Hub) Register() (*Watcher, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, false
	}

	w := newWatcher(h.mailboxSize)
	h.watchers.Store(w.id, w)
	h.count.Add(1)
	return w, true
}

// Unregister performs [GRACEFUL_RECLAMATION] of a watcher. Unknown ids are ignored.
func (h *Hub) Unregister(id uuid.UUID) {
	if v, ok := h.watchers.LoadAndDelete(id); ok {
		v.(*Watcher).close()
		h.count.Add(-1)
	}
}

func (h *Hub) Watchers() int { return int(h.count.Load()) }

// Shutdown closes every watcher; their Done channels fire.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.watchers.Range(func(k, _ any) bool {
		h.Unregister(k.(uuid.UUID))
		return true
	})
}
