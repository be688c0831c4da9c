package registry

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Watcher is one live consumer of fleet snapshots (a websocket or a
// long-poll request).
type Watcher struct {
	id uuid.UUID

	// [MAILBOX]
	// Decouples the broker handler from slow network writers.
	mailbox chan []byte

	mu      sync.Mutex
	doneCh  chan struct{}
	closed  bool
	dropped atomic.Uint64
}

func newWatcher(size int) *Watcher {
	return &Watcher{
		id:      uuid.New(),
		mailbox: make(chan []byte, size),
		doneCh:  make(chan struct{}),
	}
}

func (w *Watcher) ID() uuid.UUID { return w.id }

// Push queues payload. Snapshots supersede each other, so on overflow the
// oldest queued one is dropped to make room. It returns false once closed.
func (w *Watcher) Push(payload []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}

	for {
		select {
		case w.mailbox <- payload:
			return true
		default:
		}
		select {
		case <-w.mailbox:
			w.dropped.Add(1)
		default:
		}
	}
}

// Recv delivers queued snapshots in order.
func (w *Watcher) Recv() <-chan []byte { return w.mailbox }

// Done is closed when the watcher is unregistered or the hub shuts down.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Dropped counts snapshots discarded because the watcher fell behind.
func (w *Watcher) Dropped() uint64 { return w.dropped.Load() }

func (w *Watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.doneCh)
	}
}
