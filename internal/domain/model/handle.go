package model

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// HandleState tracks one in-flight logical request.
type HandleState int

const (
	HandlePending HandleState = iota
	HandleCompleted
	HandleAborted
	HandleFailed
)

func (s HandleState) String() string {
	switch s {
	case HandlePending:
		return "pending"
	case HandleCompleted:
		return "completed"
	case HandleAborted:
		return "aborted"
	case HandleFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestHandle owns the cancellation of a single dispatcher call.
// Once it leaves pending its state never changes again.
type RequestHandle struct {
	ID  uuid.UUID
	Key string

	mu     sync.Mutex
	state  HandleState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRequestHandle derives a cancelable context for the call it represents.
func NewRequestHandle(ctx context.Context, key string) (*RequestHandle, context.Context) {
	callCtx, cancel := context.WithCancel(ctx)
	return &RequestHandle{
		ID:     uuid.New(),
		Key:    key,
		state:  HandlePending,
		cancel: cancel,
		done:   make(chan struct{}),
	}, callCtx
}

func (h *RequestHandle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the handle leaves pending.
func (h *RequestHandle) Done() <-chan struct{} {
	return h.done
}

// Abort cancels a pending handle. It returns false if the handle had already settled.
func (h *RequestHandle) Abort() bool {
	return h.settle(HandleAborted)
}

// Complete and Fail settle a pending handle; both return false when it was
// aborted first, in which case the caller must discard its result.
func (h *RequestHandle) Complete() bool { return h.settle(HandleCompleted) }

func (h *RequestHandle) Fail() bool { return h.settle(HandleFailed) }

func (h *RequestHandle) settle(to HandleState) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != HandlePending {
		return false
	}
	h.state = to
	h.cancel()
	close(h.done)
	return true
}
