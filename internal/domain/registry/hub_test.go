package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToEveryWatcher(t *testing.T) {
	h := NewHub()
	a, ok := h.Register()
	require.True(t, ok)
	b, ok := h.Register()
	require.True(t, ok)
	assert.Equal(t, 2, h.Watchers())

	assert.Equal(t, 2, h.Broadcast([]byte("s1")))
	assert.Equal(t, []byte("s1"), <-a.Recv())
	assert.Equal(t, []byte("s1"), <-b.Recv())
}

func TestWatcherDropsOldestWhenFull(t *testing.T) {
	h := NewHub(WithMailboxSize(2))
	w, _ := h.Register()

	for _, s := range []string{"s1", "s2", "s3", "s4"} {
		h.Broadcast([]byte(s))
	}

	assert.Equal(t, uint64(2), w.Dropped())
	assert.Equal(t, []byte("s3"), <-w.Recv())
	assert.Equal(t, []byte("s4"), <-w.Recv())
}

func TestHubUnregister(t *testing.T) {
	h := NewHub()
	w, _ := h.Register()

	h.Unregister(w.ID())
	h.Unregister(w.ID())
	h.Unregister(uuid.New())

	assert.Zero(t, h.Watchers())
	assert.Zero(t, h.Broadcast([]byte("s1")))
	assert.False(t, w.Push([]byte("late")))

	select {
	case <-w.Done():
	default:
		t.Fatal("watcher not closed")
	}
}

func TestHubShutdown(t *testing.T) {
	h := NewHub()
	a, _ := h.Register()
	b, _ := h.Register()

	h.Shutdown()

	<-a.Done()
	<-b.Done()
	assert.Zero(t, h.Watchers())

	_, ok := h.Register()
	assert.False(t, ok)
	assert.Zero(t, h.Broadcast([]byte("s1")))
}

func TestWithMailboxSizeIgnoresNonPositive(t *testing.T) {
	h := NewHub(WithMailboxSize(0))
	assert.Equal(t, DefaultMailboxSize, h.mailboxSize)
}
