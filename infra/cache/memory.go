package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 1024

// Memory is a bounded in-process store. The LRU caps memory; TTL is
// checked per entry on read.
type Memory struct {
	entries *lru.Cache[string, Entry]
	now     func() time.Time

	// mu orders expiry eviction against Set for the same key.
	mu sync.Mutex
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(size int, opts ...MemoryOption) (*Memory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}

	m := &Memory{entries: entries, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !e.Expired(m.now()) {
		return e.Value, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// a Set may have replaced the entry since it was read
	if cur, ok := m.entries.Peek(key); ok && !cur.Expired(m.now()) {
		return cur.Value, true
	}
	m.entries.Remove(key)
	return nil, false
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		m.entries.Remove(key)
		return
	}
	m.entries.Add(key, Entry{Key: key, Value: value, InsertedAt: m.now(), TTL: ttl})
}

func (m *Memory) Invalidate(_ context.Context, key string) {
	m.entries.Remove(key)
}

// Len counts stored entries, expired ones included until they are read.
func (m *Memory) Len() int { return m.entries.Len() }

func (m *Memory) Close() error {
	m.entries.Purge()
	return nil
}
