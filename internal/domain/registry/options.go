package registry

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines how many snapshots a slow watcher may lag behind before the
// oldest ones are dropped.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.mailboxSize = size
		}
	}
}
