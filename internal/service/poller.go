package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/shardscope/internal/domain/event"
	"github.com/webitel/shardscope/internal/domain/model"
)

const publishTimeout = 5 * time.Second

// SnapshotPublisher ships events to the message bus.
type SnapshotPublisher interface {
	Publish(ctx context.Context, ev event.Eventer) error
}

// FleetPoller keeps the fleet summary fresh in the background and
// publishes every new result for live watchers.
type FleetPoller struct {
	session *Session[model.Fleet]
	events  SnapshotPublisher
	topic   string
	logger  *slog.Logger

	mu            sync.Mutex
	lastPublished time.Time
}

func NewFleetPoller(fleet *FleetService, events SnapshotPublisher, topic string, interval, maxBackoff time.Duration, logger *slog.Logger) *FleetPoller {
	p := &FleetPoller{
		events: events,
		topic:  topic,
		logger: logger.With("component", "fleet_poller"),
	}
	p.session = NewSession("fleet", fleet.Fleet, interval, logger,
		WithUpdateHook(p.onUpdate),
		WithMaxBackoff[model.Fleet](maxBackoff),
	)
	return p
}

func (p *FleetPoller) Start(ctx context.Context) error { return p.session.Start(ctx) }

func (p *FleetPoller) Stop() { p.session.Stop() }

// Refetch polls immediately, e.g. after the cache was invalidated.
func (p *FleetPoller) Refetch() { p.session.Refetch() }

func (p *FleetPoller) State() SessionState[model.Fleet] { return p.session.State() }

func (p *FleetPoller) onUpdate(st SessionState[model.Fleet]) {
	if st.Loading || !st.HasData || st.Err != nil {
		return
	}

	p.mu.Lock()
	if !st.LastUpdated.After(p.lastPublished) {
		p.mu.Unlock()
		return
	}
	p.lastPublished = st.LastUpdated
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ev := event.NewFleetSnapshotV1(p.topic, st.Data, st.LastUpdated)
	if err := p.events.Publish(ctx, ev); err != nil {
		p.logger.Warn("FLEET_SNAPSHOT_PUBLISH_FAILED", "err", err, "event_id", ev.ID)
		return
	}
	p.logger.Debug("FLEET_SNAPSHOT_PUBLISHED",
		"event_id", ev.ID,
		"online_shards", st.Data.Summary.OnlineShards,
		"total_shards", st.Data.Summary.TotalShards,
		"fallback", st.Data.Summary.IsFallback,
	)
}
