package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/webitel/shardscope/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*FleetSnapshotV1)(nil)

// FleetSnapshotV1 is one poll of the shard fleet as seen by watchers.
type FleetSnapshotV1 struct {
	ID         string              `json:"id"`
	Kind       EventKind           `json:"kind"`
	OccurredAt int64               `json:"occurredAt"`
	Summary    model.FleetSummary  `json:"summary"`
	Shards     []model.ShardRecord `json:"shards"`

	topic string
}

func NewFleetSnapshotV1(topic string, f model.Fleet, at time.Time) *FleetSnapshotV1 {
	shards := f.Shards
	if shards == nil {
		shards = []model.ShardRecord{}
	}
	return &FleetSnapshotV1{
		ID:         uuid.NewString(),
		Kind:       FleetSnapshot,
		OccurredAt: at.UnixMilli(),
		Summary:    f.Summary,
		Shards:     shards,
		topic:      topic,
	}
}

// [INTERFACE_IMPLEMENTATION]
func (e *FleetSnapshotV1) GetID() string         { return e.ID }
func (e *FleetSnapshotV1) GetKind() EventKind    { return e.Kind }
func (e *FleetSnapshotV1) GetOccurredAt() int64  { return e.OccurredAt }
func (e *FleetSnapshotV1) GetRoutingKey() string { return e.topic }
