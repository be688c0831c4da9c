package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/webitel/shardscope/internal/domain/model"
)

// Different bot API versions nest shard data differently:
//
//	data: [shard, ...]
//	data: {shards: [...], summary: {...}}
//	data: {sharding: {shards: [...], summary: {...}}}
//	summary: {...} next to data in the envelope
//
// Decode folds all of them into one canonical shape.
type shardingBlock struct {
	Shards  []model.ShardRecord `json:"shards"`
	Summary *upstreamSummary    `json:"summary"`
}

type dataObject struct {
	shardingBlock
	Sharding *shardingBlock `json:"sharding"`
}

type upstreamSummary struct {
	TotalShards  int     `json:"totalShards"`
	OnlineShards int     `json:"onlineShards"`
	TotalGuilds  int     `json:"totalGuilds"`
	TotalUsers   int     `json:"totalUsers"`
	AveragePing  float64 `json:"averagePing"`
}

func (u *upstreamSummary) toModel() *model.FleetSummary {
	if u == nil {
		return nil
	}
	online := min(u.OnlineShards, u.TotalShards)
	return &model.FleetSummary{
		TotalShards:   u.TotalShards,
		OnlineShards:  online,
		OfflineShards: u.TotalShards - online,
		TotalGuilds:   u.TotalGuilds,
		TotalUsers:    u.TotalUsers,
		AveragePing:   u.AveragePing,
		LoadBalance:   model.LoadPerfect,
	}
}

// Decode extracts shard records from an operation payload. summary is the
// envelope-level summary, if the API sent one. The returned summary is the
// upstream one and is only meant to be used when no records were present.
func Decode(data, summary json.RawMessage) ([]model.ShardRecord, *model.FleetSummary, error) {
	var (
		shards   []model.ShardRecord
		upstream *upstreamSummary
	)

	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &shards); err != nil {
			return nil, nil, fmt.Errorf("decode shard list: %w", err)
		}
	case trimmed[0] == '{':
		var obj dataObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, nil, fmt.Errorf("decode shard object: %w", err)
		}
		shards, upstream = obj.Shards, obj.Summary
		if obj.Sharding != nil {
			if len(shards) == 0 {
				shards = obj.Sharding.Shards
			}
			if upstream == nil {
				upstream = obj.Sharding.Summary
			}
		}
	default:
		return nil, nil, fmt.Errorf("decode shards: unexpected payload %.20q", trimmed)
	}

	if upstream == nil && len(bytes.TrimSpace(summary)) > 0 && !bytes.Equal(bytes.TrimSpace(summary), []byte("null")) {
		var top upstreamSummary
		if err := json.Unmarshal(summary, &top); err != nil {
			return nil, nil, fmt.Errorf("decode envelope summary: %w", err)
		}
		upstream = &top
	}

	return shards, upstream.toModel(), nil
}
