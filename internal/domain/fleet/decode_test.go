package fleet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/shardscope/internal/domain/model"
)

func TestDecodeShapes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		summary string
	}{
		{
			name: "bare list",
			data: `[{"shardId":0,"status":"online","guilds":300},{"id":1,"status":"ready","guildCount":320}]`,
		},
		{
			name: "shards with summary",
			data: `{"shards":[{"shardId":0,"status":"online","guilds":300},{"shardId":1,"status":"online","guilds":320}],"summary":{"totalShards":2}}`,
		},
		{
			name: "nested sharding block",
			data: `{"sharding":{"shards":[{"shardId":0,"status":0,"guilds":300},{"shardId":1,"status":0,"guilds":320}],"summary":{"totalShards":2}}}`,
		},
		{
			name:    "envelope level summary",
			data:    `{"shards":[{"shardId":0,"status":"online","guilds":300},{"shardId":1,"status":"online","guilds":320}]}`,
			summary: `{"totalShards":2,"onlineShards":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shards, _, err := Decode(json.RawMessage(tt.data), json.RawMessage(tt.summary))
			require.NoError(t, err)
			require.Len(t, shards, 2)

			s := Summarize(shards)
			assert.Equal(t, 620, s.TotalGuilds)
			assert.Equal(t, 2, s.OnlineShards)
			assert.Equal(t, model.LoadExcellent, s.LoadBalance)
		})
	}
}

func TestDecodeSummaryOnly(t *testing.T) {
	shards, up, err := Decode(nil, json.RawMessage(`{"totalShards":4,"onlineShards":3,"totalGuilds":1000}`))
	require.NoError(t, err)
	assert.Empty(t, shards)
	require.NotNil(t, up)
	assert.Equal(t, 4, up.TotalShards)
	assert.Equal(t, 1, up.OfflineShards)
	assert.Equal(t, 1000, up.TotalGuilds)
}

func TestDecodeRejectsScalars(t *testing.T) {
	_, _, err := Decode(json.RawMessage(`"nope"`), nil)
	assert.Error(t, err)
}

func TestDecodeNormalizesRecords(t *testing.T) {
	shards, _, err := Decode(json.RawMessage(`[{"shardId":3,"status":"weird","guilds":-5,"ping":12.7,"memoryUsage":-1}]`), nil)
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, 3, shards[0].ShardID)
	assert.Equal(t, model.ShardUnknown, shards[0].Status)
	assert.Zero(t, shards[0].GuildCount)
	assert.Equal(t, 12, shards[0].Ping)
	assert.Zero(t, shards[0].MemoryMB)
}
