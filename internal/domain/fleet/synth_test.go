package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestSynthesizerIsReproducible(t *testing.T) {
	a := NewSynthesizer(5, 42, WithClock(fixedClock))
	b := NewSynthesizer(5, 42, WithClock(fixedClock))

	assert.Equal(t, a.Shards(), b.Shards())
	assert.Equal(t, a.Shards(), a.Shards())
	assert.Equal(t, a.BotStats(), b.BotStats())
}

func TestSynthesizerSeedMatters(t *testing.T) {
	a := NewSynthesizer(5, 1, WithClock(fixedClock)).Shards()
	b := NewSynthesizer(5, 2, WithClock(fixedClock)).Shards()
	assert.NotEqual(t, a, b)
}

func TestSynthesizerLabelsEverything(t *testing.T) {
	s := NewSynthesizer(0, 7, WithClock(fixedClock))

	f := s.Fleet()
	require.Len(t, f.Shards, DefaultFallbackShards)
	assert.True(t, f.Summary.IsFallback)
	assert.Equal(t, DefaultFallbackShards, f.Summary.TotalShards)
	for i, sh := range f.Shards {
		assert.Equal(t, i, sh.ShardID)
		assert.True(t, sh.IsFallback)
		assert.Positive(t, sh.GuildCount)
		assert.Positive(t, sh.Ping)
	}

	assert.True(t, s.Health().IsFallback)
	assert.False(t, s.Health().Online)
	assert.True(t, s.BotStats().IsFallback)
	assert.True(t, s.Overview().IsFallback)
	assert.Equal(t, f.Summary.TotalGuilds, s.BotStats().Guilds)
}
