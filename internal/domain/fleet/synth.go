package fleet

import (
	"math/rand/v2"
	"time"

	"github.com/webitel/shardscope/internal/domain/model"
)

const (
	DefaultFallbackShards = 5
	DefaultSeed           = 0x5eed
)

// Synthesizer builds plausible placeholder telemetry for an unreachable bot.
// Output depends only on the seed and shard count, never on the wall clock
// except for timestamps.
type Synthesizer struct {
	shards int
	seed   uint64
	now    func() time.Time
}

// SynthOption configures a Synthesizer.
type SynthOption func(*Synthesizer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SynthOption {
	return func(s *Synthesizer) { s.now = now }
}

func NewSynthesizer(shards int, seed uint64, opts ...SynthOption) *Synthesizer {
	if shards <= 0 {
		shards = DefaultFallbackShards
	}
	s := &Synthesizer{shards: shards, seed: seed, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synthesizer) rng() *rand.Rand {
	return rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
}

// Shards returns the synthetic shard list; every record carries IsFallback.
func (s *Synthesizer) Shards() []model.ShardRecord {
	r := s.rng()
	now := s.now().UTC()

	out := make([]model.ShardRecord, s.shards)
	for i := range out {
		guilds := 800 + r.IntN(400)
		ts := now
		out[i] = model.ShardRecord{
			ShardID:          i,
			Status:           model.ShardOnline,
			GuildCount:       guilds,
			UserCount:        guilds * (40 + r.IntN(30)),
			ChannelCount:     guilds * (8 + r.IntN(8)),
			VoiceConnections: r.IntN(25),
			Ping:             40 + r.IntN(80),
			UptimeSeconds:    int64(3600 * (12 + r.IntN(240))),
			MemoryMB:         float64(120+r.IntN(180)) + float64(r.IntN(100))/100,
			LastUpdate:       &ts,
			IsFallback:       true,
		}
	}
	return out
}

// Fleet returns the synthetic shards together with their summary.
func (s *Synthesizer) Fleet() model.Fleet {
	shards := s.Shards()
	sum := Summarize(shards)
	sum.IsFallback = true
	sum.GeneratedAt = s.now().UTC()
	return model.Fleet{Summary: sum, Shards: shards}
}

// Health reports the bot as offline; placeholder telemetry never claims liveness.
func (s *Synthesizer) Health() model.Health {
	return model.Health{
		Status:     string(model.ShardOffline),
		Online:     false,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
		IsFallback: true,
	}
}

func (s *Synthesizer) BotStats() model.BotStats {
	f := s.Fleet()
	r := s.rng()

	var (
		channels int
		uptime   int64
		memory   float64
	)
	for _, sh := range f.Shards {
		channels += sh.ChannelCount
		uptime = max(uptime, sh.UptimeSeconds)
		memory += sh.MemoryMB
	}

	return model.BotStats{
		Guilds:        f.Summary.TotalGuilds,
		Users:         f.Summary.TotalUsers,
		Channels:      channels,
		Shards:        f.Summary.TotalShards,
		CommandsRun:   int64(10000 + r.IntN(90000)),
		UptimeSeconds: uptime,
		MemoryMB:      memory,
		IsFallback:    true,
	}
}

func (s *Synthesizer) Overview() model.Overview {
	return model.Overview{
		Health:     s.Health(),
		Stats:      s.BotStats(),
		Summary:    s.Fleet().Summary,
		IsFallback: true,
	}
}
