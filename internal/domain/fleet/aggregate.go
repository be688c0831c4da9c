// Package fleet reduces per-shard telemetry into fleet-wide health metrics.
package fleet

import (
	"github.com/webitel/shardscope/internal/domain/model"
)

// Load-balance band ceilings, in percent. A value equal to a ceiling
// falls into the next, stricter band.
const (
	excellentBelow = 10.0
	goodBelow      = 25.0
	moderateBelow  = 50.0
)

// Summarize computes totals, average ping and load balance for shards.
func Summarize(shards []model.ShardRecord) model.FleetSummary {
	s := model.FleetSummary{TotalShards: len(shards)}

	var (
		pingSum   int
		pingCount int
	)
	for _, sh := range shards {
		if sh.Online() {
			s.OnlineShards++
			if sh.Ping > 0 {
				pingSum += sh.Ping
				pingCount++
			}
		}
		s.TotalGuilds += sh.GuildCount
		s.TotalUsers += sh.UserCount
		if sh.IsFallback {
			s.IsFallback = true
		}
	}
	// unknown shards count as offline
	s.OfflineShards = s.TotalShards - s.OnlineShards

	if pingCount > 0 {
		s.AveragePing = float64(pingSum) / float64(pingCount)
	}

	s.ImbalancePercent = Imbalance(shards)
	s.LoadBalance = Classify(shards)
	return s
}

// Imbalance returns (max-min)/avg*100 over shards hosting at least one guild,
// or 0 when fewer than two such shards exist.
func Imbalance(shards []model.ShardRecord) float64 {
	var (
		n      int
		sum    int
		lo, hi int
	)
	for _, sh := range shards {
		g := sh.GuildCount
		if g <= 0 {
			continue
		}
		if n == 0 || g < lo {
			lo = g
		}
		if n == 0 || g > hi {
			hi = g
		}
		sum += g
		n++
	}
	if n < 2 {
		return 0
	}

	avg := float64(sum) / float64(n)
	return float64(hi-lo) * 100 / avg
}

// Classify grades the guild distribution of shards.
func Classify(shards []model.ShardRecord) model.LoadBalanceClass {
	populated := 0
	for _, sh := range shards {
		if sh.GuildCount > 0 {
			populated++
		}
	}
	if populated < 2 {
		return model.LoadPerfect
	}
	return ClassifyImbalance(Imbalance(shards))
}

// ClassifyImbalance maps an imbalance percentage onto a band.
func ClassifyImbalance(pct float64) model.LoadBalanceClass {
	switch {
	case pct < excellentBelow:
		return model.LoadExcellent
	case pct < goodBelow:
		return model.LoadGood
	case pct < moderateBelow:
		return model.LoadModerate
	default:
		return model.LoadNeedsRebalance
	}
}
