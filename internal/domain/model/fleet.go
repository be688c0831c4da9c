package model

import "time"

// LoadBalanceClass grades how evenly guilds are spread across shards.
type LoadBalanceClass string

const (
	LoadPerfect        LoadBalanceClass = "Perfect"
	LoadExcellent      LoadBalanceClass = "Excellent"
	LoadGood           LoadBalanceClass = "Good"
	LoadModerate       LoadBalanceClass = "Moderate"
	LoadNeedsRebalance LoadBalanceClass = "NeedsRebalance"
)

// FleetSummary is derived from a shard list on every fetch and never stored.
type FleetSummary struct {
	TotalShards   int `json:"totalShards"`
	OnlineShards  int `json:"onlineShards"`
	OfflineShards int `json:"offlineShards"`
	TotalGuilds   int `json:"totalGuilds"`
	TotalUsers    int `json:"totalUsers"`
	// AveragePing covers online shards with a positive ping only.
	AveragePing      float64          `json:"averagePing"`
	LoadBalance      LoadBalanceClass `json:"loadBalance"`
	ImbalancePercent float64          `json:"imbalancePercent"`
	IsFallback       bool             `json:"isFallback"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

// Fleet pairs the summary with the records it was computed from.
type Fleet struct {
	Summary FleetSummary  `json:"summary"`
	Shards  []ShardRecord `json:"shards"`
}
