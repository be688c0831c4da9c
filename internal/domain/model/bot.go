package model

// Health is the payload of the health and status operations.
type Health struct {
	Status        string `json:"status"`
	Online        bool   `json:"online"`
	UptimeSeconds int64  `json:"uptime"`
	Version       string `json:"version,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	IsFallback    bool   `json:"isFallback,omitempty"`
}

// BotStats is the payload of bot/stats.
type BotStats struct {
	Guilds        int     `json:"guilds"`
	Users         int     `json:"users"`
	Channels      int     `json:"channels"`
	Shards        int     `json:"shards"`
	CommandsRun   int64   `json:"commandsRun"`
	UptimeSeconds int64   `json:"uptime"`
	MemoryMB      float64 `json:"memoryUsage"`
	IsFallback    bool    `json:"isFallback,omitempty"`
}

// Overview is what the dashboard and overview operations degrade to, and
// what the dashboard API serves after fetching health and fleet together.
type Overview struct {
	Health     Health       `json:"health"`
	Stats      BotStats     `json:"stats"`
	Summary    FleetSummary `json:"summary"`
	IsFallback bool         `json:"isFallback"`
}
