package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ShardStatus is the connection state reported for a single shard.
type ShardStatus string

const (
	ShardOnline  ShardStatus = "online"
	ShardOffline ShardStatus = "offline"
	ShardUnknown ShardStatus = "unknown"
)

// ParseShardStatus normalizes the status strings different bot builds emit.
func ParseShardStatus(s string) ShardStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "ready", "connected":
		return ShardOnline
	case "offline", "disconnected", "dead":
		return ShardOffline
	default:
		return ShardUnknown
	}
}

// [SHARD_RECORD] LIVE TELEMETRY OF ONE SHARD, READ-ONLY TO THIS CLIENT
type ShardRecord struct {
	ShardID          int         `json:"shardId"`
	Status           ShardStatus `json:"status"`
	GuildCount       int         `json:"guildCount"`
	UserCount        int         `json:"userCount"`
	ChannelCount     int         `json:"channelCount"`
	VoiceConnections int         `json:"voiceConnections"`
	// Ping is only meaningful while the shard is online.
	Ping          int        `json:"ping"`
	UptimeSeconds int64      `json:"uptime"`
	MemoryMB      float64    `json:"memoryUsage"`
	LastUpdate    *time.Time `json:"lastUpdate,omitempty"`
	IsFallback    bool       `json:"isFallback,omitempty"`
}

// Online reports whether the shard currently counts towards the online total.
func (s ShardRecord) Online() bool { return s.Status == ShardOnline }

// wireShard accepts every field spelling seen across bot API versions.
type wireShard struct {
	ShardID          *int            `json:"shardId"`
	ID               *int            `json:"id"`
	Status           json.RawMessage `json:"status"`
	GuildCount       *int            `json:"guildCount"`
	Guilds           *int            `json:"guilds"`
	UserCount        *int            `json:"userCount"`
	Users            *int            `json:"users"`
	ChannelCount     *int            `json:"channelCount"`
	Channels         *int            `json:"channels"`
	VoiceConnections int             `json:"voiceConnections"`
	Ping             float64         `json:"ping"`
	Uptime           float64         `json:"uptime"`
	MemoryUsage      float64         `json:"memoryUsage"`
	LastUpdate       *time.Time      `json:"lastUpdate"`
	IsFallback       bool            `json:"isFallback"`
}

func (s *ShardRecord) UnmarshalJSON(b []byte) error {
	var w wireShard
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	*s = ShardRecord{
		ShardID:          firstInt(w.ShardID, w.ID),
		Status:           decodeStatus(w.Status),
		GuildCount:       nonNegative(firstInt(w.GuildCount, w.Guilds)),
		UserCount:        nonNegative(firstInt(w.UserCount, w.Users)),
		ChannelCount:     nonNegative(firstInt(w.ChannelCount, w.Channels)),
		VoiceConnections: nonNegative(w.VoiceConnections),
		Ping:             nonNegative(int(w.Ping)),
		UptimeSeconds:    int64(max(w.Uptime, 0)),
		MemoryMB:         max(w.MemoryUsage, 0),
		LastUpdate:       w.LastUpdate,
		IsFallback:       w.IsFallback,
	}
	return nil
}

// decodeStatus handles both string statuses and the numeric gateway codes
// (0 == ready) some bot builds report.
func decodeStatus(raw json.RawMessage) ShardStatus {
	if len(raw) == 0 {
		return ShardUnknown
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return ParseShardStatus(str)
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		if code == 0 {
			return ShardOnline
		}
		return ShardOffline
	}
	return ShardUnknown
}

func firstInt(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
