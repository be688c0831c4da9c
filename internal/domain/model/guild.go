package model

import "time"

// SearchMethod tells the caller how trustworthy a locate result is.
type SearchMethod string

const (
	SearchExact        SearchMethod = "exact"
	SearchHashEstimate SearchMethod = "hashEstimate"
	SearchError        SearchMethod = "error"
)

// GuildInfo is only populated for exact (non-estimated) results.
type GuildInfo struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	MemberCount  int        `json:"memberCount,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	OwnerID      string     `json:"ownerId,omitempty"`
	ChannelCount int        `json:"channelCount,omitempty"`
	RoleCount    int        `json:"roleCount,omitempty"`
	EmojiCount   int        `json:"emojiCount,omitempty"`
	BoostLevel   int        `json:"boostLevel,omitempty"`
}

// GuildLocateResult is ephemeral: placement may change during rebalancing,
// so it is never cached.
type GuildLocateResult struct {
	Found             bool         `json:"found"`
	ShardID           *int         `json:"shardId"`
	Guild             *GuildInfo   `json:"guildInfo"`
	SearchMethod      SearchMethod `json:"searchMethod"`
	SearchedAllShards bool         `json:"searchedAllShards"`
	Timestamp         time.Time    `json:"timestamp"`
	Error             *string      `json:"error"`
	Suggestions       []string     `json:"suggestions"`
}

// GuildSearch is the payload of the bot's cross-shard search operation.
type GuildSearch struct {
	Found   bool       `json:"found"`
	ShardID *int       `json:"shardId"`
	Guild   *GuildInfo `json:"guild"`
}
