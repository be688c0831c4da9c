package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/shardscope/internal/domain/guild"
	"github.com/webitel/shardscope/internal/domain/model"
)

const DefaultHealthTTL = 30 * time.Second

// Locator resolves which shard hosts a guild.
type Locator interface {
	// Locate fails only with a validation error; every other problem is
	// reported inside the result.
	Locate(ctx context.Context, guildID string) (model.GuildLocateResult, error)
}

// ShardCounter supplies the fleet size used for hash estimates.
type ShardCounter interface {
	TotalShards(ctx context.Context) int
}

var (
	notFoundSuggestions = []string{
		"Verify the guild ID is correct",
		"Make sure the bot has been invited to the guild",
		"The guild may have been deleted or the bot removed from it",
	}
	estimateSuggestions = []string{
		"Shard placement is estimated from the guild ID; presence in the guild is not confirmed",
		"Retry once the bot API is reachable to get an exact result",
	}
	offlineSuggestion = "Check that the bot process and its API endpoint are running"
)

// LocatorService searches all shards when the bot is reachable and falls
// back to a hash estimate otherwise.
type LocatorService struct {
	caller Caller
	shards ShardCounter
	logger *slog.Logger
	now    func() time.Time

	healthTTL time.Duration

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
}

// LocatorOption defines a functional configuration type for the LocatorService.
type LocatorOption func(*LocatorService)

// WithHealthTTL sets how long a health check result is trusted. Non-positive
// values keep the default.
func WithHealthTTL(d time.Duration) LocatorOption {
	return func(l *LocatorService) {
		if d > 0 {
			l.healthTTL = d
		}
	}
}

// WithLocatorClock overrides the time source.
func WithLocatorClock(now func() time.Time) LocatorOption {
	return func(l *LocatorService) { l.now = now }
}

func NewLocatorService(caller Caller, shards ShardCounter, logger *slog.Logger, opts ...LocatorOption) *LocatorService {
	l := &LocatorService{
		caller:    caller,
		shards:    shards,
		logger:    logger.With("component", "locator"),
		now:       time.Now,
		healthTTL: DefaultHealthTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocatorService) Locate(ctx context.Context, guildID string) (model.GuildLocateResult, error) {
	// [VALIDATION_GATE] Malformed ids never reach the network
	if err := guild.ValidateID(guildID); err != nil {
		return model.GuildLocateResult{}, err
	}

	if !l.botOnline(ctx) {
		return l.estimate(ctx, guildID, errors.New("bot api is offline"), true), nil
	}

	res, err := CallSettled(ctx, l.caller, model.OpSearchGuild, model.Params{model.ParamID: guildID})
	if err == nil && res.IsFallback {
		err = errors.New("exact search returned placeholder data")
	}
	if err != nil {
		l.markOffline(err)
		return l.estimate(ctx, guildID, fmt.Errorf("exact search unavailable: %w", err), false), nil
	}

	var found model.GuildSearch
	if err := res.Decode(&found); err != nil {
		return l.estimate(ctx, guildID, err, false), nil
	}
	if found.Found && found.ShardID == nil {
		return l.estimate(ctx, guildID, errors.New("exact search hit carries no shard id"), false), nil
	}

	out := model.GuildLocateResult{
		Found:             found.Found,
		SearchMethod:      model.SearchExact,
		SearchedAllShards: true,
		Timestamp:         l.now().UTC(),
		Suggestions:       []string{},
	}
	if !found.Found {
		out.Suggestions = append(out.Suggestions, notFoundSuggestions...)
		return out, nil
	}

	out.ShardID = found.ShardID
	out.Guild = found.Guild
	if out.Guild != nil && out.Guild.ID == "" {
		out.Guild.ID = guildID
	}
	return out, nil
}

// estimate answers with the deterministic placement guess.
func (l *LocatorService) estimate(ctx context.Context, guildID string, cause error, offline bool) model.GuildLocateResult {
	msg := cause.Error()
	out := model.GuildLocateResult{
		Found:             false,
		SearchMethod:      model.SearchHashEstimate,
		SearchedAllShards: false,
		Timestamp:         l.now().UTC(),
		Error:             &msg,
		Suggestions:       append([]string{}, estimateSuggestions...),
	}
	if offline {
		out.Suggestions = append(out.Suggestions, offlineSuggestion)
	}

	shard, err := guild.EstimateShard(guildID, l.shards.TotalShards(ctx))
	if err != nil {
		errMsg := err.Error()
		out.SearchMethod = model.SearchError
		out.Error = &errMsg
		return out
	}
	out.ShardID = &shard
	return out
}

// botOnline reports the last health check, refreshing it once it is older
// than healthTTL.
func (l *LocatorService) botOnline(ctx context.Context) bool {
	l.mu.Lock()
	if !l.checkedAt.IsZero() && l.now().Sub(l.checkedAt) < l.healthTTL {
		online := l.online
		l.mu.Unlock()
		return online
	}
	l.mu.Unlock()

	res, err := CallSettled(ctx, l.caller, model.OpHealth, nil)
	if model.KindOf(err) == model.KindAborted {
		// says nothing about the bot; keep the memo as it was
		return false
	}
	online := err == nil && !res.IsFallback

	l.mu.Lock()
	l.online = online
	l.checkedAt = l.now()
	l.mu.Unlock()
	return online
}

// markOffline forgets a positive health check after a connection-level failure.
func (l *LocatorService) markOffline(err error) {
	switch model.KindOf(err) {
	case model.KindNetwork, model.KindTimeout:
		l.mu.Lock()
		l.online = false
		l.checkedAt = l.now()
		l.mu.Unlock()
	}
}
