package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/shardscope/infra/client/botapi"
	"github.com/webitel/shardscope/internal/domain/model"
)

const testGuildID = "123456789012345678"

// stubCaller answers per operation and records what was asked.
type stubCaller struct {
	mu    sync.Mutex
	calls map[model.Operation]int
	resp  map[model.Operation]func(params model.Params) (*model.Result, error)
}

func newStubCaller() *stubCaller {
	return &stubCaller{
		calls: make(map[model.Operation]int),
		resp:  make(map[model.Operation]func(model.Params) (*model.Result, error)),
	}
}

func (c *stubCaller) on(op model.Operation, fn func(params model.Params) (*model.Result, error)) *stubCaller {
	c.resp[op] = fn
	return c
}

func (c *stubCaller) Call(ctx context.Context, op model.Operation, params model.Params) (*model.Result, error) {
	c.mu.Lock()
	c.calls[op]++
	fn := c.resp[op]
	c.mu.Unlock()

	if fn == nil {
		return nil, &model.Error{Kind: model.KindNetwork, Op: op.String(), Message: "unreachable"}
	}
	return fn(params)
}

func (c *stubCaller) count(op model.Operation) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *stubCaller) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func result(op model.Operation, data string) func(model.Params) (*model.Result, error) {
	return func(model.Params) (*model.Result, error) {
		return &model.Result{Op: op, Data: json.RawMessage(data)}, nil
	}
}

type fixedShards int

func (f fixedShards) TotalShards(context.Context) int { return int(f) }

func healthy(c *stubCaller) *stubCaller {
	return c.on(model.OpHealth, result(model.OpHealth, `{"status":"ok","online":true}`))
}

func newLocator(c *stubCaller, opts ...LocatorOption) *LocatorService {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]LocatorOption{WithLocatorClock(func() time.Time { return at })}, opts...)
	return NewLocatorService(c, fixedShards(5), testLogger(), opts...)
}

func TestLocateRejectsMalformedIDWithoutNetwork(t *testing.T) {
	c := healthy(newStubCaller())
	l := newLocator(c)

	for _, id := range []string{"", "abc", "1234", "12345678901234567890123", "12345678901234567a"} {
		_, err := l.Locate(context.Background(), id)
		require.Error(t, err, id)
		assert.ErrorIs(t, err, model.ErrValidation, id)
	}
	assert.Zero(t, c.total())
}

func TestLocateExactFound(t *testing.T) {
	c := healthy(newStubCaller()).on(model.OpSearchGuild, func(p model.Params) (*model.Result, error) {
		assert.Equal(t, testGuildID, p[model.ParamID])
		return &model.Result{Data: json.RawMessage(`{"found":true,"shardId":2,"guild":{"name":"Lounge","memberCount":42}}`)}, nil
	})
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, model.SearchExact, res.SearchMethod)
	assert.True(t, res.SearchedAllShards)
	require.NotNil(t, res.ShardID)
	assert.Equal(t, 2, *res.ShardID)
	require.NotNil(t, res.Guild)
	assert.Equal(t, testGuildID, res.Guild.ID)
	assert.Equal(t, "Lounge", res.Guild.Name)
	assert.Nil(t, res.Error)
}

func TestLocateExactNotFound(t *testing.T) {
	c := healthy(newStubCaller()).on(model.OpSearchGuild, result(model.OpSearchGuild, `{"found":false}`))
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, model.SearchExact, res.SearchMethod)
	assert.True(t, res.SearchedAllShards)
	assert.Nil(t, res.ShardID)
	assert.Nil(t, res.Guild)
	assert.NotEmpty(t, res.Suggestions)
}

func TestLocateEstimatesWhenBotOffline(t *testing.T) {
	c := newStubCaller()
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, model.SearchHashEstimate, res.SearchMethod)
	assert.False(t, res.SearchedAllShards)
	require.NotNil(t, res.ShardID)
	assert.Equal(t, 3, *res.ShardID)
	assert.Nil(t, res.Guild)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Suggestions, offlineSuggestion)
	assert.Zero(t, c.count(model.OpSearchGuild), "no exact search against an offline bot")
}

func TestLocateTreatsFallbackHealthAsOffline(t *testing.T) {
	c := newStubCaller().
		on(model.OpHealth, func(model.Params) (*model.Result, error) {
			return &model.Result{Data: json.RawMessage(`{"status":"offline"}`), IsFallback: true}, nil
		})
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchHashEstimate, res.SearchMethod)
	assert.Zero(t, c.count(model.OpSearchGuild))
}

func TestLocateDowngradesFailedSearch(t *testing.T) {
	c := healthy(newStubCaller()).on(model.OpSearchGuild, func(model.Params) (*model.Result, error) {
		return nil, &model.Error{Kind: model.KindTimeout, Op: "search/guild/{id}", Message: "deadline"}
	})
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)

	assert.Equal(t, model.SearchHashEstimate, res.SearchMethod)
	require.NotNil(t, res.ShardID)
	assert.Equal(t, 3, *res.ShardID)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "exact search unavailable")

	// the timeout marks the bot offline, so the next lookup skips the search
	_, err = l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.count(model.OpSearchGuild))
	assert.Equal(t, 1, c.count(model.OpHealth))
}

func TestLocateDowngradesUndecodableSearch(t *testing.T) {
	c := healthy(newStubCaller()).on(model.OpSearchGuild, result(model.OpSearchGuild, `not json`))
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchHashEstimate, res.SearchMethod)
}

func TestLocateHealthIsMemoized(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := healthy(newStubCaller()).on(model.OpSearchGuild, result(model.OpSearchGuild, `{"found":false}`))
	l := NewLocatorService(c, fixedShards(5), testLogger(),
		WithHealthTTL(time.Minute),
		WithLocatorClock(func() time.Time { return now }))

	for range 3 {
		_, err := l.Locate(context.Background(), testGuildID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.count(model.OpHealth))

	now = now.Add(2 * time.Minute)
	_, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.count(model.OpHealth))
}

func TestLocatorMiddlewarePassesThrough(t *testing.T) {
	c := healthy(newStubCaller()).on(model.OpSearchGuild, result(model.OpSearchGuild, `{"found":false}`))
	next := newLocator(c)
	m := NewLocatorMiddleware(next, testLogger())

	want, err := next.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	got, err := m.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = m.Locate(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLocateRejectsExactHitWithoutShard(t *testing.T) {
	c := healthy(newStubCaller()).on(model.OpSearchGuild, result(model.OpSearchGuild, `{"found":true,"guild":{"name":"Lounge"}}`))
	l := newLocator(c)

	res, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, model.SearchHashEstimate, res.SearchMethod)
	require.NotNil(t, res.ShardID)
	assert.Equal(t, 3, *res.ShardID)
}

func TestLocateSurvivesSupersededHealthCheck(t *testing.T) {
	var healthCalls atomic.Int32
	started := make(chan struct{})

	d, _ := newDispatcher(t, func(ctx context.Context, req botapi.Request) (*model.Envelope, error) {
		switch req.Op {
		case model.OpHealth:
			if healthCalls.Add(1) == 1 {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return okEnvelope(`{"status":"ok","online":true}`), nil
		case model.OpSearchGuild:
			return okEnvelope(`{"found":true,"shardId":2}`), nil
		}
		return nil, errors.New("unexpected operation " + req.Op.String())
	})
	l := NewLocatorService(d, fixedShards(5), testLogger())

	var (
		wg    sync.WaitGroup
		first model.GuildLocateResult
		ferr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ferr = l.Locate(context.Background(), testGuildID)
	}()

	<-started
	// a dashboard health request overlaps the locator's own check
	_, err := d.Call(context.Background(), model.OpHealth, nil)
	require.NoError(t, err)
	wg.Wait()

	require.NoError(t, ferr)
	assert.Equal(t, model.SearchExact, first.SearchMethod)
	assert.Nil(t, first.Error)

	second, err := l.Locate(context.Background(), testGuildID)
	require.NoError(t, err)
	assert.Equal(t, model.SearchExact, second.SearchMethod)
	require.NotNil(t, second.ShardID)
	assert.Equal(t, 2, *second.ShardID)
	assert.Equal(t, int32(2), healthCalls.Load(), "the retry is served from cache")
}
