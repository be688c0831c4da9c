package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/webitel/shardscope/infra/client/botapi"
	"github.com/webitel/shardscope/internal/domain/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func TestSessionStopHaltsPolling(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	s := NewSession("count", func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, 5*time.Millisecond, testLogger())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, waitFor, tick)

	s.Stop()
	after := calls.Load()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no fetch may happen after Stop")
	assert.Equal(t, PhaseDisposed, s.State().Phase)
	assert.False(t, s.State().Loading)
}

func TestSessionStopCancelsInflightFetch(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	var cancelled atomic.Bool
	s := NewSession("slow", func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return "", ctx.Err()
	}, time.Hour, testLogger())

	require.NoError(t, s.Start(context.Background()))
	<-started
	assert.True(t, s.State().Loading)

	s.Stop()
	assert.True(t, cancelled.Load())
	assert.False(t, s.State().HasData)
	assert.NoError(t, s.State().Err, "a torn-down fetch is not an error")
}

func TestSessionSuccessState(t *testing.T) {
	defer goleak.VerifyNone(t)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("ok", func(ctx context.Context) (string, error) {
		return "fleet", nil
	}, time.Hour, testLogger(), WithSessionClock[string](func() time.Time { return at }))
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.State().HasData }, waitFor, tick)

	st := s.State()
	assert.Equal(t, "fleet", st.Data)
	assert.Equal(t, at, st.LastUpdated)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, st.RetryCount)
	assert.NoError(t, st.Err)
}

func TestSessionRetryCount(t *testing.T) {
	defer goleak.VerifyNone(t)

	var fail atomic.Bool
	fail.Store(true)
	boom := errors.New("boom")

	s := NewSession("flaky", func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, boom
		}
		return 7, nil
	}, time.Hour, testLogger())
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.State().RetryCount == 1 }, waitFor, tick)
	assert.ErrorIs(t, s.State().Err, boom)

	s.Refetch()
	require.Eventually(t, func() bool { return s.State().RetryCount == 2 }, waitFor, tick)

	fail.Store(false)
	s.Retry()
	require.Eventually(t, func() bool { return s.State().HasData }, waitFor, tick)

	st := s.State()
	assert.Zero(t, st.RetryCount)
	assert.NoError(t, st.Err)
	assert.Equal(t, 7, st.Data)
}

func TestSessionRefetchSupersedesSlowFetch(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		n             atomic.Int32
		firstCanceled atomic.Bool
		started       = make(chan struct{})
	)
	s := NewSession("supersede", func(ctx context.Context) (string, error) {
		if n.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			firstCanceled.Store(true)
			return "stale", nil
		}
		return "fresh", nil
	}, time.Hour, testLogger())
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	<-started

	s.Refetch()
	require.Eventually(t, func() bool { return s.State().HasData }, waitFor, tick)
	require.Eventually(t, firstCanceled.Load, waitFor, tick)

	// give the stale fetch time to try to apply itself
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, "fresh", s.State().Data)
}

func TestSessionIgnoresAbortedResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	s := NewSession("aborted", func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, &model.Error{Kind: model.KindAborted}
	}, time.Hour, testLogger())
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 && s.State().Phase == PhaseIdle }, waitFor, tick)

	assert.NoError(t, s.State().Err)
	assert.Zero(t, s.State().RetryCount)
}

func TestSessionLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSession("life", func(ctx context.Context) (int, error) { return 1, nil }, time.Hour, testLogger())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	s.Stop()
	s.Stop()
	assert.ErrorIs(t, s.Start(context.Background()), ErrSessionDisposed)

	s.Refetch()
	s.Retry()
	assert.Equal(t, PhaseDisposed, s.State().Phase)
}

func TestSessionUpdateHook(t *testing.T) {
	defer goleak.VerifyNone(t)

	var updates atomic.Int32
	s := NewSession("hook", func(ctx context.Context) (int, error) { return 1, nil }, time.Hour, testLogger(),
		WithUpdateHook(func(st SessionState[int]) { updates.Add(1) }))
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	// one update entering fetching, one leaving it
	require.Eventually(t, func() bool { return updates.Load() == 2 }, waitFor, tick)
}

func TestSessionBackoffIsBounded(t *testing.T) {
	s := NewSession("backoff", func(ctx context.Context) (int, error) { return 0, nil }, 10*time.Millisecond, testLogger(),
		WithMaxBackoff[int](40*time.Millisecond))

	assert.Equal(t, 10*time.Millisecond, s.nextDelay(false))
	assert.Equal(t, 20*time.Millisecond, s.nextDelay(false))
	assert.Equal(t, 40*time.Millisecond, s.nextDelay(false))
	assert.Equal(t, 40*time.Millisecond, s.nextDelay(false))
	assert.Equal(t, 10*time.Millisecond, s.nextDelay(true))
	assert.Equal(t, 10*time.Millisecond, s.nextDelay(false), "success resets the backoff")
}

func TestOperationSessionUsesDispatcher(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, exec := newDispatcher(t, nil)
	exec.fn = func(ctx context.Context, req botapi.Request) (*model.Envelope, error) {
		return okEnvelope(`{"pong":true}`), nil
	}

	s := NewOperationSession(d, model.OpPing, nil, time.Hour, testLogger())
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.State().HasData }, waitFor, tick)
	s.Stop()

	assert.Equal(t, model.OpPing, s.State().Data.Op)
	assert.Equal(t, int32(1), exec.calls.Load())
}
