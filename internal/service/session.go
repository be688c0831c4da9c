package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/webitel/shardscope/internal/domain/model"
)

// ErrSessionDisposed is returned when starting a stopped session.
var ErrSessionDisposed = errors.New("polling session is disposed")

// Phase is the lifecycle position of a polling session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Fetcher produces one value per poll.
type Fetcher[T any] func(ctx context.Context) (T, error)

// SessionState is the snapshot a consumer renders from.
type SessionState[T any] struct {
	Data        T
	HasData     bool
	Loading     bool
	Err         error
	LastUpdated time.Time
	RetryCount  int
	Phase       Phase
}

// Session re-invokes a fetcher on an interval. A fetch that is still
// running when the next one starts is cancelled and its result dropped.
type Session[T any] struct {
	name     string
	fetch    Fetcher[T]
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onUpdate func(SessionState[T])

	// backoff is only touched by the run loop.
	backoff *backoff.ExponentialBackOff

	trigger chan struct{}
	settled chan bool

	mu          sync.Mutex
	state       SessionState[T]
	gen         uint64
	started     bool
	stopLoop    context.CancelFunc
	cancelFetch context.CancelFunc

	wg sync.WaitGroup
}

// SessionOption defines a functional configuration type for a Session.
type SessionOption[T any] func(*Session[T])

// WithUpdateHook registers fn to observe every state change.
func WithUpdateHook[T any](fn func(SessionState[T])) SessionOption[T] {
	return func(s *Session[T]) { s.onUpdate = fn }
}

// WithMaxBackoff caps the error backoff; it is never below the interval.
func WithMaxBackoff[T any](d time.Duration) SessionOption[T] {
	return func(s *Session[T]) { s.backoff.MaxInterval = max(d, s.interval) }
}

// WithSessionClock overrides the time source for LastUpdated.
func WithSessionClock[T any](now func() time.Time) SessionOption[T] {
	return func(s *Session[T]) { s.now = now }
}

func NewSession[T any](name string, fetch Fetcher[T], interval time.Duration, logger *slog.Logger, opts ...SessionOption[T]) *Session[T] {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 8 * interval

	s := &Session[T]{
		name:     name,
		fetch:    fetch,
		interval: interval,
		logger:   logger.With("component", "session", "session", name),
		now:      time.Now,
		backoff:  b,
		trigger:  make(chan struct{}, 1),
		settled:  make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff.Reset()
	return s
}

// NewOperationSession polls a single dispatcher operation.
func NewOperationSession(caller Caller, op model.Operation, params model.Params, interval time.Duration, logger *slog.Logger, opts ...SessionOption[*model.Result]) *Session[*model.Result] {
	fetch := func(ctx context.Context) (*model.Result, error) {
		return caller.Call(ctx, op, params)
	}
	return NewSession(op.String(), fetch, interval, logger, opts...)
}

// Start begins polling with an immediate fetch. Starting twice is a no-op.
func (s *Session[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == PhaseDisposed {
		return ErrSessionDisposed
	}
	if s.started {
		return nil
	}
	s.started = true

	// the loop outlives the caller's request-scoped deadline; Stop ends it
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopLoop = cancel

	s.wg.Add(1)
	go s.run(loopCtx)
	return nil
}

// Refetch polls now, superseding a fetch that is still running.
func (s *Session[T]) Refetch() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Retry clears the retry counter, then refetches.
func (s *Session[T]) Retry() {
	s.mu.Lock()
	if s.state.Phase == PhaseDisposed {
		s.mu.Unlock()
		return
	}
	s.state.RetryCount = 0
	s.mu.Unlock()
	s.Refetch()
}

// Stop tears down the timer and any in-flight fetch and waits for them.
// After Stop returns the fetcher is never invoked again. It must not be
// called from an update hook.
func (s *Session[T]) Stop() {
	s.mu.Lock()
	if s.state.Phase == PhaseDisposed {
		s.mu.Unlock()
		return
	}
	s.state.Phase = PhaseDisposed
	s.state.Loading = false
	s.gen++
	stopLoop, cancelFetch := s.stopLoop, s.cancelFetch
	s.cancelFetch = nil
	s.mu.Unlock()

	if cancelFetch != nil {
		cancelFetch()
	}
	if stopLoop != nil {
		stopLoop()
	}
	s.wg.Wait()
}

// State returns a snapshot of the session.
func (s *Session[T]) State() SessionState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session[T]) run(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.launch(ctx)
		case <-s.trigger:
			timer.Stop()
			s.launch(ctx)
		case ok := <-s.settled:
			timer.Reset(s.nextDelay(ok))
		}
	}
}

func (s *Session[T]) nextDelay(ok bool) time.Duration {
	if ok {
		s.backoff.Reset()
		return s.interval
	}
	d := s.backoff.NextBackOff()
	if d == backoff.Stop || d <= 0 {
		d = s.backoff.MaxInterval
	}
	return d
}

func (s *Session[T]) launch(loopCtx context.Context) {
	s.mu.Lock()
	if s.state.Phase == PhaseDisposed {
		s.mu.Unlock()
		return
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.gen++
	gen := s.gen
	fetchCtx, cancel := context.WithCancel(loopCtx)
	s.cancelFetch = cancel
	s.state.Phase = PhaseFetching
	s.state.Loading = true
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		v, err := s.fetch(fetchCtx)

		ok, applied := s.apply(gen, v, err)
		if !applied {
			return
		}
		select {
		case s.settled <- ok:
		case <-loopCtx.Done():
		}
	}()
}

// apply publishes the outcome of fetch gen unless a newer fetch or Stop
// superseded it. ok is false only for errors worth backing off from.
func (s *Session[T]) apply(gen uint64, v T, err error) (ok, applied bool) {
	s.mu.Lock()
	if gen != s.gen || s.state.Phase == PhaseDisposed {
		s.mu.Unlock()
		return false, false
	}

	s.cancelFetch = nil
	s.state.Phase = PhaseIdle
	s.state.Loading = false
	ok = true

	switch {
	case err == nil:
		s.state.Data = v
		s.state.HasData = true
		s.state.Err = nil
		s.state.LastUpdated = s.now()
		s.state.RetryCount = 0
	case errors.Is(err, model.ErrAborted) || errors.Is(err, context.Canceled):
		// superseded elsewhere; not a user-visible failure
	default:
		s.state.Err = err
		s.state.RetryCount++
		ok = false
	}
	snap := s.state
	s.mu.Unlock()

	if err != nil && ok {
		s.logger.Debug("poll discarded", "err", err)
	} else if err != nil {
		s.logger.Warn("poll failed", "err", err, "retry_count", snap.RetryCount)
	}
	s.notify(snap)
	return ok, true
}

func (s *Session[T]) notify(snap SessionState[T]) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}
