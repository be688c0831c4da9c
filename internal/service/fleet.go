package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webitel/shardscope/internal/domain/fleet"
	"github.com/webitel/shardscope/internal/domain/model"
)

// FleetService turns shard operations into the canonical fleet shape and
// remembers the most recent summary for the locator.
type FleetService struct {
	caller Caller
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last *model.FleetSummary
}

func NewFleetService(caller Caller, logger *slog.Logger) *FleetService {
	return &FleetService{
		caller: caller,
		logger: logger.With("component", "fleet"),
		now:    time.Now,
	}
}

// Fleet fetches the shard list and recomputes its summary.
func (s *FleetService) Fleet(ctx context.Context) (model.Fleet, error) {
	return s.fetch(ctx, model.OpShards)
}

// Detailed is Fleet backed by the detailed shard operation.
func (s *FleetService) Detailed(ctx context.Context) (model.Fleet, error) {
	return s.fetch(ctx, model.OpShardsDetailed)
}

// Summary is the summary half of Fleet.
func (s *FleetService) Summary(ctx context.Context) (model.FleetSummary, error) {
	f, err := s.Fleet(ctx)
	if err != nil {
		return model.FleetSummary{}, err
	}
	return f.Summary, nil
}

func (s *FleetService) fetch(ctx context.Context, op model.Operation) (model.Fleet, error) {
	res, err := CallSettled(ctx, s.caller, op, nil)
	if err != nil {
		return model.Fleet{}, err
	}

	shards, upstream, err := fleet.Decode(res.Data, res.Summary)
	if err != nil {
		return model.Fleet{}, &model.Error{Kind: model.KindParse, Op: op.String(), Err: err}
	}

	var sum model.FleetSummary
	if len(shards) == 0 && upstream != nil {
		sum = *upstream
	} else {
		sum = fleet.Summarize(shards)
	}
	sum.IsFallback = sum.IsFallback || res.IsFallback
	sum.GeneratedAt = res.Timestamp
	if sum.GeneratedAt.IsZero() {
		sum.GeneratedAt = s.now().UTC()
	}

	s.Observe(sum)
	return model.Fleet{Summary: sum, Shards: shards}, nil
}

// Observe records sum as the most recent summary.
func (s *FleetService) Observe(sum model.FleetSummary) {
	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()
}

// Last returns the most recent summary, if any was computed.
func (s *FleetService) Last() (model.FleetSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.FleetSummary{}, false
	}
	return *s.last, true
}

// TotalShards returns the shard count of the latest summary, fetching one
// if none is known yet. It never returns less than 1.
func (s *FleetService) TotalShards(ctx context.Context) int {
	if last, ok := s.Last(); ok {
		return max(last.TotalShards, 1)
	}
	sum, err := s.Summary(ctx)
	if err != nil {
		s.logger.Warn("shard count unavailable, assuming one shard", "err", err)
		return 1
	}
	return max(sum.TotalShards, 1)
}

// Overview fetches health, bot stats and the fleet concurrently.
func (s *FleetService) Overview(ctx context.Context) (model.Overview, error) {
	var (
		out    model.Overview
		health *model.Result
		stats  *model.Result
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		health, err = CallSettled(gCtx, s.caller, model.OpHealth, nil)
		return err
	})

	g.Go(func() error {
		var err error
		stats, err = CallSettled(gCtx, s.caller, model.OpBotStats, nil)
		return err
	})

	g.Go(func() error {
		f, err := s.Fleet(gCtx)
		out.Summary = f.Summary
		return err
	})

	if err := g.Wait(); err != nil {
		return model.Overview{}, fmt.Errorf("overview: %w", err)
	}

	if err := health.Decode(&out.Health); err != nil {
		return model.Overview{}, err
	}
	out.Health.IsFallback = out.Health.IsFallback || health.IsFallback

	if err := stats.Decode(&out.Stats); err != nil {
		return model.Overview{}, err
	}
	out.Stats.IsFallback = out.Stats.IsFallback || stats.IsFallback

	out.IsFallback = out.Health.IsFallback || out.Stats.IsFallback || out.Summary.IsFallback
	return out, nil
}
