package botapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/webitel/shardscope/internal/domain/model"
)

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	halfOpen := cfg.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "botapi",
		MaxRequests: halfOpen,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only an unhealthy bot should trip the breaker; bad input,
		// credentials or caller cancellation say nothing about it.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch model.KindOf(err) {
			case model.KindNetwork, model.KindTimeout:
				return false
			case model.KindAPI:
				var e *model.Error
				return errors.As(err, &e) && e.Status < http.StatusInternalServerError
			default:
				return true
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
