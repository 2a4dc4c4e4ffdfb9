package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/types"
)

// State is a step of the retry state machine.
type State int

const (
	Attempting State = iota
	Waiting
	Success
	Exhausted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Waiting:
		return "waiting"
	case Success:
		return "success"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result is the outcome of one attempt. Err is nil on success.
type Result[T any] struct {
	Value T
	Err   *types.Error
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] { return Result[T]{Value: v} }

// Fail wraps a classified failure.
func Fail[T any](err *types.Error) Result[T] { return Result[T]{Err: err} }

// Stats describes one finished run. It is call scoped and never shared.
type Stats struct {
	Attempts   int
	Waits      int
	State      State
	LastDelay  time.Duration
	TotalDelay time.Duration
}

// Do runs fn until it succeeds, fails fatally, or the attempt cap is hit.
// A fatal error ends the run after that attempt with no wait. The last
// classified error is returned on exhaustion.
func Do[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context, attempt int) Result[T]) (Result[T], Stats) {
	sched := r.policy.schedule()
	stats := Stats{State: Attempting}

	for {
		stats.Attempts++
		res := fn(ctx, stats.Attempts)

		if res.Err == nil {
			stats.State = Success
			if stats.Attempts > 1 {
				r.logger.Info("重试成功", zap.Int("attempt", stats.Attempts))
			}
			return res, stats
		}

		if !res.Err.Retryable {
			r.logger.Debug("错误不可重试",
				zap.Int("attempt", stats.Attempts),
				zap.String("kind", string(res.Err.Kind)),
				zap.String("reason", string(res.Err.Reason)),
			)
			stats.State = Exhausted
			return res, stats
		}

		delay := sched.NextBackOff()
		if delay == backoff.Stop {
			r.logger.Warn("重试次数耗尽",
				zap.Int("attempts", stats.Attempts),
				zap.Error(res.Err),
			)
			stats.State = Exhausted
			return res, stats
		}
		if hint := res.Err.RetryAfter; hint > delay {
			delay = hint
		}
		delay = min(delay, r.policy.MaxDelay)

		stats.State = Waiting
		stats.Waits++
		stats.LastDelay = delay
		stats.TotalDelay += delay

		r.logger.Debug("重试中",
			zap.Int("attempt", stats.Attempts),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(res.Err),
		)
		if r.onRetry != nil {
			r.onRetry(stats.Attempts, res.Err, delay)
		}

		if err := r.sleep(ctx, delay); err != nil {
			stats.State = Exhausted
			reason, msg := types.ReasonCanceled, "retry wait canceled"
			if errors.Is(err, context.DeadlineExceeded) {
				reason, msg = types.ReasonTimeout, "deadline exceeded while waiting to retry"
			}
			return Fail[T](types.NewTransportError(reason, msg).
				WithVendor(res.Err.Vendor).
				WithCause(err)), stats
		}
		stats.State = Attempting
	}
}
