package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// ActivityFunc fetches the activity report of one user.
type ActivityFunc func(ctx context.Context, username string) (*domain.ActivityReport, error)

// FetchUserActivity lets an ActivityFunc stand in wherever a service is expected.
func (f ActivityFunc) FetchUserActivity(ctx context.Context, username string) (*domain.ActivityReport, error) {
	return f(ctx, username)
}

// Stage decorates an ActivityFunc with one cross-cutting concern.
type Stage func(next ActivityFunc) ActivityFunc

// Chain applies stages around core. The first stage is the outermost.
func Chain(core ActivityFunc, stages ...Stage) ActivityFunc {
	fn := core
	for i := len(stages) - 1; i >= 0; i-- {
		fn = stages[i](fn)
	}
	return fn
}

// WithTiming logs the duration and outcome of every call.
func WithTiming(logger logrus.FieldLogger) Stage {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, username string) (*domain.ActivityReport, error) {
			start := time.Now()
			report, err := next(ctx, username)
			log := logger.WithFields(logrus.Fields{
				"username": username,
				"duration": time.Since(start).String(),
			})
			if err != nil {
				log.WithField("error_code", domain.KindOf(err).Code()).Info("GitHub activity request failed")
			} else {
				log.Info("GitHub activity request completed")
			}
			return report, err
		}
	}
}

// WithCache serves reports from cache, keyed by username. Concurrent misses
// for the same username share a single underlying call. The shared call is
// detached from any one caller's cancellation; a cancelled caller stops
// waiting while the others still receive the result.
func WithCache(cache *expirable.LRU[string, *domain.ActivityReport], logger logrus.FieldLogger) Stage {
	var group singleflight.Group
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, username string) (*domain.ActivityReport, error) {
			if report, ok := cache.Get(username); ok {
				logger.WithField("username", username).Debug("Serving GitHub activity from cache")
				return report, nil
			}
			sharedCtx := context.WithoutCancel(ctx)
			results := group.DoChan(username, func() (interface{}, error) {
				report, err := next(sharedCtx, username)
				if err != nil {
					return nil, err
				}
				cache.Add(username, report)
				return report, nil
			})
			select {
			case <-ctx.Done():
				return nil, domain.NewConnectorFailure("GitHub activity request cancelled", ctx.Err())
			case result := <-results:
				if result.Err != nil {
					return nil, result.Err
				}
				return result.Val.(*domain.ActivityReport), nil
			}
		}
	}
}

// NewCircuitBreaker trips after maxFailures consecutive upstream failures and
// stays open for openTimeout. Only failures that say something about
// GitHub's health are counted.
func NewCircuitBreaker(maxFailures uint32, openTimeout time.Duration, halfOpenRequests uint32, logger logrus.FieldLogger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "github-api",
		MaxRequests: halfOpenRequests,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsUpstreamFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// WithCircuitBreaker rejects calls while breaker is open.
func WithCircuitBreaker(breaker *gobreaker.CircuitBreaker) Stage {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, username string) (*domain.ActivityReport, error) {
			value, err := breaker.Execute(func() (interface{}, error) {
				return next(ctx, username)
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, domain.NewConnectorFailure("GitHub API circuit open", err)
			}
			if err != nil {
				return nil, err
			}
			return value.(*domain.ActivityReport), nil
		}
	}
}

// WithRetry repeats the whole call up to attempts times while the failure is retryable.
func WithRetry(attempts int, delay time.Duration, logger logrus.FieldLogger) Stage {
	return func(next ActivityFunc) ActivityFunc {
		if attempts <= 1 {
			return next
		}
		return func(ctx context.Context, username string) (*domain.ActivityReport, error) {
			var report *domain.ActivityReport
			operation := func() error {
				var err error
				report, err = next(ctx, username)
				if err != nil && !domain.IsRetryable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			policy := backoff.WithContext(
				backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)
			notify := func(err error, wait time.Duration) {
				logger.WithField("username", username).WithError(err).Warn("Retrying GitHub activity request")
			}
			if err := backoff.RetryNotify(operation, policy, notify); err != nil {
				return nil, err
			}
			return report, nil
		}
	}
}

// countsAsUpstreamFailure reports whether err indicates GitHub itself is unhealthy.
func countsAsUpstreamFailure(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindServerError, domain.KindTransportError, domain.KindConnectorFailure:
		return !isContextError(err)
	default:
		return false
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
