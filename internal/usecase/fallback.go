package usecase

import (
	"context"
	"errors"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// DegradedReport is returned in place of a failure. It has the same shape as
// the report of a user without repositories.
func DegradedReport(username string) *domain.ActivityReport {
	return domain.NewActivityReport(username, nil)
}

// WithFallback replaces failures that mean GitHub is unavailable with a
// DegradedReport. Failures the caller must act on (authentication, unknown
// user, rate limit) and caller cancellation still propagate.
func WithFallback(logger logrus.FieldLogger) Stage {
	return func(next ActivityFunc) ActivityFunc {
		return func(ctx context.Context, username string) (*domain.ActivityReport, error) {
			report, err := next(ctx, username)
			if err == nil || !shouldDegrade(err) {
				return report, err
			}
			logger.WithField("username", username).WithError(err).Error("Fallback triggered")
			return DegradedReport(username), nil
		}
	}
}

func shouldDegrade(err error) bool {
	if isContextError(err) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	switch domain.KindOf(err) {
	case domain.KindAuthenticationFailed, domain.KindUserNotFound, domain.KindRateLimitExceeded:
		return false
	default:
		return true
	}
}
