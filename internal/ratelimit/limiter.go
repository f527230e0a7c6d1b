// Package ratelimit tracks the process-wide GitHub request budget and
// gates every outbound call against it.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCeiling  = 5000
	DefaultWindow   = time.Hour
	DefaultLowWater = 100
)

// Config controls the local budget. Zero values fall back to the defaults.
type Config struct {
	// Ceiling is the budget restored on every reset.
	Ceiling int
	// Window is how far the reset instant moves forward on a local reset.
	Window time.Duration
	// LowWater is the remaining count at or below which a warning is logged.
	LowWater int
}

// Limiter is a request budget shared by every goroutine talking to GitHub.
// The budget is replenished lazily: a call that observes an expired reset
// instant restores the ceiling before consuming.
type Limiter struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time

	ceiling  int
	window   time.Duration
	lowWater int
	now      func() time.Time
	logger   logrus.FieldLogger
}

// NewLimiter creates a Limiter with a full budget and a reset instant one window from now.
func NewLimiter(cfg Config, logger logrus.FieldLogger) *Limiter {
	return newLimiter(cfg, logger, time.Now)
}

func newLimiter(cfg Config, logger logrus.FieldLogger, now func() time.Time) *Limiter {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.LowWater <= 0 {
		cfg.LowWater = DefaultLowWater
	}
	return &Limiter{
		remaining: cfg.Ceiling,
		resetAt:   now().Add(cfg.Window),
		ceiling:   cfg.Ceiling,
		window:    cfg.Window,
		lowWater:  cfg.LowWater,
		now:       now,
		logger:    logger,
	}
}

// CheckAndConsume takes one request from the budget. It fails with a
// RateLimitExceeded error, leaving the budget untouched, when nothing is left.
func (l *Limiter) CheckAndConsume() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !now.Before(l.resetAt) {
		l.remaining = l.ceiling
		l.resetAt = now.Add(l.window)
		l.logger.WithField("remaining", l.remaining).Info("Rate limit reset")
	}

	if l.remaining <= 0 {
		wait := l.resetAt.Sub(now).Round(time.Second)
		return domain.NewRateLimitExceeded(
			fmt.Sprintf("Rate limit exceeded. Wait %d seconds", int64(wait.Seconds())),
			l.resetAt,
			0,
		)
	}

	l.remaining--
	if l.remaining <= l.lowWater {
		l.logger.WithField("remaining", l.remaining).Warn("Rate limit getting low")
	}
	return nil
}

// UpdateFromServer overwrites the local state with the values GitHub reported.
func (l *Limiter) UpdateFromServer(remaining int, resetEpochSeconds int64) {
	resetAt := time.Unix(resetEpochSeconds, 0)

	l.mu.Lock()
	l.remaining = remaining
	l.resetAt = resetAt
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"remaining": remaining,
		"reset_at":  resetAt.UTC().Format(time.RFC3339),
	}).Debug("Rate limit updated")
}

// Remaining returns the current budget, never below zero.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining < 0 {
		return 0
	}
	return l.remaining
}

// ResetAt returns the instant at which the budget is next restored.
func (l *Limiter) ResetAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetAt
}
