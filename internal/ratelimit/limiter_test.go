package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestLimiter(cfg Config) (*Limiter, *fakeClock, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return newLimiter(cfg, logger, clock.Now), clock, hook
}

func TestLimiter_Defaults(t *testing.T) {
	limiter, clock, _ := setupTestLimiter(Config{})

	assert.Equal(t, DefaultCeiling, limiter.Remaining())
	assert.Equal(t, clock.Now().Add(time.Hour), limiter.ResetAt())
}

func TestLimiter_LastRequestSucceedsThenFails(t *testing.T) {
	limiter, clock, _ := setupTestLimiter(Config{})
	future := clock.Now().Add(10 * time.Minute)
	limiter.UpdateFromServer(1, future.Unix())

	require.NoError(t, limiter.CheckAndConsume())
	assert.Equal(t, 0, limiter.Remaining())

	err := limiter.CheckAndConsume()
	require.Error(t, err)

	connectorErr, ok := domain.AsConnectorError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindRateLimitExceeded, connectorErr.Kind)
	assert.Equal(t, 0, connectorErr.Remaining)
	assert.Equal(t, future, connectorErr.ResetAt)
	assert.Contains(t, connectorErr.Message, "Wait 600 seconds")

	// A rejected call does not consume anything further.
	assert.Equal(t, 0, limiter.Remaining())
}

func TestLimiter_ResetsWhenWindowPassed(t *testing.T) {
	limiter, clock, hook := setupTestLimiter(Config{Ceiling: 50, Window: time.Hour, LowWater: 10})
	past := clock.Now().Add(-time.Second)
	limiter.UpdateFromServer(0, past.Unix())

	require.NoError(t, limiter.CheckAndConsume())

	assert.Equal(t, 49, limiter.Remaining())
	assert.Equal(t, clock.Now().Add(time.Hour), limiter.ResetAt())

	var sawReset bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Rate limit reset" {
			sawReset = true
		}
	}
	assert.True(t, sawReset)
}

func TestLimiter_ResetsExactlyAtResetInstant(t *testing.T) {
	limiter, clock, _ := setupTestLimiter(Config{Ceiling: 10})
	limiter.UpdateFromServer(0, clock.Now().Add(time.Minute).Unix())

	require.Error(t, limiter.CheckAndConsume())

	clock.Advance(time.Minute)
	require.NoError(t, limiter.CheckAndConsume())
	assert.Equal(t, 9, limiter.Remaining())
}

func TestLimiter_WarnsAtLowWater(t *testing.T) {
	testCases := []struct {
		name       string
		start      int
		expectWarn bool
	}{
		{name: "above low water", start: 200, expectWarn: false},
		{name: "drops onto low water", start: 101, expectWarn: true},
		{name: "below low water", start: 5, expectWarn: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			limiter, clock, hook := setupTestLimiter(Config{LowWater: 100})
			limiter.UpdateFromServer(tc.start, clock.Now().Add(time.Hour).Unix())
			hook.Reset()

			require.NoError(t, limiter.CheckAndConsume())

			var warned bool
			for _, entry := range hook.AllEntries() {
				if entry.Level == logrus.WarnLevel {
					warned = true
				}
			}
			assert.Equal(t, tc.expectWarn, warned)
		})
	}
}

func TestLimiter_UpdateFromServerOverwrites(t *testing.T) {
	limiter, _, _ := setupTestLimiter(Config{})

	limiter.UpdateFromServer(42, 1_800_000_000)

	assert.Equal(t, 42, limiter.Remaining())
	assert.Equal(t, time.Unix(1_800_000_000, 0), limiter.ResetAt())
}

func TestLimiter_ConcurrentConsumersNeverOverdraw(t *testing.T) {
	limiter, clock, _ := setupTestLimiter(Config{Ceiling: 100})
	limiter.UpdateFromServer(100, clock.Now().Add(time.Hour).Unix())

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.CheckAndConsume() == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), granted.Load())
	assert.Equal(t, 0, limiter.Remaining())
}

func TestLimiter_ConcurrentResetCreditsOnce(t *testing.T) {
	limiter, clock, _ := setupTestLimiter(Config{Ceiling: 100})
	limiter.UpdateFromServer(0, clock.Now().Add(-time.Minute).Unix())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.CheckAndConsume()
		}()
	}
	wg.Wait()

	assert.Equal(t, 80, limiter.Remaining())
}
