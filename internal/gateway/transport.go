package gateway

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/sirupsen/logrus"
)

// DefaultSecondarySleepLimit bounds how long one request may wait out a
// secondary rate limit. Longer waits fail the request instead.
const DefaultSecondarySleepLimit = 10 * time.Second

// TransportConfig holds the HTTP client settings for talking to GitHub.
type TransportConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// SecondarySleepLimit caps a single sleep on a secondary rate limit.
	SecondarySleepLimit time.Duration
}

// NewHTTPClient builds the pooled client used by the Executor. Secondary
// (abuse) rate limits are absorbed by the transport, which sleeps as GitHub asks.
func NewHTTPClient(cfg TransportConfig, logger logrus.FieldLogger) (*http.Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.SecondarySleepLimit <= 0 {
		cfg.SecondarySleepLimit = DefaultSecondarySleepLimit
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	base.ResponseHeaderTimeout = cfg.ReadTimeout

	onLimitExceeded := func(cbContext *github_ratelimit.CallbackContext) {
		fields := logrus.Fields{}
		if cbContext.SleepUntil != nil {
			fields["sleep_until"] = cbContext.SleepUntil.Format(time.RFC3339)
		}
		logger.WithFields(fields).Warn("Secondary rate limit sleep exceeds limit")
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(base,
		github_ratelimit.WithSingleSleepLimit(cfg.SecondarySleepLimit, onLimitExceeded))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	return &http.Client{Transport: rateLimitWaiter}, nil
}
