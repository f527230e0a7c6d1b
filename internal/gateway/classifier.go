package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
)

// RateLimitUpdater receives authoritative rate limit state from GitHub.
type RateLimitUpdater interface {
	UpdateFromServer(remaining int, resetEpochSeconds int64)
}

// HeaderNames are the response headers carrying GitHub rate limit state.
type HeaderNames struct {
	Remaining string
	Reset     string
}

// DefaultHeaderNames are the headers GitHub sends on every API response.
var DefaultHeaderNames = HeaderNames{
	Remaining: "X-RateLimit-Remaining",
	Reset:     "X-RateLimit-Reset",
}

// Classifier maps failed exchanges with GitHub onto domain.ConnectorError kinds.
type Classifier struct {
	headers HeaderNames
	limiter RateLimitUpdater
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewClassifier creates a Classifier that feeds rate limit headers to limiter.
func NewClassifier(headers HeaderNames, limiter RateLimitUpdater, logger logrus.FieldLogger) *Classifier {
	if headers.Remaining == "" {
		headers.Remaining = DefaultHeaderNames.Remaining
	}
	if headers.Reset == "" {
		headers.Reset = DefaultHeaderNames.Reset
	}
	return &Classifier{headers: headers, limiter: limiter, logger: logger, now: time.Now}
}

// Classify turns a non-2xx response into a typed error.
func (c *Classifier) Classify(status int, header http.Header, body []byte) error {
	message := errorMessage(body)

	switch {
	case status == http.StatusUnauthorized:
		return domain.NewAuthenticationFailed("GitHub authentication failed: " + message)
	case status == http.StatusNotFound:
		return domain.NewUserNotFound(domain.UnknownIdentifier)
	}

	c.UpdateRateLimit(header)

	switch {
	case status == http.StatusForbidden && c.isRateLimited(header):
		return domain.NewRateLimitExceeded(
			"GitHub API rate limit exceeded",
			c.resetTime(header),
			c.remaining(header),
		)
	case status == http.StatusForbidden:
		return domain.NewAccessForbidden("GitHub API access forbidden: " + message)
	case status >= 400 && status < 500:
		return domain.NewClientError(status, "GitHub API client error: "+message)
	case status >= 500:
		return domain.NewServerError(status, "GitHub API server error: "+message)
	default:
		return domain.NewConnectorFailure("unexpected GitHub API status "+strconv.Itoa(status), nil)
	}
}

// ClassifyTransport wraps a failure that produced no response.
func (c *Classifier) ClassifyTransport(err error) error {
	return domain.NewTransportError(err)
}

// UpdateRateLimit forwards the rate limit headers to the limiter when both are present and valid.
func (c *Classifier) UpdateRateLimit(header http.Header) {
	remainingStr := header.Get(c.headers.Remaining)
	resetStr := header.Get(c.headers.Reset)
	if remainingStr == "" || resetStr == "" {
		return
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to parse rate limit headers")
		return
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to parse rate limit headers")
		return
	}
	c.limiter.UpdateFromServer(remaining, reset)
}

func (c *Classifier) isRateLimited(header http.Header) bool {
	return header.Get(c.headers.Remaining) == "0"
}

// resetTime falls back to one hour from now when the header is missing or malformed.
func (c *Classifier) resetTime(header http.Header) time.Time {
	if resetStr := header.Get(c.headers.Reset); resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err == nil {
			return time.Unix(reset, 0).Local()
		}
		c.logger.WithError(err).Warn("Failed to parse rate limit reset time")
	}
	return c.now().Add(time.Hour)
}

func (c *Classifier) remaining(header http.Header) int {
	remaining, err := strconv.Atoi(header.Get(c.headers.Remaining))
	if err != nil {
		return 0
	}
	return remaining
}

// errorMessage extracts GitHub's JSON error message, or returns the raw body.
func errorMessage(body []byte) string {
	var wireError struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		return wireError.Message
	}
	return string(body)
}
