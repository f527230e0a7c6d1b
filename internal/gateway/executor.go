package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1000 * time.Millisecond

	acceptHeader    = "application/vnd.github.v3+json"
	userAgentHeader = "GitHub-Activity-Connector/1.0"

	// maxBodySize caps how much of a response is read into memory.
	maxBodySize = 10 << 20
)

// Gate admits or rejects an outbound request.
type Gate interface {
	CheckAndConsume() error
}

// RetryPolicy configures how often and how patiently failed requests are repeated.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the first backoff interval; later intervals double.
	BaseDelay time.Duration
}

// Executor issues authenticated GET requests against GitHub. Every attempt
// passes the rate limit gate, and failed attempts are classified and retried
// with exponential backoff when the failure kind allows it.
type Executor struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	gate        Gate
	classifier  *Classifier
	policy      RetryPolicy
	logger      logrus.FieldLogger
}

// NewExecutor wires an Executor. A nil httpClient uses http.DefaultClient.
func NewExecutor(httpClient *http.Client, tokenSource oauth2.TokenSource, gate Gate, classifier *Classifier, policy RetryPolicy, logger logrus.FieldLogger) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryDelay
	}
	return &Executor{
		httpClient:  httpClient,
		tokenSource: tokenSource,
		gate:        gate,
		classifier:  classifier,
		policy:      policy,
		logger:      logger,
	}
}

// Execute performs a GET on url and returns the response body.
// On failure it returns the classified error of the last attempt.
func (e *Executor) Execute(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	var body []byte

	operation := func() error {
		attempt++
		var err error
		body, err = e.attempt(ctx, url)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		e.logger.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
			"wait":    wait.String(),
		}).WithError(err).Warn("Retrying GitHub request")
	}

	if err := backoff.RetryNotify(operation, e.newBackOff(ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = e.policy.BaseDelay
	exponential.Multiplier = 2
	exponential.RandomizationFactor = 0.5
	exponential.MaxInterval = 60 * e.policy.BaseDelay
	exponential.MaxElapsedTime = 0
	exponential.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(e.policy.MaxRetries)), ctx)
}

// attempt runs the full pipeline once: gate, request, classification.
func (e *Executor) attempt(ctx context.Context, url string) ([]byte, error) {
	if err := e.gate.CheckAndConsume(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewConnectorFailure("failed to create request", err)
	}
	token, err := e.tokenSource.Token()
	if err != nil {
		return nil, domain.NewAuthenticationFailed(fmt.Sprintf("failed to obtain token: %v", err))
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgentHeader)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, e.classifier.ClassifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, e.classifier.ClassifyTransport(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.classifier.Classify(resp.StatusCode, resp.Header, body)
	}

	e.classifier.UpdateRateLimit(resp.Header)
	e.logger.WithField("url", url).Debug("GitHub request successful")
	return body, nil
}
