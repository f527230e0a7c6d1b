package cmd

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/naka-gawa/github-activity/internal/config"
	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/naka-gawa/github-activity/internal/ratelimit"
	"github.com/naka-gawa/github-activity/internal/usecase"
	"github.com/sirupsen/logrus"
)

// newActivityPipeline injects the dependencies of the activity use case and
// wraps it with timing, fallback, cache, circuit breaker and retry, outermost first.
func newActivityPipeline(cfg *config.Config, logger logrus.FieldLogger) (usecase.ActivityFunc, error) {
	limiter := ratelimit.NewLimiter(cfg.LimiterConfig(), logger)

	httpClient, err := gateway.NewHTTPClient(cfg.TransportConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	githubGateway, err := gateway.NewGitHubGateway(cfg.GatewayConfig(), httpClient, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	service := usecase.NewActivityService(githubGateway, logger).
		WithFanOutLimit(cfg.Activity.FanOutLimit)

	cache := expirable.NewLRU[string, *domain.ActivityReport](cfg.Activity.CacheSize, nil, cfg.Activity.CacheTTL)
	breaker := usecase.NewCircuitBreaker(
		uint32(cfg.Activity.BreakerMaxFailures),
		cfg.Activity.BreakerOpenTimeout,
		uint32(cfg.Activity.BreakerHalfOpenCalls),
		logger,
	)

	stages := []usecase.Stage{usecase.WithTiming(logger)}
	if cfg.Activity.DegradeOnFailure {
		stages = append(stages, usecase.WithFallback(logger))
	}
	stages = append(stages,
		usecase.WithCache(cache, logger),
		usecase.WithCircuitBreaker(breaker),
		usecase.WithRetry(cfg.Activity.RetryAttempts, cfg.Activity.RetryDelay, logger),
	)

	return usecase.Chain(service.FetchUserActivity, stages...), nil
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
