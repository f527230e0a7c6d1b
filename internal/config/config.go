// Package config loads the application settings from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/naka-gawa/github-activity/internal/ratelimit"
)

type Config struct {
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	HTTP      HTTPConfig
	Activity  ActivityConfig
	Server    ServerConfig
	Log       LogConfig
}

type GitHubConfig struct {
	Token               string
	BaseURL             string
	PerPage             int
	MaxCommits          int
	MaxRetries          int
	RetryDelay          time.Duration
	UsersReposEndpoint  string
	RepoCommitsEndpoint string
	RateRemainingHeader string
	RateResetHeader     string
}

type RateLimitConfig struct {
	Ceiling  int
	Window   time.Duration
	LowWater int
}

type HTTPConfig struct {
	ConnectTimeout          time.Duration
	ReadTimeout             time.Duration
	SecondaryRateLimitSleep time.Duration
}

// ActivityConfig tunes the pipeline around the activity use case.
type ActivityConfig struct {
	FanOutLimit          int
	CacheSize            int
	CacheTTL             time.Duration
	BreakerMaxFailures   int
	BreakerOpenTimeout   time.Duration
	BreakerHalfOpenCalls int
	RetryAttempts        int
	RetryDelay           time.Duration
	DegradeOnFailure     bool
}

type ServerConfig struct {
	Port string
	Mode string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from .env file and environment variables.
// A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment.
func FromEnv() *Config {
	return &Config{
		GitHub: GitHubConfig{
			Token:               getEnv("GITHUB_TOKEN", ""),
			BaseURL:             getEnv("GITHUB_BASE_URL", gateway.DefaultBaseURL),
			PerPage:             getEnvAsInt("GITHUB_PER_PAGE", gateway.DefaultPerPage),
			MaxCommits:          getEnvAsInt("GITHUB_MAX_COMMITS", gateway.DefaultMaxCommits),
			MaxRetries:          getEnvAsInt("GITHUB_MAX_RETRIES", gateway.DefaultMaxRetries),
			RetryDelay:          time.Duration(getEnvAsInt("GITHUB_RETRY_DELAY_MS", int(gateway.DefaultRetryDelay/time.Millisecond))) * time.Millisecond,
			UsersReposEndpoint:  getEnv("GITHUB_USERS_REPOS_ENDPOINT", gateway.DefaultUsersReposEndpoint),
			RepoCommitsEndpoint: getEnv("GITHUB_REPO_COMMITS_ENDPOINT", gateway.DefaultRepoCommitsEndpoint),
			RateRemainingHeader: getEnv("GITHUB_RATE_LIMIT_REMAINING_HEADER", gateway.DefaultHeaderNames.Remaining),
			RateResetHeader:     getEnv("GITHUB_RATE_LIMIT_RESET_HEADER", gateway.DefaultHeaderNames.Reset),
		},
		RateLimit: RateLimitConfig{
			Ceiling:  getEnvAsInt("RATE_LIMIT_CEILING", ratelimit.DefaultCeiling),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),
			LowWater: getEnvAsInt("RATE_LIMIT_LOW_WATER", ratelimit.DefaultLowWater),
		},
		HTTP: HTTPConfig{
			ConnectTimeout:          getEnvAsDuration("HTTP_CONNECT_TIMEOUT", 5*time.Second),
			ReadTimeout:             getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			SecondaryRateLimitSleep: getEnvAsDuration("SECONDARY_RATE_LIMIT_SLEEP", gateway.DefaultSecondarySleepLimit),
		},
		Activity: ActivityConfig{
			FanOutLimit:          getEnvAsInt("FANOUT_LIMIT", 0),
			CacheSize:            getEnvAsInt("CACHE_SIZE", 128),
			CacheTTL:             getEnvAsDuration("CACHE_TTL", 10*time.Minute),
			BreakerMaxFailures:   getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			BreakerOpenTimeout:   getEnvAsDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
			BreakerHalfOpenCalls: getEnvAsInt("BREAKER_HALF_OPEN_REQUESTS", 1),
			RetryAttempts:        getEnvAsInt("ACTIVITY_RETRY_ATTEMPTS", 1),
			RetryDelay:           getEnvAsDuration("ACTIVITY_RETRY_DELAY", 500*time.Millisecond),
			DegradeOnFailure:     getEnvAsBool("DEGRADE_ON_FAILURE", true),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GitHub.Token) == "" {
		errs = append(errs, errors.New("GITHUB_TOKEN is required"))
	}
	if strings.TrimSpace(c.GitHub.BaseURL) == "" {
		errs = append(errs, errors.New("GITHUB_BASE_URL must not be blank"))
	}

	positive := []struct {
		key   string
		value int64
	}{
		{"GITHUB_PER_PAGE", int64(c.GitHub.PerPage)},
		{"GITHUB_MAX_COMMITS", int64(c.GitHub.MaxCommits)},
		{"GITHUB_RETRY_DELAY_MS", int64(c.GitHub.RetryDelay)},
		{"RATE_LIMIT_CEILING", int64(c.RateLimit.Ceiling)},
		{"RATE_LIMIT_WINDOW", int64(c.RateLimit.Window)},
		{"HTTP_CONNECT_TIMEOUT", int64(c.HTTP.ConnectTimeout)},
		{"HTTP_READ_TIMEOUT", int64(c.HTTP.ReadTimeout)},
		{"CACHE_SIZE", int64(c.Activity.CacheSize)},
		{"CACHE_TTL", int64(c.Activity.CacheTTL)},
		{"BREAKER_MAX_FAILURES", int64(c.Activity.BreakerMaxFailures)},
		{"BREAKER_OPEN_TIMEOUT", int64(c.Activity.BreakerOpenTimeout)},
		{"BREAKER_HALF_OPEN_REQUESTS", int64(c.Activity.BreakerHalfOpenCalls)},
		{"ACTIVITY_RETRY_ATTEMPTS", int64(c.Activity.RetryAttempts)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.key))
		}
	}
	if c.GitHub.MaxRetries < 0 {
		errs = append(errs, errors.New("GITHUB_MAX_RETRIES must not be negative"))
	}
	if c.RateLimit.LowWater < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_LOW_WATER must not be negative"))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.Server.Mode))
	}
	return errors.Join(errs...)
}

// GatewayConfig returns the settings of the GitHub gateway.
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		BaseURL:         c.GitHub.BaseURL,
		Token:           c.GitHub.Token,
		PerPage:         c.GitHub.PerPage,
		MaxCommits:      c.GitHub.MaxCommits,
		ReposEndpoint:   c.GitHub.UsersReposEndpoint,
		CommitsEndpoint: c.GitHub.RepoCommitsEndpoint,
		Headers: gateway.HeaderNames{
			Remaining: c.GitHub.RateRemainingHeader,
			Reset:     c.GitHub.RateResetHeader,
		},
		Retry: gateway.RetryPolicy{
			MaxRetries: c.GitHub.MaxRetries,
			BaseDelay:  c.GitHub.RetryDelay,
		},
	}
}

// LimiterConfig returns the settings of the local rate limiter.
func (c *Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		Ceiling:  c.RateLimit.Ceiling,
		Window:   c.RateLimit.Window,
		LowWater: c.RateLimit.LowWater,
	}
}

// TransportConfig returns the settings of the outbound HTTP client.
func (c *Config) TransportConfig() gateway.TransportConfig {
	return gateway.TransportConfig{
		ConnectTimeout:      c.HTTP.ConnectTimeout,
		ReadTimeout:         c.HTTP.ReadTimeout,
		SecondarySleepLimit: c.HTTP.SecondaryRateLimitSleep,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s", "1h") or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
