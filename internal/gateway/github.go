// Package gateway provides a gateway to the GitHub REST API: URL construction,
// rate limited and retried request execution, and error classification.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/ratelimit"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://api.github.com"
	DefaultPerPage    = 30
	DefaultMaxCommits = 10

	// firstPage is the only page fetched for any resource.
	firstPage = 1
)

// Config holds the settings of the GitHub gateway.
type Config struct {
	BaseURL    string
	Token      string
	PerPage    int
	MaxCommits int

	ReposEndpoint   string
	CommitsEndpoint string
	Headers         HeaderNames
	Retry           RetryPolicy
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PerPage <= 0 {
		c.PerPage = DefaultPerPage
	}
	if c.MaxCommits <= 0 {
		c.MaxCommits = DefaultMaxCommits
	}
	if c.ReposEndpoint == "" {
		c.ReposEndpoint = DefaultUsersReposEndpoint
	}
	if c.CommitsEndpoint == "" {
		c.CommitsEndpoint = DefaultRepoCommitsEndpoint
	}
}

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchRepositories(ctx context.Context, username string) ([]domain.Repository, error)
	FetchCommits(ctx context.Context, repoFullName, branch string) ([]domain.Commit, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	config   Config
	executor *Executor
	logger   logrus.FieldLogger
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// Every request made through the gateway is gated by limiter.
func NewGitHubGateway(cfg Config, httpClient *http.Client, limiter *ratelimit.Limiter, logger logrus.FieldLogger) (*GitHubGateway, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("GitHub token must not be blank")
	}
	cfg.applyDefaults()

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	classifier := NewClassifier(cfg.Headers, limiter, logger)
	executor := NewExecutor(httpClient, tokenSource, limiter, classifier, cfg.Retry, logger)

	return &GitHubGateway{
		config:   cfg,
		executor: executor,
		logger:   logger,
	}, nil
}

// FetchRepositories lists the first page of public repositories of username,
// most recently updated first.
func (g *GitHubGateway) FetchRepositories(ctx context.Context, username string) ([]domain.Repository, error) {
	url := g.BuildRepositoriesURL(username, firstPage)
	g.logger.WithFields(logrus.Fields{"username": username, "page": firstPage}).Debug("Fetching repositories")

	body, err := g.executor.Execute(ctx, url)
	if err != nil {
		if connectorErr, ok := domain.AsConnectorError(err); ok && connectorErr.Kind == domain.KindUserNotFound {
			return nil, domain.NewUserNotFound(username)
		}
		return nil, err
	}

	var wireRepos []*github.Repository
	if err := json.Unmarshal(body, &wireRepos); err != nil {
		return nil, domain.NewConnectorFailure("failed to decode repositories", err)
	}

	repos := make([]domain.Repository, 0, len(wireRepos))
	for _, wireRepo := range wireRepos {
		if wireRepo == nil {
			continue
		}
		repos = append(repos, toRepository(wireRepo))
	}
	g.logger.WithField("username", username).Infof("Fetched %d repositories", len(repos))
	return repos, nil
}

// FetchCommits lists the most recent commits of repoFullName on branch.
func (g *GitHubGateway) FetchCommits(ctx context.Context, repoFullName, branch string) ([]domain.Commit, error) {
	url := g.BuildCommitsURL(repoFullName, branch, firstPage)
	g.logger.WithFields(logrus.Fields{
		"repository": repoFullName,
		"branch":     branch,
		"page":       firstPage,
	}).Debug("Fetching commits")

	body, err := g.executor.Execute(ctx, url)
	if err != nil {
		return nil, err
	}

	var wireCommits []*github.RepositoryCommit
	if err := json.Unmarshal(body, &wireCommits); err != nil {
		return nil, domain.NewConnectorFailure("failed to decode commits", err)
	}

	commits := make([]domain.Commit, 0, len(wireCommits))
	for _, wireCommit := range wireCommits {
		if wireCommit == nil {
			continue
		}
		commits = append(commits, toCommit(wireCommit))
	}
	g.logger.WithField("repository", repoFullName).Debugf("Fetched %d commits", len(commits))
	return commits, nil
}

func toRepository(r *github.Repository) domain.Repository {
	repo := domain.Repository{
		ID:              r.GetID(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		HTMLURL:         r.GetHTMLURL(),
		Description:     r.GetDescription(),
		Language:        r.GetLanguage(),
		StargazersCount: r.GetStargazersCount(),
		WatchersCount:   r.GetWatchersCount(),
		ForksCount:      r.GetForksCount(),
		CreatedAt:       timestampPtr(r.CreatedAt),
		UpdatedAt:       timestampPtr(r.UpdatedAt),
		PushedAt:        timestampPtr(r.PushedAt),
		DefaultBranch:   r.GetDefaultBranch(),
	}
	if owner := r.GetOwner(); owner != nil {
		repo.Owner = &domain.Owner{
			ID:        owner.GetID(),
			Login:     owner.GetLogin(),
			AvatarURL: owner.GetAvatarURL(),
			HTMLURL:   owner.GetHTMLURL(),
			Type:      owner.GetType(),
		}
	}
	return repo
}

func toCommit(c *github.RepositoryCommit) domain.Commit {
	commit := domain.Commit{
		SHA:     c.GetSHA(),
		HTMLURL: c.GetHTMLURL(),
	}
	if details := c.GetCommit(); details != nil {
		commit.Message = details.GetMessage()
		commit.Author = toAuthorInfo(details.GetAuthor())
		commit.Committer = toAuthorInfo(details.GetCommitter())
	}
	// Author is absent for commits whose email is not linked to a GitHub account.
	if account := c.GetAuthor(); account != nil {
		commit.Account = &domain.CommitAccount{
			ID:        account.GetID(),
			Login:     account.GetLogin(),
			AvatarURL: account.GetAvatarURL(),
			HTMLURL:   account.GetHTMLURL(),
		}
	}
	return commit
}

func toAuthorInfo(a *github.CommitAuthor) *domain.AuthorInfo {
	if a == nil {
		return nil
	}
	return &domain.AuthorInfo{
		Name:  a.GetName(),
		Email: a.GetEmail(),
		Date:  timestampPtr(a.Date),
	}
}

func timestampPtr(ts *github.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}
