// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"

	"github.com/naka-gawa/github-activity/internal/domain"
	"github.com/naka-gawa/github-activity/internal/gateway"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ActivityService is the use case for assembling a user's GitHub activity.
// Listing repositories is all-or-nothing; loading their commits is best effort
// per repository.
type ActivityService struct {
	fetcher     gateway.Fetcher
	logger      logrus.FieldLogger
	fanOutLimit int
}

// NewActivityService creates a new ActivityService instance.
func NewActivityService(fetcher gateway.Fetcher, logger logrus.FieldLogger) *ActivityService {
	return &ActivityService{
		fetcher:     fetcher,
		logger:      logger,
		fanOutLimit: -1,
	}
}

// WithFanOutLimit caps the number of concurrent commit fetches. n <= 0 means unbounded.
func (s *ActivityService) WithFanOutLimit(n int) *ActivityService {
	if n <= 0 {
		n = -1
	}
	s.fanOutLimit = n
	return s
}

// FetchUserActivity lists the public repositories of username and loads the
// recent commits of each one concurrently.
func (s *ActivityService) FetchUserActivity(ctx context.Context, username string) (*domain.ActivityReport, error) {
	log := s.logger.WithField("username", username)
	log.Info("Fetching GitHub activity")

	repos, err := s.fetcher.FetchRepositories(ctx, username)
	if err != nil {
		if _, ok := domain.AsConnectorError(err); ok {
			return nil, err
		}
		return nil, domain.NewConnectorFailure("Failure while fetching activity", err)
	}

	if len(repos) == 0 {
		log.Warn("No repositories found")
		return domain.NewActivityReport(username, nil), nil
	}

	// Each task writes only its own element, so no locking is needed.
	var eg errgroup.Group
	eg.SetLimit(s.fanOutLimit)
	for i := range repos {
		repo := &repos[i]
		eg.Go(func() error {
			s.fetchCommitsForRepository(ctx, repo)
			return nil
		})
	}
	_ = eg.Wait()

	// Commits lost to the caller's cancellation are not a per-repository
	// failure, so no partial report leaves here.
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("GitHub activity request cancelled")
		return nil, domain.NewConnectorFailure("GitHub activity request cancelled", err)
	}

	report := domain.NewActivityReport(username, repos)
	log.WithFields(logrus.Fields{
		"repositories": report.TotalRepositories,
		"commits":      report.TotalCommitsFetched,
	}).Info("Fetched GitHub activity")
	return report, nil
}

// fetchCommitsForRepository sets repo.RecentCommits. Any failure, including
// a panic, leaves the repository with an empty commit list.
func (s *ActivityService) fetchCommitsForRepository(ctx context.Context, repo *domain.Repository) {
	log := s.logger.WithField("repository", repo.FullName)
	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("panic: %v", r)).Warn("Failed to fetch commits")
			repo.RecentCommits = []domain.Commit{}
		}
	}()

	commits, err := s.fetcher.FetchCommits(ctx, repo.FullName, repo.Branch())
	if err != nil {
		log.WithError(err).Warn("Failed to fetch commits")
		repo.RecentCommits = []domain.Commit{}
		return
	}
	if commits == nil {
		commits = []domain.Commit{}
	}
	repo.RecentCommits = commits
	log.Debugf("Fetched %d commits", len(commits))
}
