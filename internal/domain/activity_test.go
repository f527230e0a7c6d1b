package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commits(n int) []Commit {
	out := make([]Commit, n)
	for i := range out {
		out[i] = Commit{SHA: fmt.Sprintf("sha-%d", i)}
	}
	return out
}

func TestNewActivityReport(t *testing.T) {
	testCases := []struct {
		name          string
		repos         []Repository
		expectedRepos int
		expectedTotal int
		expectedStats CommitStats
	}{
		{
			name:          "nil repositories yield an empty list",
			repos:         nil,
			expectedRepos: 0,
			expectedTotal: 0,
			expectedStats: CommitStats{},
		},
		{
			name: "counts commits across repositories",
			repos: []Repository{
				{Name: "a", RecentCommits: commits(3)},
				{Name: "b", RecentCommits: []Commit{}},
				{Name: "c", RecentCommits: commits(6)},
			},
			expectedRepos: 3,
			expectedTotal: 9,
			expectedStats: CommitStats{MeanPerRepository: 3, MedianPerRepository: 3, MaxPerRepository: 6},
		},
		{
			name:          "repository without commit list counts as zero",
			repos:         []Repository{{Name: "a"}},
			expectedRepos: 1,
			expectedTotal: 0,
			expectedStats: CommitStats{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := time.Now()
			report := NewActivityReport("octocat", tc.repos)

			require.NotNil(t, report.Repositories)
			assert.Equal(t, "octocat", report.Username)
			assert.Equal(t, tc.expectedRepos, report.TotalRepositories)
			assert.Equal(t, tc.expectedTotal, report.TotalCommitsFetched)
			assert.Equal(t, tc.expectedStats, report.CommitStats)
			assert.False(t, report.FetchedAt.Before(before))
		})
	}
}

func TestActivityReport_TotalsAreFrozen(t *testing.T) {
	repos := []Repository{{Name: "a", RecentCommits: commits(2)}}
	report := NewActivityReport("octocat", repos)

	report.Repositories[0].RecentCommits = commits(5)

	assert.Equal(t, 2, report.TotalCommitsFetched)
}

func TestActivityReport_PreservesOrder(t *testing.T) {
	repos := []Repository{{Name: "z"}, {Name: "a"}, {Name: "m"}}
	report := NewActivityReport("octocat", repos)

	names := []string{}
	for _, repo := range report.Repositories {
		names = append(names, repo.Name)
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
}

func TestRepository_Branch(t *testing.T) {
	assert.Equal(t, "main", (&Repository{}).Branch())
	assert.Equal(t, "develop", (&Repository{DefaultBranch: "develop"}).Branch())
}

func TestConnectorError(t *testing.T) {
	resetAt := time.Unix(1700000000, 0)

	testCases := []struct {
		name      string
		err       *ConnectorError
		kind      ErrorKind
		code      string
		status    int
		retryable bool
	}{
		{"authentication", NewAuthenticationFailed("bad token"), KindAuthenticationFailed, "AUTHENTICATION_FAILED", http.StatusUnauthorized, false},
		{"rate limit", NewRateLimitExceeded("slow down", resetAt, 0), KindRateLimitExceeded, "RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests, false},
		{"forbidden", NewAccessForbidden("nope"), KindAccessForbidden, "ACCESS_FORBIDDEN", http.StatusForbidden, true},
		{"not found", NewUserNotFound("ghost"), KindUserNotFound, "USER_NOT_FOUND", http.StatusNotFound, false},
		{"client", NewClientError(http.StatusUnprocessableEntity, "bad"), KindClientError, "CLIENT_ERROR", http.StatusUnprocessableEntity, true},
		{"server", NewServerError(http.StatusBadGateway, "down"), KindServerError, "SERVER_ERROR", http.StatusBadGateway, true},
		{"transport", NewTransportError(errors.New("dial tcp")), KindTransportError, "TRANSPORT_ERROR", http.StatusServiceUnavailable, true},
		{"failure", NewConnectorFailure("boom", errors.New("cause")), KindConnectorFailure, "UNKNOWN_ERROR", http.StatusInternalServerError, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to fetch: %w", tc.err)

			assert.Equal(t, tc.kind, KindOf(wrapped))
			assert.Equal(t, tc.code, tc.err.Code())
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.retryable, IsRetryable(wrapped))

			got, ok := AsConnectorError(wrapped)
			require.True(t, ok)
			assert.Same(t, tc.err, got)
		})
	}
}

func TestConnectorError_UnclassifiedErrors(t *testing.T) {
	err := errors.New("plain")

	assert.Equal(t, KindConnectorFailure, KindOf(err))
	assert.False(t, IsRetryable(err))
	_, ok := AsConnectorError(err)
	assert.False(t, ok)
}

func TestNewUserNotFound_Placeholder(t *testing.T) {
	err := NewUserNotFound("")
	assert.Equal(t, UnknownIdentifier, err.Username)
	assert.Contains(t, err.Error(), "unknown")
}

func TestNewRateLimitExceeded_CarriesReset(t *testing.T) {
	resetAt := time.Unix(1700000000, 0)
	err := NewRateLimitExceeded("slow down", resetAt, 0)

	assert.Equal(t, resetAt, err.ResetAt)
	assert.Equal(t, 0, err.Remaining)
}

func TestConnectorError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError(cause)

	assert.ErrorIs(t, err, cause)
}
