// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// DefaultBranchFallback is used when a repository does not report a default branch.
const DefaultBranchFallback = "main"

// Owner is the account that owns a repository.
type Owner struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
	Type      string `json:"type,omitempty"`
}

// Repository is a public repository of the requested user together with
// the commits fetched for it.
type Repository struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	FullName        string     `json:"full_name"`
	HTMLURL         string     `json:"html_url,omitempty"`
	Description     string     `json:"description,omitempty"`
	Language        string     `json:"language,omitempty"`
	StargazersCount int        `json:"stargazers_count"`
	WatchersCount   int        `json:"watchers_count"`
	ForksCount      int        `json:"forks_count"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	PushedAt        *time.Time `json:"pushed_at,omitempty"`
	DefaultBranch   string     `json:"default_branch"`
	Owner           *Owner     `json:"owner,omitempty"`
	RecentCommits   []Commit   `json:"recent_commits"`
}

// Branch returns the branch whose commits should be listed.
func (r *Repository) Branch() string {
	if r.DefaultBranch == "" {
		return DefaultBranchFallback
	}
	return r.DefaultBranch
}

// AuthorInfo is the git-level identity attached to a commit. Every field is optional.
type AuthorInfo struct {
	Name  string     `json:"name,omitempty"`
	Email string     `json:"email,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// CommitAccount is the GitHub account linked to a commit, if any.
type CommitAccount struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// Commit is a single commit of a repository. SHA is unique within the repository.
type Commit struct {
	SHA       string         `json:"sha"`
	Message   string         `json:"message"`
	HTMLURL   string         `json:"html_url,omitempty"`
	Author    *AuthorInfo    `json:"author,omitempty"`
	Committer *AuthorInfo    `json:"committer,omitempty"`
	Account   *CommitAccount `json:"account,omitempty"`
}

// ActivityReport is the aggregate returned for one user.
// The totals are computed once by NewActivityReport and are not kept in sync
// with later changes to Repositories.
type ActivityReport struct {
	Username            string       `json:"username"`
	FetchedAt           time.Time    `json:"fetched_at"`
	Repositories        []Repository `json:"repositories"`
	TotalRepositories   int          `json:"total_repositories"`
	TotalCommitsFetched int          `json:"total_commits_fetched"`
	CommitStats         CommitStats  `json:"commit_stats"`
}

// NewActivityReport builds a report for username, preserving the order of repos.
// A nil repos slice yields a report with an empty repository list.
func NewActivityReport(username string, repos []Repository) *ActivityReport {
	if repos == nil {
		repos = []Repository{}
	}
	total := 0
	for _, repo := range repos {
		total += len(repo.RecentCommits)
	}
	return &ActivityReport{
		Username:            username,
		FetchedAt:           time.Now(),
		Repositories:        repos,
		TotalRepositories:   len(repos),
		TotalCommitsFetched: total,
		CommitStats:         NewCommitStats(repos),
	}
}
