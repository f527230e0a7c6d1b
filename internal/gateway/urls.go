package gateway

import (
	"net/url"
	"strconv"
	"strings"
)

// Endpoint templates used when the configuration does not override them.
const (
	DefaultUsersReposEndpoint  = "/users/{username}/repos?type=public&sort=updated&per_page={perPage}&page={page}"
	DefaultRepoCommitsEndpoint = "/repos/{repoFullName}/commits?sha={branch}&per_page={maxCommits}&page={page}"
)

// BuildRepositoriesURL returns the URL listing the public repositories of username.
func (g *GitHubGateway) BuildRepositoriesURL(username string, page int) string {
	r := strings.NewReplacer(
		"{username}", url.PathEscape(username),
		"{perPage}", strconv.Itoa(g.config.PerPage),
		"{page}", strconv.Itoa(page),
	)
	return g.config.BaseURL + r.Replace(g.config.ReposEndpoint)
}

// BuildCommitsURL returns the URL listing the commits of repoFullName ("owner/name") on branch.
func (g *GitHubGateway) BuildCommitsURL(repoFullName, branch string, page int) string {
	r := strings.NewReplacer(
		"{repoFullName}", repoFullName,
		"{branch}", url.QueryEscape(branch),
		"{maxCommits}", strconv.Itoa(g.config.MaxCommits),
		"{page}", strconv.Itoa(page),
	)
	return g.config.BaseURL + r.Replace(g.config.CommitsEndpoint)
}
