package domain

import (
	"github.com/montanaflynn/stats"
)

// CommitStats summarizes how fetched commits are spread across repositories.
type CommitStats struct {
	MeanPerRepository   float64 `json:"mean_per_repository"`
	MedianPerRepository float64 `json:"median_per_repository"`
	MaxPerRepository    int     `json:"max_per_repository"`
}

// NewCommitStats computes the per-repository commit distribution.
// An empty input yields zero values.
func NewCommitStats(repos []Repository) CommitStats {
	if len(repos) == 0 {
		return CommitStats{}
	}
	counts := make(stats.Float64Data, 0, len(repos))
	for _, repo := range repos {
		counts = append(counts, float64(len(repo.RecentCommits)))
	}

	// The only error the library returns here is for empty input, handled above.
	mean, _ := counts.Mean()
	median, _ := counts.Median()
	maxCount, _ := counts.Max()

	return CommitStats{
		MeanPerRepository:   mean,
		MedianPerRepository: median,
		MaxPerRepository:    int(maxCount),
	}
}
