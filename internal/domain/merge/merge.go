// Package merge combines per-platform contribution stats into one unified
// record.
//
// The policy is floor-not-sum for the primary platform: for each metric the
// unified value is max(primary, sum of secondaries). A user whose GitHub
// mirror re-reports commits made on GitLab is not double counted, while a
// user doing substantial work the primary scan cannot see is still
// rewarded. Active days and code reviews come from the primary platform
// only; the secondary platforms do not surface comparable signals.
package merge

import (
	"github.com/devrank/devrank/internal/domain/model"
)

// Merge folds the primary platform's stats and any connected secondary
// platforms' stats into a UnifiedContribution. The per-platform breakdown
// is retained in full for display and audit.
func Merge(primary model.ProviderStats, secondary map[string]model.ProviderStats) model.UnifiedContribution {
	var sumCommits, sumPRs, sumIssues, sumRepos int
	for _, s := range secondary {
		sumCommits += s.Commits
		sumPRs += s.PullRequests
		sumIssues += s.Issues
		sumRepos += s.RepositoriesTouched
	}

	per := make(map[string]model.ProviderStats, len(secondary)+1)
	per[model.PlatformGitHub] = primary
	for platform, s := range secondary {
		per[platform] = s
	}

	return model.UnifiedContribution{
		Commits:             maxInt(primary.Commits, sumCommits),
		PullRequests:        maxInt(primary.PullRequests, sumPRs),
		Issues:              maxInt(primary.Issues, sumIssues),
		RepositoriesTouched: maxInt(primary.RepositoriesTouched, sumRepos),
		CodeReviews:         primary.CodeReviews,
		ActiveDays:          primary.ActiveDays,
		PerPlatform:         per,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
