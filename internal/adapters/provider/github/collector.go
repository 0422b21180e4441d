package github

import (
	"context"
	"fmt"
	"time"

	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/internal/domain/scoring"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
)

// Collector implements provider.Collector for GitHub, the primary
// platform.
type Collector struct {
	client *Client
	log    logger.Logger
}

// NewCollector wraps a Client as a provider.Collector.
func NewCollector(client *Client) *Collector {
	return &Collector{
		client: client,
		log:    logger.Get().Named("github"),
	}
}

// Platform returns the platform key.
func (c *Collector) Platform() string { return model.PlatformGitHub }

// Collect gathers the user's GitHub stats since the window cutoff and
// returns them as one wholesale record. Commits go through the cascade;
// pull requests, issues and reviews come from issue search (best-effort
// zero when unreliable); active days, repositories touched and streak are
// derived from the in-window activity scan.
func (c *Collector) Collect(ctx context.Context, creds provider.Credentials, w window.Window) (model.ProviderStats, error) {
	if err := ctx.Err(); err != nil {
		return model.ProviderStats{}, fmt.Errorf("collect github stats: %w", err)
	}

	// One feed walk serves both the activity tallies and, when the
	// primary search fails, the event-scan fallback.
	scan, err := c.client.scanEvents(ctx, creds, w)
	if err != nil {
		c.log.Warn(ctx, "activity scan unavailable",
			logger.String("user", creds.Username),
			logger.Error(err),
		)
		scan = nil
	}

	commits, source := c.client.countCommits(ctx, creds, w, scan)
	c.log.Debug(ctx, "commit count resolved",
		logger.String("user", creds.Username),
		logger.Int("commits", commits),
		logger.String("source", source.String()),
	)

	civil := w.CivilDateString()
	stats := model.ProviderStats{
		Commits:      commits,
		PullRequests: c.bestEffortSearch(ctx, creds.AccessToken, prQueries(creds.Username, civil)),
		Issues:       c.bestEffortSearch(ctx, creds.AccessToken, issueQueries(creds.Username, civil)),
		CodeReviews:  c.bestEffortSearch(ctx, creds.AccessToken, reviewQueries(creds.Username, civil)),
		LastUpdated:  time.Now().UTC(),
	}
	if scan != nil {
		stats.ActiveDays = len(scan.dates)
		stats.RepositoriesTouched = len(scan.repos)
		stats.Streak = scoring.Streak(scan.dates)
	}
	return stats, nil
}

// bestEffortSearch tries each query phrasing in turn and returns the first
// reliable count, or zero when all phrasings fail. Unlike commits, these
// signals have no independent fallback source.
func (c *Collector) bestEffortSearch(ctx context.Context, token string, queries []string) int {
	for _, q := range queries {
		res := c.client.SearchIssues(ctx, token, q)
		if !res.Unreliable {
			return res.Count
		}
	}
	return 0
}

func prQueries(username, civilDate string) []string {
	return []string{
		fmt.Sprintf("type:pr author:%s created:>=%s", username, civilDate),
		fmt.Sprintf("is:pr author:%s created:>=%s", username, civilDate),
	}
}

func issueQueries(username, civilDate string) []string {
	return []string{
		fmt.Sprintf("type:issue author:%s created:>=%s", username, civilDate),
		fmt.Sprintf("is:issue author:%s created:>=%s", username, civilDate),
	}
}

func reviewQueries(username, civilDate string) []string {
	return []string{
		fmt.Sprintf("type:pr reviewed-by:%s updated:>=%s", username, civilDate),
		fmt.Sprintf("is:pr reviewed-by:%s updated:>=%s", username, civilDate),
	}
}
