package github

import (
	"context"
	"fmt"

	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
	"github.com/devrank/devrank/pkg/metrics"
)

// Event kinds that count as contribution activity in the feed scan.
const (
	eventTypePush   = "PushEvent"
	eventTypeCreate = "CreateEvent"
)

const civilDayLayout = "2006-01-02"

// eventScan is the digest of one pass over the public-activity feed:
// commit tally from push events plus the distinct civil dates and
// repositories touched inside the window. Ephemeral, never persisted.
type eventScan struct {
	commits int
	dates   map[string]struct{}
	repos   map[string]struct{}
}

// commitQueryVariants returns alternate phrasings of the primary commit
// search. GitHub's query parser occasionally rejects an otherwise-valid
// qualifier combination; rephrasing defends against that before the
// primary stage is abandoned.
func (c *Client) commitQueryVariants(username, civilDate string) []string {
	variants := []string{
		fmt.Sprintf("author:%s committer-date:>=%s", username, civilDate),
		fmt.Sprintf("author:%s author-date:>=%s", username, civilDate),
		fmt.Sprintf("%s committer-date:>=%s merge:false", username, civilDate),
	}
	if len(variants) > c.queryVariants {
		variants = variants[:c.queryVariants]
	}
	return variants
}

// CountCommits resolves the user's in-window commit count through the
// cascade: primary search, then the event-scan fallback, then the
// repo-enumeration fallback. It always returns a number; total exhaustion
// degrades to the repo scan's best effort (possibly zero) rather than an
// error, because scoring downstream cannot handle absence.
func (c *Client) CountCommits(ctx context.Context, creds provider.Credentials, w window.Window) (int, Source) {
	return c.countCommits(ctx, creds, w, nil)
}

// countCommits is CountCommits with an optional pre-computed event scan,
// so a caller that already walked the feed (for active days) does not pay
// for a second walk when the primary stage fails.
func (c *Client) countCommits(ctx context.Context, creds provider.Credentials, w window.Window, scanned *eventScan) (int, Source) {
	// Stage 1: primary search, with alternate phrasings.
	for _, q := range c.commitQueryVariants(creds.Username, w.CivilDateString()) {
		res := c.SearchCommits(ctx, creds.AccessToken, q)
		if !res.Unreliable {
			metrics.RecordCascadeStage("primary", "reliable")
			metrics.RecordCascadeResolved(SourcePrimary.String())
			return res.Count, SourcePrimary
		}
		c.log.Warn(ctx, "commit search unreliable",
			logger.String("user", creds.Username),
			logger.String("query", q),
			logger.String("reason", res.Reason),
		)
	}
	metrics.RecordCascadeStage("primary", "unreliable")

	// Stage 2: event-scan fallback. "Unknown" (scan failed outright) is
	// kept distinct from "zero confirmed".
	eventCount, eventKnown := 0, false
	if scanned != nil {
		eventCount, eventKnown = scanned.commits, true
	} else if scan, err := c.scanEvents(ctx, creds, w); err == nil {
		eventCount, eventKnown = scan.commits, true
	} else {
		c.log.Warn(ctx, "event scan failed", logger.String("user", creds.Username), logger.Error(err))
	}
	if eventKnown {
		metrics.RecordCascadeStage("fallback_events", "known")
	} else {
		metrics.RecordCascadeStage("fallback_events", "unknown")
	}

	if eventKnown && eventCount >= c.confidenceFloor {
		metrics.RecordCascadeResolved(SourceFallbackEvents.String())
		return eventCount, SourceFallbackEvents
	}

	// Stage 3: repo-enumeration fallback. Both fallbacks undercount far
	// more often than they overcount, so reconcile with max.
	repoCount, repoKnown := c.countViaRepos(ctx, creds, w)
	if repoKnown {
		metrics.RecordCascadeStage("fallback_repos", "known")
	} else {
		metrics.RecordCascadeStage("fallback_repos", "unknown")
	}

	switch {
	case eventKnown && repoKnown:
		if eventCount > repoCount {
			metrics.RecordCascadeResolved(SourceFallbackEvents.String())
			return eventCount, SourceFallbackEvents
		}
		metrics.RecordCascadeResolved(SourceFallbackRepos.String())
		return repoCount, SourceFallbackRepos
	case eventKnown:
		metrics.RecordCascadeResolved(SourceFallbackEvents.String())
		return eventCount, SourceFallbackEvents
	default:
		// Repo result, or total exhaustion: the best effort we have.
		metrics.RecordCascadeResolved(SourceFallbackRepos.String())
		return repoCount, SourceFallbackRepos
	}
}

// scanEvents walks the public-activity feed newest-first, bounded by
// maxEventPages. Paging stops once the oldest event on a page predates
// the cutoff (after the in-window subset of that page is tallied).
func (c *Client) scanEvents(ctx context.Context, creds provider.Credentials, w window.Window) (*eventScan, error) {
	scan := &eventScan{
		dates: make(map[string]struct{}),
		repos: make(map[string]struct{}),
	}

	for page := 1; page <= c.maxEventPages; page++ {
		events, err := c.ListEvents(ctx, creds.Username, creds.AccessToken, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// A partial scan is still a usable undercount.
			c.log.Warn(ctx, "event scan truncated",
				logger.String("user", creds.Username),
				logger.Int("page", page),
				logger.Error(err),
			)
			return scan, nil
		}
		if len(events) == 0 {
			break
		}

		crossedCutoff := false
		for _, e := range events {
			if !w.Contains(e.CreatedAt) {
				crossedCutoff = true
				continue
			}
			switch e.Type {
			case eventTypePush:
				scan.commits += len(e.Payload.Commits)
			case eventTypeCreate:
				// Activity, but carries no commits.
			default:
				continue
			}
			scan.dates[e.CreatedAt.In(w.Location).Format(civilDayLayout)] = struct{}{}
			if e.Repo.Name != "" {
				scan.repos[e.Repo.Name] = struct{}{}
			}
		}

		if crossedCutoff || len(events) < c.perPage {
			break
		}
	}
	return scan, nil
}

// countViaRepos enumerates the user's repositories and sums in-window
// commits authored by the user. A repository whose last activity predates
// the cutoff is pruned without a single commit query. The bool result is
// false only when not even the repository list could be fetched.
func (c *Client) countViaRepos(ctx context.Context, creds provider.Credentials, w window.Window) (int, bool) {
	total := 0
	listed := false

	for page := 1; page <= c.maxRepoPages; page++ {
		repos, err := c.ListRepositories(ctx, creds.Username, creds.AccessToken, page)
		if err != nil {
			if !listed {
				return 0, false
			}
			break
		}
		listed = true
		if len(repos) == 0 {
			break
		}

		for _, r := range repos {
			if !w.Contains(r.UpdatedAt) {
				// Cheap prune: nothing in this repo can be in-window.
				continue
			}
			n, err := c.countRepoCommits(ctx, creds, r.FullName, w)
			if err != nil {
				// One broken repository must not abort the scan.
				c.log.Warn(ctx, "repo commit scan failed",
					logger.String("repo", r.FullName),
					logger.Error(err),
				)
				continue
			}
			total += n
		}

		if len(repos) < c.perPage {
			break
		}
	}
	return total, listed
}

// countRepoCommits pages through one repository's commit history, bounded
// by maxCommitPages.
func (c *Client) countRepoCommits(ctx context.Context, creds provider.Credentials, repoFullName string, w window.Window) (int, error) {
	total := 0
	for page := 1; page <= c.maxCommitPages; page++ {
		commits, err := c.ListRepoCommits(ctx, creds.AccessToken, repoFullName, creds.Username, w.CutoffUTC, page)
		if err != nil {
			return 0, err
		}
		if len(commits) == 0 {
			break
		}
		for _, cm := range commits {
			// The server already filters by author and since; re-check the
			// instant so clock skew on either side cannot leak an
			// out-of-window commit into the tally.
			if w.Contains(cm.Commit.Committer.Date) {
				total++
			}
		}
		if len(commits) < c.perPage {
			break
		}
	}
	return total, nil
}
