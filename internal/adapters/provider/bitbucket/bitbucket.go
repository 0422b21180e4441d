// Package bitbucket acquires contribution signals from the Bitbucket
// Cloud REST API.
//
// Bitbucket has no single contribution feed, so the collector enumerates
// repositories the user contributes to and filters commits and pull
// requests client-side against the window cutoff. Like GitLab it is a
// secondary platform whose numbers are taken wholesale.
package bitbucket

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/adapters/provider/rest"
	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/internal/domain/scoring"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
)

// Default collector configuration constants.
const (
	defaultBaseURL        = "https://api.bitbucket.org/2.0"
	defaultPageLen        = 50
	defaultMaxRepoPages   = 5
	defaultMaxCommitPages = 10

	platformName = "bitbucket"
)

type repoPage struct {
	Values []struct {
		FullName  string    `json:"full_name"`
		UpdatedOn time.Time `json:"updated_on"`
	} `json:"values"`
	Next string `json:"next"`
}

type commitPage struct {
	Values []struct {
		Hash   string    `json:"hash"`
		Date   time.Time `json:"date"`
		Author struct {
			User struct {
				Nickname string `json:"nickname"`
			} `json:"user"`
		} `json:"author"`
	} `json:"values"`
	Next string `json:"next"`
}

type pullRequestPage struct {
	Values []struct {
		CreatedOn time.Time `json:"created_on"`
	} `json:"values"`
	Next string `json:"next"`
}

// Collector implements provider.Collector for Bitbucket Cloud.
type Collector struct {
	rc             *rest.Client
	baseURL        string
	restOpts       []rest.Option
	pageLen        int
	maxRepoPages   int
	maxCommitPages int
	log            logger.Logger
}

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithBaseURL points the collector at a different API root.
func WithBaseURL(base string) Option {
	return func(c *Collector) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithRESTOptions forwards options to the shared retrying client.
func WithRESTOptions(opts ...rest.Option) Option {
	return func(c *Collector) {
		c.restOpts = append(c.restOpts, opts...)
	}
}

// WithMaxRepoPages bounds repository-list pagination.
func WithMaxRepoPages(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxRepoPages = n
		}
	}
}

// WithMaxCommitPages bounds per-repository commit pagination.
func WithMaxCommitPages(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxCommitPages = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
		c.restOpts = append(c.restOpts, rest.WithLogger(l))
	}
}

// NewCollector creates a Bitbucket collector with configuration options.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		baseURL:        defaultBaseURL,
		pageLen:        defaultPageLen,
		maxRepoPages:   defaultMaxRepoPages,
		maxCommitPages: defaultMaxCommitPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("bitbucket")
	}
	c.rc = rest.New(platformName, c.restOpts...)
	return c
}

// Platform returns the platform key this collector contributes under.
func (c *Collector) Platform() string { return model.PlatformBitbucket }

// Bitbucket app passwords authenticate with HTTP basic auth.
func (c *Collector) headers(creds provider.Credentials) map[string]string {
	h := map[string]string{}
	if creds.AccessToken != "" {
		raw := creds.Username + ":" + creds.AccessToken
		h["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	}
	return h
}

// listRepositories enumerates repositories the user is a contributor to,
// pruning ones untouched since the window cutoff.
func (c *Collector) listRepositories(ctx context.Context, creds provider.Credentials, w window.Window) ([]string, error) {
	var repos []string
	next := fmt.Sprintf("%s/repositories?role=contributor&pagelen=%d&sort=-updated_on&q=%s",
		c.baseURL, c.pageLen,
		url.QueryEscape(fmt.Sprintf(`updated_on >= %s`, w.CutoffUTC.Format(time.RFC3339))))

	for page := 1; next != "" && page <= c.maxRepoPages; page++ {
		var rp repoPage
		if err := c.rc.GetJSON(ctx, "list_repos", next, c.headers(creds), &rp); err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}
		for _, r := range rp.Values {
			if w.Contains(r.UpdatedOn) {
				repos = append(repos, r.FullName)
			}
		}
		next = rp.Next
	}
	return repos, nil
}

// countCommits pages one repository's commits and counts those authored
// by the user inside the window. The date filter is client-side.
func (c *Collector) countCommits(ctx context.Context, creds provider.Credentials, w window.Window, repo string, dates map[string]struct{}) int {
	count := 0
	next := fmt.Sprintf("%s/repositories/%s/commits?pagelen=%d", c.baseURL, repo, c.pageLen)

	for page := 1; next != "" && page <= c.maxCommitPages; page++ {
		var cp commitPage
		if err := c.rc.GetJSON(ctx, "list_commits", next, c.headers(creds), &cp); err != nil {
			c.log.Warn(ctx, "bitbucket commit listing failed",
				logger.String("repo", repo), logger.Error(err))
			break
		}
		crossedCutoff := false
		for _, commit := range cp.Values {
			if !w.Contains(commit.Date) {
				// History is newest first: everything after is older.
				crossedCutoff = true
				break
			}
			if commit.Author.User.Nickname != creds.Username {
				continue
			}
			count++
			dates[commit.Date.In(w.Location).Format("2006-01-02")] = struct{}{}
		}
		if crossedCutoff {
			break
		}
		next = cp.Next
	}
	return count
}

// countPullRequests counts the user's pull requests in one repository
// created inside the window.
func (c *Collector) countPullRequests(ctx context.Context, creds provider.Credentials, w window.Window, repo string) int {
	count := 0
	q := url.QueryEscape(fmt.Sprintf(`author.nickname = "%s" AND created_on >= %s`,
		creds.Username, w.CutoffUTC.Format(time.RFC3339)))
	next := fmt.Sprintf("%s/repositories/%s/pullrequests?state=ALL&pagelen=%d&q=%s",
		c.baseURL, repo, c.pageLen, q)

	for next != "" {
		var pp pullRequestPage
		if err := c.rc.GetJSON(ctx, "list_pullrequests", next, c.headers(creds), &pp); err != nil {
			break
		}
		for _, pr := range pp.Values {
			if w.Contains(pr.CreatedOn) {
				count++
			}
		}
		next = pp.Next
	}
	return count
}

// Collect gathers the user's Bitbucket contribution stats for the window.
func (c *Collector) Collect(ctx context.Context, creds provider.Credentials, w window.Window) (model.ProviderStats, error) {
	if err := ctx.Err(); err != nil {
		return model.ProviderStats{}, err
	}

	repos, err := c.listRepositories(ctx, creds, w)
	if err != nil {
		return model.ProviderStats{}, err
	}

	var stats model.ProviderStats
	dates := make(map[string]struct{})
	for _, repo := range repos {
		stats.Commits += c.countCommits(ctx, creds, w, repo, dates)
		stats.PullRequests += c.countPullRequests(ctx, creds, w, repo)
		stats.RepositoriesTouched++
	}

	stats.ActiveDays = len(dates)
	stats.Streak = scoring.Streak(dates)
	stats.LastUpdated = time.Now().UTC()

	c.log.Debug(ctx, "bitbucket stats collected",
		logger.String("username", creds.Username),
		logger.Int("commits", stats.Commits),
		logger.Int("repos", stats.RepositoriesTouched),
	)
	return stats, nil
}
