// Package gitlab acquires contribution signals from the GitLab REST API.
//
// GitLab is a secondary platform: its numbers are taken wholesale, never
// reconciled per-stage the way the GitHub cascade is.
package gitlab

import (
	"context"
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
	defaultBaseURL       = "https://gitlab.com/api/v4"
	defaultPerPage       = 100
	defaultMaxEventPages = 10

	platformName = "gitlab"
)

type user struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type event struct {
	Action     string    `json:"action_name"`
	TargetType string    `json:"target_type"`
	ProjectID  int       `json:"project_id"`
	CreatedAt  time.Time `json:"created_at"`
	PushData   *struct {
		CommitCount int `json:"commit_count"`
	} `json:"push_data"`
}

// Collector implements provider.Collector for GitLab.
type Collector struct {
	rc            *rest.Client
	baseURL       string
	restOpts      []rest.Option
	perPage       int
	maxEventPages int
	log           logger.Logger
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

// WithMaxEventPages bounds how far back the event scan pages.
func WithMaxEventPages(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxEventPages = n
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

// NewCollector creates a GitLab collector with configuration options.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		baseURL:       defaultBaseURL,
		perPage:       defaultPerPage,
		maxEventPages: defaultMaxEventPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("gitlab")
	}
	c.rc = rest.New(platformName, c.restOpts...)
	return c
}

// Platform returns the platform key this collector contributes under.
func (c *Collector) Platform() string { return model.PlatformGitLab }

func (c *Collector) headers(token string) map[string]string {
	h := map[string]string{}
	if token != "" {
		h["PRIVATE-TOKEN"] = token
	}
	return h
}

// lookupUser resolves a username to its numeric GitLab user id.
func (c *Collector) lookupUser(ctx context.Context, creds provider.Credentials) (int, error) {
	u := fmt.Sprintf("%s/users?username=%s", c.baseURL, url.QueryEscape(creds.Username))
	var users []user
	if err := c.rc.GetJSON(ctx, "lookup_user", u, c.headers(creds.AccessToken), &users); err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, fmt.Errorf("gitlab: user %q not found", creds.Username)
	}
	return users[0].ID, nil
}

// scanEvents pages through the user's contribution events after the
// window cutoff and accumulates commits, merge requests, issues,
// projects touched and active days.
func (c *Collector) scanEvents(ctx context.Context, userID int, creds provider.Credentials, w window.Window) (model.ProviderStats, map[string]struct{}, error) {
	var stats model.ProviderStats
	dates := make(map[string]struct{})
	projects := make(map[int]struct{})
	after := w.CutoffUTC.Add(-24 * time.Hour).Format("2006-01-02")

	for page := 1; page <= c.maxEventPages; page++ {
		u := fmt.Sprintf("%s/users/%d/events?after=%s&page=%d&per_page=%d",
			c.baseURL, userID, after, page, c.perPage)
		var events []event
		if err := c.rc.GetJSON(ctx, "list_events", u, c.headers(creds.AccessToken), &events); err != nil {
			if page == 1 {
				return model.ProviderStats{}, nil, err
			}
			// Later pages are best effort, keep what we have.
			c.log.Warn(ctx, "gitlab event scan truncated",
				logger.Int("page", page), logger.Error(err))
			break
		}
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			if !w.Contains(ev.CreatedAt) {
				continue
			}
			dates[ev.CreatedAt.In(w.Location).Format("2006-01-02")] = struct{}{}
			if ev.ProjectID != 0 {
				projects[ev.ProjectID] = struct{}{}
			}
			switch {
			case ev.Action == "pushed to" || ev.Action == "pushed new":
				n := 1
				if ev.PushData != nil && ev.PushData.CommitCount > 0 {
					n = ev.PushData.CommitCount
				}
				stats.Commits += n
			case ev.Action == "opened" && ev.TargetType == "MergeRequest":
				stats.PullRequests++
			case ev.Action == "opened" && ev.TargetType == "Issue":
				stats.Issues++
			case ev.Action == "approved" && ev.TargetType == "MergeRequest":
				stats.CodeReviews++
			}
		}
		if len(events) < c.perPage {
			break
		}
	}

	stats.ActiveDays = len(dates)
	stats.RepositoriesTouched = len(projects)
	return stats, dates, nil
}

// Collect gathers the user's GitLab contribution stats for the window.
func (c *Collector) Collect(ctx context.Context, creds provider.Credentials, w window.Window) (model.ProviderStats, error) {
	if err := ctx.Err(); err != nil {
		return model.ProviderStats{}, err
	}

	userID, err := c.lookupUser(ctx, creds)
	if err != nil {
		return model.ProviderStats{}, err
	}

	stats, dates, err := c.scanEvents(ctx, userID, creds, w)
	if err != nil {
		return model.ProviderStats{}, err
	}

	stats.Streak = scoring.Streak(dates)
	stats.LastUpdated = time.Now().UTC()

	c.log.Debug(ctx, "gitlab stats collected",
		logger.String("username", creds.Username),
		logger.Int("commits", stats.Commits),
		logger.Int("merge_requests", stats.PullRequests),
	)
	return stats, nil
}
