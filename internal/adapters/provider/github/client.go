// Package github acquires contribution signals from the GitHub REST API.
//
// Commit counting is a strict cascade: the search API is authoritative when
// it behaves, the public-activity feed and repository enumeration are
// independent fallbacks for when it does not. All requests draw from one
// shared rate-limit budget and go through the shared bounded-retry helper
// that retries transient failures only.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/devrank/devrank/internal/adapters/provider/rest"
	"github.com/devrank/devrank/pkg/logger"
)

// Default client configuration constants.
const (
	defaultBaseURL         = "https://api.github.com"
	defaultPerPage         = 100
	defaultMaxEventPages   = 10
	defaultMaxRepoPages    = 10
	defaultMaxCommitPages  = 10
	defaultQueryVariants   = 3
	defaultConfidenceFloor = 10

	platformName = "github"
)

// Client talks to the GitHub REST API.
type Client struct {
	baseURL  string
	restOpts []rest.Option
	rc       *rest.Client

	perPage         int
	maxEventPages   int
	maxRepoPages    int
	maxCommitPages  int
	queryVariants   int
	confidenceFloor int

	log logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests inject a fake
// transport this way).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.restOpts = append(c.restOpts, rest.WithHTTPClient(hc))
	}
}

// WithBaseURL points the client at a different API root (enterprise
// installs, test servers).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithLimiter attaches the shared rate-limit budget.
func WithLimiter(l rest.Limiter) Option {
	return func(c *Client) {
		c.restOpts = append(c.restOpts, rest.WithLimiter(l))
	}
}

// WithRetryMax bounds retries of transient failures per request.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		c.restOpts = append(c.restOpts, rest.WithRetryMax(n))
	}
}

// WithMaxEventPages bounds how far back the activity-feed scan pages.
func WithMaxEventPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxEventPages = n
		}
	}
}

// WithMaxRepoPages bounds repository-list pagination.
func WithMaxRepoPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRepoPages = n
		}
	}
}

// WithMaxCommitPagesPerRepo bounds per-repository commit pagination.
func WithMaxCommitPagesPerRepo(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxCommitPages = n
		}
	}
}

// WithQueryVariants sets how many alternate search phrasings are tried
// before the primary stage is abandoned.
func WithQueryVariants(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queryVariants = n
		}
	}
}

// WithConfidenceFloor sets the count below which the event-scan fallback
// is considered low-confidence.
func WithConfidenceFloor(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.confidenceFloor = n
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
		c.restOpts = append(c.restOpts, rest.WithLogger(l))
	}
}

// NewClient creates a GitHub API client with configuration options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:         defaultBaseURL,
		perPage:         defaultPerPage,
		maxEventPages:   defaultMaxEventPages,
		maxRepoPages:    defaultMaxRepoPages,
		maxCommitPages:  defaultMaxCommitPages,
		queryVariants:   defaultQueryVariants,
		confidenceFloor: defaultConfidenceFloor,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("github")
	}
	c.rc = rest.New(platformName, c.restOpts...)
	return c
}

// doJSON fetches url through the shared retrying helper with GitHub
// request headers attached.
func (c *Client) doJSON(ctx context.Context, endpoint, rawURL, token string, out any) error {
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return c.rc.GetJSON(ctx, endpoint, rawURL, headers, out)
}

// searchCount issues one search query against the given search path and
// maps the response onto the tagged SearchResult.
func (c *Client) searchCount(ctx context.Context, endpoint, path, token, query string) SearchResult {
	u := fmt.Sprintf("%s%s?q=%s&per_page=1", c.baseURL, path, url.QueryEscape(query))

	var sr searchResponse
	if err := c.doJSON(ctx, endpoint, u, token, &sr); err != nil {
		return unreliable(err.Error())
	}
	if sr.Message != "" {
		// Structured error payload instead of a count.
		return unreliable(sr.Message)
	}
	if sr.TotalCount == nil {
		return unreliable("missing total_count")
	}
	return reliable(*sr.TotalCount)
}

// SearchCommits runs one commit-search query.
func (c *Client) SearchCommits(ctx context.Context, token, query string) SearchResult {
	return c.searchCount(ctx, "search_commits", "/search/commits", token, query)
}

// SearchIssues runs one issue/PR-search query.
func (c *Client) SearchIssues(ctx context.Context, token, query string) SearchResult {
	return c.searchCount(ctx, "search_issues", "/search/issues", token, query)
}

// ListEvents fetches one page of the user's public activity feed.
func (c *Client) ListEvents(ctx context.Context, username, token string, page int) ([]Event, error) {
	u := fmt.Sprintf("%s/users/%s/events?page=%d&per_page=%d", c.baseURL, username, page, c.perPage)
	var events []Event
	if err := c.doJSON(ctx, "list_events", u, token, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListRepositories fetches one page of the user's repositories.
func (c *Client) ListRepositories(ctx context.Context, username, token string, page int) ([]Repository, error) {
	u := fmt.Sprintf("%s/users/%s/repos?page=%d&per_page=%d&sort=updated", c.baseURL, username, page, c.perPage)
	var repos []Repository
	if err := c.doJSON(ctx, "list_repos", u, token, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// ListRepoCommits fetches one page of a repository's commit history
// filtered by author and since. A 409 means an empty or unreadable
// repository and is a confirmed zero, not an error.
func (c *Client) ListRepoCommits(ctx context.Context, token, repoFullName, author string, since time.Time, page int) ([]Commit, error) {
	u := fmt.Sprintf(
		"%s/repos/%s/commits?author=%s&since=%s&page=%d&per_page=%d",
		c.baseURL, repoFullName, url.QueryEscape(author), url.QueryEscape(since.Format(time.RFC3339)),
		page, c.perPage,
	)
	var commits []Commit
	if err := c.doJSON(ctx, "list_repo_commits", u, token, &commits); err != nil {
		if rest.IsStatus(err, http.StatusConflict) {
			return nil, nil
		}
		return nil, err
	}
	return commits, nil
}
