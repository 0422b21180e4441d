package github

import (
	"fmt"
	"time"
)

// searchResponse is the wire shape of the GitHub search endpoints. On a
// query-parser rejection GitHub returns {message, documentation_url} with
// a 422-class status instead of a count; TotalCount is a pointer so a
// present-but-null or absent count is distinguishable from zero.
type searchResponse struct {
	TotalCount       *int   `json:"total_count"`
	IncompleteResult bool   `json:"incomplete_results"`
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// SearchResult is the tagged outcome of one search query. The cascade's
// "is this stage reliable?" decision is a single check on Unreliable
// instead of scattered nil-probing at call sites.
type SearchResult struct {
	Count      int
	Unreliable bool
	Reason     string
}

func reliable(count int) SearchResult {
	return SearchResult{Count: count}
}

func unreliable(reason string) SearchResult {
	return SearchResult{Unreliable: true, Reason: reason}
}

// Event represents the JSON structure of one public-activity feed entry.
type Event struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Commits []struct {
			SHA     string `json:"sha"`
			Message string `json:"message"`
		} `json:"commits"`
	} `json:"payload"`
}

// Repository represents the JSON structure of a repository-list entry.
type Repository struct {
	FullName  string    `json:"full_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Commit represents the JSON structure of a per-repo commit-history entry.
type Commit struct {
	SHA    string `json:"sha"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	Commit struct {
		Author struct {
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// Source tags which cascade stage produced the final commit count.
type Source int

const (
	SourcePrimary Source = iota
	SourceFallbackEvents
	SourceFallbackRepos
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceFallbackEvents:
		return "fallback_events"
	case SourceFallbackRepos:
		return "fallback_repos"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}
