// Package model contains domain models passed between layers.
package model

import "time"

// Platform names for the supported source-control providers.
const (
	PlatformGitHub    = "github"
	PlatformGitLab    = "gitlab"
	PlatformBitbucket = "bitbucket"
)

// ProviderStats holds one platform's contribution counts for one user.
// The acquisition pipeline owns it and overwrites it wholesale on each
// sync; fields are never patched individually.
type ProviderStats struct {
	Commits             int       `json:"commits"`
	PullRequests        int       `json:"pull_requests"`
	Issues              int       `json:"issues"`
	CodeReviews         int       `json:"code_reviews"`
	RepositoriesTouched int       `json:"repositories_touched"`
	ActiveDays          int       `json:"active_days"`
	Streak              int       `json:"streak"` // display-only, not scored
	LastUpdated         time.Time `json:"last_updated"`
}

// UnifiedContribution is the merged, cross-platform view of one user's
// contribution counts. The merger owns it; it is recomputed wholesale on
// every refresh, never mutated incrementally.
type UnifiedContribution struct {
	Commits             int                      `json:"commits"`
	PullRequests        int                      `json:"pull_requests"`
	Issues              int                      `json:"issues"`
	CodeReviews         int                      `json:"code_reviews"`
	RepositoriesTouched int                      `json:"repositories_touched"`
	ActiveDays          int                      `json:"active_days"`
	PerPlatform         map[string]ProviderStats `json:"per_platform"`
}

// ScoreRecord is the scoring engine's output for one user. Rank is
// assigned by sorting all scores descending; an earlier LastUpdated wins
// ties.
type ScoreRecord struct {
	Score        int                 `json:"score"`
	Rank         int                 `json:"rank"`
	ComputedFrom UnifiedContribution `json:"computed_from"`
	ComputedAt   time.Time           `json:"computed_at"`
}

// Account is a linked platform account with its access credential.
type Account struct {
	Username    string `json:"username"`
	AccessToken string `json:"-"`
}

// Identity is the per-user record the engine reads to know where to pull
// contributions from. Reset preserves these fields.
type Identity struct {
	Username  string             `json:"username"` // primary (GitHub) login, ranking key
	Name      string             `json:"name"`
	AvatarURL string             `json:"avatar_url"`
	Email     string             `json:"email"`
	Accounts  map[string]Account `json:"accounts"` // platform -> linked account
	LastReset time.Time          `json:"last_reset"` // zero when never individually reset
}

// ResetEntry is one immutable line of the reset audit log.
type ResetEntry struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	UsersAffected int       `json:"users_affected"`
	ExecutedBy    string    `json:"executed_by"`
}

// RankingRow is one line of the ranking surface consumed by the UI.
type RankingRow struct {
	Rank                int    `json:"rank"`
	Username            string `json:"username"`
	Score               int    `json:"score"`
	Commits             int    `json:"commits"`
	PullRequests        int    `json:"pull_requests"`
	Issues              int    `json:"issues"`
	CodeReviews         int    `json:"code_reviews"`
	RepositoriesTouched int    `json:"repositories_touched"`
	ActiveDays          int    `json:"active_days"`
	Streak              int    `json:"streak"`
}
