// Package scoring reduces a unified contribution record to the single
// scalar used to sort the ranking.
//
// The weight table is a published contract: changing any weight changes
// every user's relative rank, so changes must bump ModelVersion and ship
// with a full recompute, never a partial one. Streak is tracked as a
// display statistic and deliberately kept out of the formula.
package scoring

import (
	"math"
	"sort"
	"time"
)

// ModelVersion identifies the published weight table.
const ModelVersion = "1.0.0"

// Published weights, in the product's stated order of emphasis:
// commits > pull requests > issues > reviews > diversity > consistency.
const (
	defaultCommitWeight    = 4.0
	defaultPullReqWeight   = 2.5
	defaultIssueWeight     = 1.5
	defaultReviewWeight    = 1.0
	defaultRepoWeight      = 0.5
	defaultActiveDayWeight = 0.3
)

// Weight table keys accepted by WithWeightsFromConfig.
const (
	WeightCommits      = "commits"
	WeightPullRequests = "pull_requests"
	WeightIssues       = "issues"
	WeightCodeReviews  = "code_reviews"
	WeightRepositories = "repositories_touched"
	WeightActiveDays   = "active_days"
)

// Input abstracts the unified fields needed for scoring.
type Input struct {
	Commits             int
	PullRequests        int
	Issues              int
	CodeReviews         int
	RepositoriesTouched int
	ActiveDays          int
}

// Scorer computes the ranking score from unified contribution counts.
// Score is a pure function of its input.
type Scorer struct {
	commitWeight    float64
	pullReqWeight   float64
	issueWeight     float64
	reviewWeight    float64
	repoWeight      float64
	activeDayWeight float64
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeightsFromConfig overrides individual weights from a configuration
// map. Unknown keys are ignored; non-positive values are rejected so a
// half-written config cannot zero out a term silently.
func WithWeightsFromConfig(weights map[string]float64) Option {
	return func(s *Scorer) {
		for key, w := range weights {
			if w <= 0 {
				continue
			}
			switch key {
			case WeightCommits:
				s.commitWeight = w
			case WeightPullRequests:
				s.pullReqWeight = w
			case WeightIssues:
				s.issueWeight = w
			case WeightCodeReviews:
				s.reviewWeight = w
			case WeightRepositories:
				s.repoWeight = w
			case WeightActiveDays:
				s.activeDayWeight = w
			}
		}
	}
}

// NewScorer creates a Scorer carrying the published weight table, adjusted
// by options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		commitWeight:    defaultCommitWeight,
		pullReqWeight:   defaultPullReqWeight,
		issueWeight:     defaultIssueWeight,
		reviewWeight:    defaultReviewWeight,
		repoWeight:      defaultRepoWeight,
		activeDayWeight: defaultActiveDayWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score applies the weight table and rounds once at the end, not per term.
// All inputs are non-negative so the score is always >= 0.
func (s *Scorer) Score(in Input) int {
	total := float64(in.Commits)*s.commitWeight +
		float64(in.PullRequests)*s.pullReqWeight +
		float64(in.Issues)*s.issueWeight +
		float64(in.CodeReviews)*s.reviewWeight +
		float64(in.RepositoriesTouched)*s.repoWeight +
		float64(in.ActiveDays)*s.activeDayWeight
	return int(math.Round(total))
}

// Streak counts the initial run of consecutive calendar days ending at the
// most recent distinct contribution date. dates is a set keyed by civil
// date; insertion order is irrelevant. Display-only.
func Streak(dates map[string]struct{}) int {
	if len(dates) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(dates))
	for d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return 0
	}

	// Sort once into descending order, then walk the initial run.
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) != 24*time.Hour {
			break
		}
		streak++
	}
	return streak
}
