// Package app wires acquisition, merging, scoring and persistence into
// the engine's use cases: refreshing users, ranking them and executing
// administrative resets.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/adapters/store"
	"github.com/devrank/devrank/internal/domain/merge"
	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/internal/domain/scoring"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
	"github.com/devrank/devrank/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultBatchSize  = 3
	defaultBatchPause = time.Second
)

// RefreshSummary reports the outcome of one full refresh run.
type RefreshSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// UserStats is the per-user detail view: identity, per-platform stats and
// the latest score record.
type UserStats struct {
	Identity model.Identity                 `json:"identity"`
	Stats    map[string]model.ProviderStats `json:"stats"`
	Score    *model.ScoreRecord             `json:"score,omitempty"`
}

// Service implements the engine's use cases over its ports.
type Service struct {
	store       store.Store
	primary     provider.Collector
	secondaries []provider.Collector
	resolver    *window.Resolver
	scorer      *scoring.Scorer

	batchSize  int
	batchPause time.Duration

	refreshMu  sync.Mutex
	refreshing bool

	log logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
	interval time.Duration
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithPrimaryCollector sets the primary (ranking-key) platform collector.
func WithPrimaryCollector(c provider.Collector) Option {
	return func(svc *Service) {
		if c != nil {
			svc.primary = c
		}
	}
}

// WithSecondaryCollectors adds optional secondary platform collectors.
func WithSecondaryCollectors(cs ...provider.Collector) Option {
	return func(svc *Service) {
		for _, c := range cs {
			if c != nil {
				svc.secondaries = append(svc.secondaries, c)
			}
		}
	}
}

// WithResolver sets the contribution-window resolver.
func WithResolver(r *window.Resolver) Option {
	return func(svc *Service) {
		if r != nil {
			svc.resolver = r
		}
	}
}

// WithScorer sets the scoring engine.
func WithScorer(s *scoring.Scorer) Option {
	return func(svc *Service) {
		if s != nil {
			svc.scorer = s
		}
	}
}

// WithBatchSize bounds how many users refresh concurrently per batch.
func WithBatchSize(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.batchSize = n
		}
	}
}

// WithBatchPause sets the pause between refresh batches.
func WithBatchPause(d time.Duration) Option {
	return func(svc *Service) {
		if d >= 0 {
			svc.batchPause = d
		}
	}
}

// WithRefreshInterval enables the periodic background refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.interval = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.log = l
		}
	}
}

// New creates the Service and validates its required ports.
func New(opts ...Option) (*Service, error) {
	svc := &Service{
		batchSize:  defaultBatchSize,
		batchPause: defaultBatchPause,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.store == nil {
		return nil, ErrMissingStore
	}
	if svc.primary == nil {
		return nil, ErrMissingCollector
	}
	if svc.resolver == nil {
		return nil, fmt.Errorf("service requires a window resolver")
	}
	if svc.scorer == nil {
		svc.scorer = scoring.NewScorer()
	}
	if svc.log == nil {
		svc.log = logger.Get().Named("app")
	}
	return svc, nil
}

// Start launches the periodic background refresh when an interval is
// configured. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				summary, err := s.RefreshAll(ctx)
				if err != nil && !errors.Is(err, ErrRefreshBusy) {
					s.log.Error(ctx, "scheduled refresh failed", logger.Error(err))
					continue
				}
				s.log.Info(ctx, "scheduled refresh finished",
					logger.Int("succeeded", summary.Succeeded),
					logger.Int("failed", summary.Failed),
					logger.Int("skipped", summary.Skipped),
				)
			}
		}
	}()
}

// Stop halts the background refresh and waits for it to drain.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// RegisterUser creates or replaces a user's identity record.
func (s *Service) RegisterUser(ctx context.Context, id model.Identity) error {
	if id.Username == "" {
		return fmt.Errorf("register user: empty username")
	}
	return s.store.UpsertIdentity(ctx, id)
}

// credentials picks the linked account for a platform, defaulting to the
// primary username when no explicit link exists.
func credentials(id model.Identity, platform string) (provider.Credentials, bool) {
	if acct, ok := id.Accounts[platform]; ok {
		return provider.Credentials{Username: acct.Username, AccessToken: acct.AccessToken}, true
	}
	if platform == model.PlatformGitHub {
		return provider.Credentials{Username: id.Username}, true
	}
	return provider.Credentials{}, false
}

// RefreshUser re-acquires one user's contributions on every linked
// platform, merges, scores and persists the result wholesale.
func (s *Service) RefreshUser(ctx context.Context, username string) error {
	start := time.Now()

	id, err := s.store.Identity(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	w, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	// A user individually reset after the global cutoff starts counting
	// from their own reset instant.
	w = w.Narrow(id.LastReset)

	creds, _ := credentials(id, s.primary.Platform())
	primaryStats, err := s.primary.Collect(ctx, creds, w)
	if err != nil {
		metrics.RecordRefreshUser("failed")
		return fmt.Errorf("collect %s: %w", s.primary.Platform(), err)
	}
	if err := s.store.SaveProviderStats(ctx, username, s.primary.Platform(), primaryStats); err != nil {
		return err
	}

	// Secondary platforms are best effort: a failing one is logged and
	// skipped, it never blocks the refresh.
	secondary := make(map[string]model.ProviderStats)
	for _, collector := range s.secondaries {
		platform := collector.Platform()
		sc, ok := credentials(id, platform)
		if !ok {
			continue
		}
		stats, err := collector.Collect(ctx, sc, w)
		if err != nil {
			s.log.Warn(ctx, "secondary platform collection failed",
				logger.String("username", username),
				logger.String("platform", platform),
				logger.Error(err),
			)
			continue
		}
		secondary[platform] = stats
		if err := s.store.SaveProviderStats(ctx, username, platform, stats); err != nil {
			return err
		}
	}

	unified := merge.Merge(primaryStats, secondary)
	score := s.scorer.Score(scoring.Input{
		Commits:             unified.Commits,
		PullRequests:        unified.PullRequests,
		Issues:              unified.Issues,
		CodeReviews:         unified.CodeReviews,
		RepositoriesTouched: unified.RepositoriesTouched,
		ActiveDays:          unified.ActiveDays,
	})
	rec := model.ScoreRecord{
		Score:        score,
		ComputedFrom: unified,
		ComputedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveScore(ctx, username, rec); err != nil {
		return err
	}

	metrics.RecordRefreshUser("succeeded")
	metrics.RecordRefreshUserDuration(float64(time.Since(start).Milliseconds()))
	s.log.Info(ctx, "user refreshed",
		logger.String("username", username),
		logger.Int("score", score),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// RefreshAll refreshes every registered user in concurrent batches with a
// pause in between. Cancelling the context aborts between batches; the
// batch in flight completes. Only one full refresh runs at a time.
func (s *Service) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	s.refreshMu.Lock()
	if s.refreshing {
		s.refreshMu.Unlock()
		return RefreshSummary{}, ErrRefreshBusy
	}
	s.refreshing = true
	s.refreshMu.Unlock()
	defer func() {
		s.refreshMu.Lock()
		s.refreshing = false
		s.refreshMu.Unlock()
	}()

	identities, err := s.store.Identities(ctx)
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("list identities: %w", err)
	}

	var summary RefreshSummary
	var mu sync.Mutex

	for offset := 0; offset < len(identities); offset += s.batchSize {
		if offset > 0 {
			select {
			case <-ctx.Done():
				summary.Skipped = len(identities) - offset
				for range identities[offset:] {
					metrics.RecordRefreshUser("skipped")
				}
				return summary, nil
			case <-time.After(s.batchPause):
			}
		}

		end := offset + s.batchSize
		if end > len(identities) {
			end = len(identities)
		}
		batch := identities[offset:end]

		batchStart := time.Now()
		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func(username string) {
				defer wg.Done()
				err := s.RefreshUser(ctx, username)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					s.log.Error(ctx, "user refresh failed",
						logger.String("username", username), logger.Error(err))
					return
				}
				summary.Succeeded++
			}(id.Username)
		}
		wg.Wait()
		metrics.RecordRefreshBatchDuration(float64(time.Since(batchStart).Milliseconds()))
	}

	s.log.Info(ctx, "full refresh finished",
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// Reset wipes every user's stats and scores while preserving identities,
// moves the contribution window cutoff to at (now when zero) and appends
// exactly one audit entry. Running it twice is harmless.
func (s *Service) Reset(ctx context.Context, executedBy string, at time.Time) (model.ResetEntry, error) {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	affected, err := s.store.ZeroStats(ctx, at)
	if err != nil {
		return model.ResetEntry{}, err
	}
	entry := model.ResetEntry{
		ID:            uuid.NewString(),
		Date:          at,
		UsersAffected: affected,
		ExecutedBy:    executedBy,
	}
	if err := s.store.AppendReset(ctx, entry); err != nil {
		return model.ResetEntry{}, err
	}

	metrics.RecordReset()
	metrics.UpdateRankedUsers(0)
	s.log.Info(ctx, "contribution reset executed",
		logger.String("id", entry.ID),
		logger.Int("users_affected", affected),
		logger.String("executed_by", executedBy),
	)
	return entry, nil
}

// ResetHistory returns the reset audit log, newest first.
func (s *Service) ResetHistory(ctx context.Context) ([]model.ResetEntry, error) {
	return s.store.ResetHistory(ctx)
}

// Ranking returns every scored user ordered by score descending. Ties go
// to the user whose primary stats were updated earlier; a stable username
// ordering breaks exact ties.
func (s *Service) Ranking(ctx context.Context) ([]model.RankingRow, error) {
	scores, err := s.store.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	type entry struct {
		username string
		rec      model.ScoreRecord
		updated  time.Time
	}
	entries := make([]entry, 0, len(scores))
	for username, rec := range scores {
		updated := rec.ComputedAt
		if primary, ok := rec.ComputedFrom.PerPlatform[model.PlatformGitHub]; ok {
			updated = primary.LastUpdated
		}
		entries = append(entries, entry{username: username, rec: rec, updated: updated})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rec.Score != entries[j].rec.Score {
			return entries[i].rec.Score > entries[j].rec.Score
		}
		if !entries[i].updated.Equal(entries[j].updated) {
			return entries[i].updated.Before(entries[j].updated)
		}
		return entries[i].username < entries[j].username
	})

	rows := make([]model.RankingRow, 0, len(entries))
	for i, e := range entries {
		streak := 0
		if primary, ok := e.rec.ComputedFrom.PerPlatform[model.PlatformGitHub]; ok {
			streak = primary.Streak
		}
		rows = append(rows, model.RankingRow{
			Rank:                i + 1,
			Username:            e.username,
			Score:               e.rec.Score,
			Commits:             e.rec.ComputedFrom.Commits,
			PullRequests:        e.rec.ComputedFrom.PullRequests,
			Issues:              e.rec.ComputedFrom.Issues,
			CodeReviews:         e.rec.ComputedFrom.CodeReviews,
			RepositoriesTouched: e.rec.ComputedFrom.RepositoriesTouched,
			ActiveDays:          e.rec.ComputedFrom.ActiveDays,
			Streak:              streak,
		})
	}

	metrics.UpdateRankedUsers(len(rows))
	return rows, nil
}

// Rank returns one user's ranking row or ErrUserNotFound when the user is
// unregistered or not yet scored.
func (s *Service) Rank(ctx context.Context, username string) (model.RankingRow, error) {
	rows, err := s.Ranking(ctx)
	if err != nil {
		return model.RankingRow{}, err
	}
	for _, row := range rows {
		if row.Username == username {
			return row, nil
		}
	}
	return model.RankingRow{}, ErrUserNotFound
}

// GetStats returns engine-level operational statistics.
func (s *Service) GetStats(ctx context.Context) (map[string]any, error) {
	identities, err := s.store.Identities(ctx)
	if err != nil {
		return nil, err
	}
	scores, err := s.store.Scores(ctx)
	if err != nil {
		return nil, err
	}
	lastReset, err := s.store.LastResetDate(ctx)
	if err != nil {
		return nil, err
	}

	s.refreshMu.Lock()
	refreshing := s.refreshing
	s.refreshMu.Unlock()

	stats := map[string]any{
		"registered_users":    len(identities),
		"scored_users":        len(scores),
		"score_model":         scoring.ModelVersion,
		"refresh_running":     refreshing,
		"batch_size":          s.batchSize,
		"batch_pause_ms":      s.batchPause.Milliseconds(),
		"secondary_platforms": len(s.secondaries),
	}
	if !lastReset.IsZero() {
		stats["last_reset"] = lastReset
	}
	return stats, nil
}

// Stats returns one user's identity, per-platform stats and latest score.
func (s *Service) Stats(ctx context.Context, username string) (UserStats, error) {
	id, err := s.store.Identity(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return UserStats{}, ErrUserNotFound
	}
	if err != nil {
		return UserStats{}, err
	}

	stats, err := s.store.ProviderStats(ctx, username)
	if err != nil {
		return UserStats{}, err
	}

	out := UserStats{Identity: id, Stats: stats}
	scores, err := s.store.Scores(ctx)
	if err != nil {
		return UserStats{}, err
	}
	if rec, ok := scores[username]; ok {
		out.Score = &rec
	}
	return out, nil
}
