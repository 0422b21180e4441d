package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/pkg/metrics"
)

// MemStore is the in-memory Store. It is safe for concurrent use and is
// the default backend when no DSN is configured.
type MemStore struct {
	mu         sync.RWMutex
	identities map[string]model.Identity
	stats      map[string]map[string]model.ProviderStats
	scores     map[string]model.ScoreRecord
	resets     []model.ResetEntry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		identities: make(map[string]model.Identity),
		stats:      make(map[string]map[string]model.ProviderStats),
		scores:     make(map[string]model.ScoreRecord),
	}
}

// UpsertIdentity creates or replaces one user's identity record.
func (s *MemStore) UpsertIdentity(_ context.Context, id model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.Username] = id
	metrics.RecordStoreWrite("upsert_identity")
	return nil
}

// Identity returns one user's identity or ErrNotFound.
func (s *MemStore) Identity(_ context.Context, username string) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[username]
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	return id, nil
}

// Identities returns every registered identity sorted by username.
func (s *MemStore) Identities(_ context.Context) ([]model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// SaveProviderStats replaces one (user, platform) stats record.
func (s *MemStore) SaveProviderStats(_ context.Context, username, platform string, stats model.ProviderStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[username]; !ok {
		return ErrNotFound
	}
	if s.stats[username] == nil {
		s.stats[username] = make(map[string]model.ProviderStats)
	}
	s.stats[username][platform] = stats
	metrics.RecordStoreWrite("save_provider_stats")
	return nil
}

// ProviderStats returns a user's stats keyed by platform.
func (s *MemStore) ProviderStats(_ context.Context, username string) (map[string]model.ProviderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.identities[username]; !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]model.ProviderStats, len(s.stats[username]))
	for platform, st := range s.stats[username] {
		out[platform] = st
	}
	return out, nil
}

// SaveScore replaces one user's score record.
func (s *MemStore) SaveScore(_ context.Context, username string, rec model.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[username]; !ok {
		return ErrNotFound
	}
	s.scores[username] = rec
	metrics.RecordStoreWrite("save_score")
	return nil
}

// Scores returns every user's latest score record.
func (s *MemStore) Scores(_ context.Context) (map[string]model.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.ScoreRecord, len(s.scores))
	for username, rec := range s.scores {
		out[username] = rec
	}
	return out, nil
}

// ZeroStats wipes all stats and scores while preserving identities.
func (s *MemStore) ZeroStats(_ context.Context, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	affected := len(s.identities)
	s.stats = make(map[string]map[string]model.ProviderStats)
	s.scores = make(map[string]model.ScoreRecord)
	for username, id := range s.identities {
		id.LastReset = at
		s.identities[username] = id
	}
	metrics.RecordStoreWrite("zero_stats")
	return affected, nil
}

// AppendReset appends one immutable reset audit entry.
func (s *MemStore) AppendReset(_ context.Context, entry model.ResetEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, entry)
	metrics.RecordStoreWrite("append_reset")
	return nil
}

// ResetHistory returns the reset audit log, newest first.
func (s *MemStore) ResetHistory(_ context.Context) ([]model.ResetEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ResetEntry, len(s.resets))
	copy(out, s.resets)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// LastResetDate returns the most recent reset instant or the zero time.
func (s *MemStore) LastResetDate(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last time.Time
	for _, entry := range s.resets {
		if entry.Date.After(last) {
			last = entry.Date
		}
	}
	return last, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
