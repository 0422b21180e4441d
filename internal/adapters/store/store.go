// Package store persists identities, per-platform stats, scores and the
// reset audit log. Two implementations exist: an in-memory store used by
// default and for tests, and a Postgres store behind GORM.
package store

import (
	"context"
	"time"

	"github.com/devrank/devrank/internal/domain/model"
)

// Store is the persistence port the engine writes through. Stats and
// scores are replaced wholesale per user, never patched field by field.
type Store interface {
	// UpsertIdentity creates or replaces one user's identity record.
	UpsertIdentity(ctx context.Context, id model.Identity) error
	// Identity returns one user's identity or ErrNotFound.
	Identity(ctx context.Context, username string) (model.Identity, error)
	// Identities returns every registered identity.
	Identities(ctx context.Context) ([]model.Identity, error)

	// SaveProviderStats replaces one (user, platform) stats record.
	SaveProviderStats(ctx context.Context, username, platform string, stats model.ProviderStats) error
	// ProviderStats returns a user's stats keyed by platform.
	ProviderStats(ctx context.Context, username string) (map[string]model.ProviderStats, error)

	// SaveScore replaces one user's score record.
	SaveScore(ctx context.Context, username string, rec model.ScoreRecord) error
	// Scores returns every user's latest score record.
	Scores(ctx context.Context) (map[string]model.ScoreRecord, error)

	// ZeroStats wipes all provider stats and scores while preserving
	// identities, and stamps each identity's LastReset. It returns the
	// number of users affected.
	ZeroStats(ctx context.Context, at time.Time) (int, error)
	// AppendReset appends one immutable reset audit entry.
	AppendReset(ctx context.Context, entry model.ResetEntry) error
	// ResetHistory returns the reset audit log, newest first.
	ResetHistory(ctx context.Context) ([]model.ResetEntry, error)
	// LastResetDate returns the most recent reset instant, or the zero
	// time when no reset has happened.
	LastResetDate(ctx context.Context) (time.Time, error)

	// Close releases underlying resources.
	Close() error
}
