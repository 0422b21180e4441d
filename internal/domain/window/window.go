// Package window supplies the contribution window: the canonical cutoff
// instant that bounds which contributions count toward the current ranking
// period.
package window

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// civilDateLayout is the wire form of the administrative cutoff date.
const civilDateLayout = "2006-01-02"

// ErrResolve signals that the cutoff could not be resolved.
var ErrResolve = errors.New("resolve contribution window failed")

// Window is the immutable value every acquisition stage filters against.
// CutoffUTC is derived exactly once from midnight of the civil date in the
// named zone; downstream comparison uses CutoffUTC exclusively, never the
// date string, so servers and users in different zones agree on which day
// an event belongs to.
type Window struct {
	CivilDate time.Time
	Location  *time.Location
	CutoffUTC time.Time
}

// New builds a Window from a civil date string and a zone name.
func New(civilDate, timezone string) (Window, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Window{}, fmt.Errorf("%w: unknown timezone %q: %w", ErrResolve, timezone, err)
	}
	d, err := time.ParseInLocation(civilDateLayout, civilDate, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: bad civil date %q: %w", ErrResolve, civilDate, err)
	}
	return Window{
		CivilDate: d,
		Location:  loc,
		CutoffUTC: d.UTC(),
	}, nil
}

// Contains reports whether an instant falls inside the window.
// This is the single membership predicate for the whole engine.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.CutoffUTC)
}

// Narrow returns a window whose cutoff is the later of the receiver's and
// the given instant. Used to bound a user by their own lastResetDate when
// it is more recent than the global epoch.
func (w Window) Narrow(lastReset time.Time) Window {
	if lastReset.IsZero() || !lastReset.After(w.CutoffUTC) {
		return w
	}
	narrowed := w
	narrowed.CutoffUTC = lastReset.UTC()
	narrowed.CivilDate = lastReset.In(w.Location)
	return narrowed
}

// CivilDateString renders the cutoff's civil date for provider search
// qualifiers (e.g. committer-date:>=2025-01-01).
func (w Window) CivilDateString() string {
	return w.CivilDate.Format(civilDateLayout)
}

// CutoffSource exposes the persisted administrative reset date. The store
// satisfies it; a zero time means no reset has ever been executed.
type CutoffSource interface {
	LastResetDate(ctx context.Context) (time.Time, error)
}

// Resolver produces the current window from the configured epoch and the
// persisted reset date, whichever is later.
type Resolver struct {
	civilDate string
	timezone  string
	source    CutoffSource
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithCutoffSource attaches the persisted reset-date source.
func WithCutoffSource(src CutoffSource) Option {
	return func(r *Resolver) {
		if src != nil {
			r.source = src
		}
	}
}

// NewResolver creates a Resolver for the given administrative epoch.
func NewResolver(civilDate, timezone string, opts ...Option) *Resolver {
	r := &Resolver{
		civilDate: civilDate,
		timezone:  timezone,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the canonical window for the current ranking period.
func (r *Resolver) Resolve(ctx context.Context) (Window, error) {
	w, err := New(r.civilDate, r.timezone)
	if err != nil {
		return Window{}, err
	}
	if r.source == nil {
		return w, nil
	}
	last, err := r.source.LastResetDate(ctx)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	return w.Narrow(last), nil
}
