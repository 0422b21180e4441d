package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/adapters/store"
	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// stubCollector returns canned stats per username and records concurrency.
type stubCollector struct {
	platform string
	stats    map[string]model.ProviderStats
	err      error

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func (c *stubCollector) Platform() string { return c.platform }

func (c *stubCollector) Collect(_ context.Context, creds provider.Credentials, _ window.Window) (model.ProviderStats, error) {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()

	if c.err != nil {
		return model.ProviderStats{}, c.err
	}
	return c.stats[creds.Username], nil
}

func newTestService(t *testing.T, st store.Store, primary provider.Collector, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithStore(st),
		WithPrimaryCollector(primary),
		WithResolver(window.NewResolver("2025-01-01", "UTC", window.WithCutoffSource(st))),
		WithBatchPause(time.Millisecond),
	}
	svc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRefreshUser(t *testing.T) {
	Convey("Given a service with one registered user", t, func() {
		ctx := context.Background()
		st := store.NewMemStore()
		So(st.UpsertIdentity(ctx, model.Identity{Username: "alice"}), ShouldBeNil)

		primary := &stubCollector{
			platform: model.PlatformGitHub,
			stats: map[string]model.ProviderStats{
				"alice": {Commits: 50, PullRequests: 2, ActiveDays: 4},
			},
		}

		Convey("When the user is refreshed", func() {
			svc := newTestService(t, st, primary)
			So(svc.RefreshUser(ctx, "alice"), ShouldBeNil)

			Convey("Then stats and score are persisted wholesale", func() {
				stats, err := st.ProviderStats(ctx, "alice")
				So(err, ShouldBeNil)
				So(stats[model.PlatformGitHub].Commits, ShouldEqual, 50)

				scores, err := st.Scores(ctx)
				So(err, ShouldBeNil)
				// 50*4.0 + 2*2.5 + 4*0.3 = 206.2, rounded once
				So(scores["alice"].Score, ShouldEqual, 206)
				So(scores["alice"].ComputedFrom.Commits, ShouldEqual, 50)
			})
		})

		Convey("When a secondary platform is linked and mirrors the work", func() {
			So(st.UpsertIdentity(ctx, model.Identity{
				Username: "alice",
				Accounts: map[string]model.Account{
					model.PlatformGitLab: {Username: "alice-gl"},
				},
			}), ShouldBeNil)
			secondary := &stubCollector{
				platform: model.PlatformGitLab,
				stats: map[string]model.ProviderStats{
					"alice-gl": {Commits: 30},
				},
			}
			svc := newTestService(t, st, primary, WithSecondaryCollectors(secondary))
			So(svc.RefreshUser(ctx, "alice"), ShouldBeNil)

			Convey("Then commits take the floor-not-sum of both platforms", func() {
				scores, err := st.Scores(ctx)
				So(err, ShouldBeNil)
				// max(50, 30) commits, nothing double counted.
				So(scores["alice"].ComputedFrom.Commits, ShouldEqual, 50)
				So(scores["alice"].ComputedFrom.PerPlatform[model.PlatformGitLab].Commits, ShouldEqual, 30)
			})
		})

		Convey("When the secondary platform fails", func() {
			So(st.UpsertIdentity(ctx, model.Identity{
				Username: "alice",
				Accounts: map[string]model.Account{
					model.PlatformGitLab: {Username: "alice-gl"},
				},
			}), ShouldBeNil)
			secondary := &stubCollector{
				platform: model.PlatformGitLab,
				err:      errors.New("gitlab down"),
			}
			svc := newTestService(t, st, primary, WithSecondaryCollectors(secondary))

			Convey("Then the refresh still succeeds on primary data alone", func() {
				So(svc.RefreshUser(ctx, "alice"), ShouldBeNil)
				scores, err := st.Scores(ctx)
				So(err, ShouldBeNil)
				So(scores["alice"].ComputedFrom.Commits, ShouldEqual, 50)
			})
		})

		Convey("When the primary platform fails", func() {
			failing := &stubCollector{platform: model.PlatformGitHub, err: errors.New("api down")}
			svc := newTestService(t, st, failing)

			Convey("Then the refresh fails and no score is written", func() {
				So(svc.RefreshUser(ctx, "alice"), ShouldNotBeNil)
				scores, err := st.Scores(ctx)
				So(err, ShouldBeNil)
				So(len(scores), ShouldEqual, 0)
			})
		})

		Convey("When an unregistered user is refreshed", func() {
			svc := newTestService(t, st, primary)

			Convey("Then ErrUserNotFound is returned", func() {
				So(svc.RefreshUser(ctx, "ghost"), ShouldEqual, ErrUserNotFound)
			})
		})
	})
}

func TestRefreshAll(t *testing.T) {
	Convey("Given a service with seven registered users", t, func() {
		ctx := context.Background()
		st := store.NewMemStore()
		stats := make(map[string]model.ProviderStats)
		for _, u := range []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"} {
			So(st.UpsertIdentity(ctx, model.Identity{Username: u}), ShouldBeNil)
			stats[u] = model.ProviderStats{Commits: 1}
		}
		primary := &stubCollector{
			platform: model.PlatformGitHub,
			stats:    stats,
			delay:    5 * time.Millisecond,
		}

		Convey("When a full refresh runs with batch size 3", func() {
			svc := newTestService(t, st, primary, WithBatchSize(3))
			summary, err := svc.RefreshAll(ctx)

			Convey("Then all users succeed and concurrency never exceeds the batch size", func() {
				So(err, ShouldBeNil)
				So(summary.Succeeded, ShouldEqual, 7)
				So(summary.Failed, ShouldEqual, 0)
				So(primary.maxInFlight, ShouldBeLessThanOrEqualTo, 3)
			})
		})

		Convey("When the context is cancelled after the first batch", func() {
			cancelCtx, cancel := context.WithCancel(ctx)
			primary.delay = 0
			svc := newTestService(t, st, primary, WithBatchSize(3), WithBatchPause(50*time.Millisecond))
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			summary, err := svc.RefreshAll(cancelCtx)

			Convey("Then remaining users are reported as skipped", func() {
				So(err, ShouldBeNil)
				So(summary.Succeeded+summary.Failed+summary.Skipped, ShouldEqual, 7)
				So(summary.Skipped, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestReset(t *testing.T) {
	Convey("Given a service with scored users", t, func() {
		ctx := context.Background()
		st := store.NewMemStore()
		So(st.UpsertIdentity(ctx, model.Identity{Username: "alice", Name: "Alice"}), ShouldBeNil)
		So(st.UpsertIdentity(ctx, model.Identity{Username: "bob"}), ShouldBeNil)

		primary := &stubCollector{
			platform: model.PlatformGitHub,
			stats: map[string]model.ProviderStats{
				"alice": {Commits: 10},
				"bob":   {Commits: 5},
			},
		}
		svc := newTestService(t, st, primary)
		So(svc.RefreshUser(ctx, "alice"), ShouldBeNil)
		So(svc.RefreshUser(ctx, "bob"), ShouldBeNil)

		Convey("When a reset is executed", func() {
			entry, err := svc.Reset(ctx, "admin", time.Time{})
			So(err, ShouldBeNil)

			Convey("Then identities survive, scores vanish and one audit entry exists", func() {
				So(entry.UsersAffected, ShouldEqual, 2)
				So(entry.ID, ShouldNotBeEmpty)

				ranking, err := svc.Ranking(ctx)
				So(err, ShouldBeNil)
				So(len(ranking), ShouldEqual, 0)

				id, err := st.Identity(ctx, "alice")
				So(err, ShouldBeNil)
				So(id.Name, ShouldEqual, "Alice")

				history, err := svc.ResetHistory(ctx)
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 1)
			})

			Convey("And the engine stats reflect the reset", func() {
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats["registered_users"], ShouldEqual, 2)
				So(stats["scored_users"], ShouldEqual, 0)
				last, ok := stats["last_reset"].(time.Time)
				So(ok, ShouldBeTrue)
				So(last.Equal(entry.Date), ShouldBeTrue)
			})

			Convey("And a refresh after the reset counts from the reset instant", func() {
				w, err := window.NewResolver("2025-01-01", "UTC", window.WithCutoffSource(st)).Resolve(ctx)
				So(err, ShouldBeNil)
				So(w.CutoffUTC.Equal(entry.Date), ShouldBeTrue)
			})
		})
	})
}

func TestRankingOrder(t *testing.T) {
	Convey("Given three scored users with a tie", t, func() {
		ctx := context.Background()
		st := store.NewMemStore()
		earlier := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		later := earlier.Add(time.Hour)

		seed := func(username string, score int, updated time.Time) {
			So(st.UpsertIdentity(ctx, model.Identity{Username: username}), ShouldBeNil)
			So(st.SaveScore(ctx, username, model.ScoreRecord{
				Score: score,
				ComputedFrom: model.UnifiedContribution{
					Commits: score,
					PerPlatform: map[string]model.ProviderStats{
						model.PlatformGitHub: {LastUpdated: updated},
					},
				},
				ComputedAt: updated,
			}), ShouldBeNil)
		}
		seed("late", 100, later)
		seed("early", 100, earlier)
		seed("top", 250, later)

		primary := &stubCollector{platform: model.PlatformGitHub}
		svc := newTestService(t, st, primary)

		Convey("When the ranking is computed", func() {
			rows, err := svc.Ranking(ctx)
			So(err, ShouldBeNil)

			Convey("Then scores order descending and the earlier update wins the tie", func() {
				So(len(rows), ShouldEqual, 3)
				So(rows[0].Username, ShouldEqual, "top")
				So(rows[0].Rank, ShouldEqual, 1)
				So(rows[1].Username, ShouldEqual, "early")
				So(rows[2].Username, ShouldEqual, "late")
				So(rows[2].Rank, ShouldEqual, 3)
			})
		})

		Convey("When one user's rank is requested", func() {
			row, err := svc.Rank(ctx, "early")

			Convey("Then their row carries the global rank", func() {
				So(err, ShouldBeNil)
				So(row.Rank, ShouldEqual, 2)
			})
		})

		Convey("When an unscored user's rank is requested", func() {
			_, err := svc.Rank(ctx, "ghost")

			Convey("Then ErrUserNotFound is returned", func() {
				So(err, ShouldEqual, ErrUserNotFound)
			})
		})
	})
}
