package window_test

import (
	"context"
	"testing"
	"time"

	"github.com/devrank/devrank/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedSource struct {
	t time.Time
}

func (f fixedSource) LastResetDate(_ context.Context) (time.Time, error) {
	return f.t, nil
}

func TestWindow(t *testing.T) {
	Convey("Given a cutoff of 2025-01-01 in Asia/Seoul", t, func() {
		w, err := window.New("2025-01-01", "Asia/Seoul")
		So(err, ShouldBeNil)

		Convey("Then the UTC instant is midnight minus the +09:00 offset", func() {
			So(w.CutoffUTC.Equal(time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Then membership straddles the cutoff by the second, not the day", func() {
			cutoff := w.CutoffUTC
			So(w.Contains(cutoff), ShouldBeTrue)
			So(w.Contains(cutoff.Add(time.Second)), ShouldBeTrue)
			So(w.Contains(cutoff.Add(-time.Second)), ShouldBeFalse)

			// An event late on Dec 31 UTC is still Jan 1 in Seoul.
			So(w.Contains(time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Then the civil date string is preserved for search qualifiers", func() {
			So(w.CivilDateString(), ShouldEqual, "2025-01-01")
		})

		Convey("When narrowing by a later per-user reset", func() {
			reset := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			n := w.Narrow(reset)

			Convey("Then the cutoff advances", func() {
				So(n.CutoffUTC.Equal(reset), ShouldBeTrue)
				So(n.Contains(reset.Add(-time.Second)), ShouldBeFalse)
			})
		})

		Convey("When narrowing by an earlier or zero reset", func() {
			Convey("Then the window is unchanged", func() {
				So(w.Narrow(time.Time{}).CutoffUTC.Equal(w.CutoffUTC), ShouldBeTrue)
				old := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
				So(w.Narrow(old).CutoffUTC.Equal(w.CutoffUTC), ShouldBeTrue)
			})
		})
	})

	Convey("Given a bad timezone or date", t, func() {
		Convey("Then New fails", func() {
			_, err := window.New("2025-01-01", "Mars/Olympus")
			So(err, ShouldNotBeNil)
			_, err = window.New("January 1", "UTC")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestResolver(t *testing.T) {
	Convey("Given a resolver with a persisted reset date", t, func() {
		reset := time.Date(2025, 2, 15, 3, 0, 0, 0, time.UTC)
		r := window.NewResolver("2025-01-01", "UTC", window.WithCutoffSource(fixedSource{t: reset}))

		Convey("When the reset postdates the configured epoch", func() {
			w, err := r.Resolve(context.Background())

			Convey("Then the reset wins", func() {
				So(err, ShouldBeNil)
				So(w.CutoffUTC.Equal(reset), ShouldBeTrue)
			})
		})
	})

	Convey("Given a resolver without a cutoff source", t, func() {
		r := window.NewResolver("2025-01-01", "UTC")
		w, err := r.Resolve(context.Background())

		Convey("Then the configured epoch stands", func() {
			So(err, ShouldBeNil)
			So(w.CutoffUTC.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})
	})
}
