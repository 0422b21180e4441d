package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/devrank/devrank/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		os.Unsetenv("DEVRANK_CONFIG")
		os.Unsetenv("DEVRANK_ADDR")
		os.Unsetenv("DEVRANK_BATCH_SIZE")
		os.Unsetenv("DEVRANK_EPOCH_DATE")

		Convey("When loading with no overrides", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then defaults apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.BatchSize, ShouldEqual, 3)
				So(cfg.FallbackConfidenceFloor, ShouldEqual, 10)
				So(cfg.EpochDate, ShouldEqual, "2025-01-01")
				So(cfg.EpochTimezone, ShouldEqual, "Asia/Seoul")
				So(cfg.Storage, ShouldEqual, "memory")
			})
		})

		Convey("When env vars override defaults", func() {
			os.Setenv("DEVRANK_ADDR", ":7070")
			os.Setenv("DEVRANK_BATCH_SIZE", "5")
			defer os.Unsetenv("DEVRANK_ADDR")
			defer os.Unsetenv("DEVRANK_BATCH_SIZE")

			cfg, err := config.Load(context.Background())

			Convey("Then env values win", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.BatchSize, ShouldEqual, 5)
			})
		})

		Convey("When a YAML file is layered under env", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "devrank.yaml")
			yaml := "addr: \":6060\"\nepoch_date: \"2025-06-01\"\nmax_event_pages: 4\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			os.Setenv("DEVRANK_CONFIG", path)
			os.Setenv("DEVRANK_ADDR", ":7070")
			defer os.Unsetenv("DEVRANK_CONFIG")
			defer os.Unsetenv("DEVRANK_ADDR")

			cfg, err := config.Load(context.Background())

			Convey("Then file overrides defaults and env overrides file", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.EpochDate, ShouldEqual, "2025-06-01")
				So(cfg.MaxEventPages, ShouldEqual, 4)
			})
		})

		Convey("When the epoch date is malformed", func() {
			os.Setenv("DEVRANK_EPOCH_DATE", "June 1st")
			defer os.Unsetenv("DEVRANK_EPOCH_DATE")

			_, err := config.Load(context.Background())

			Convey("Then loading fails with ErrInvalidConfig", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When postgres storage lacks a DSN", func() {
			os.Setenv("DEVRANK_STORAGE", "postgres")
			defer os.Unsetenv("DEVRANK_STORAGE")

			_, err := config.Load(context.Background())

			Convey("Then loading fails", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
