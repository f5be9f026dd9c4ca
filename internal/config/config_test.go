package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/riichi/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.LeaderboardGameCap, convey.ShouldEqual, 5)
			convey.So(cfg.ContestCacheTTL, convey.ShouldEqual, time.Minute)
			convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")
		})

		convey.Convey("And they should validate", func() {
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configs", t, func() {
		convey.Convey("An unknown driver is rejected", func() {
			cfg := config.New()
			cfg.Store.Driver = "mongo"
			err := config.Validate(cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "config.store.driver")
		})

		convey.Convey("Postgres needs a dsn", func() {
			cfg := config.New()
			cfg.Store.Driver = "postgres"
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.Store.DSN = "postgres://localhost/riichi"
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})

		convey.Convey("Bolt needs a path", func() {
			cfg := config.New()
			cfg.Store.Driver = "bolt"
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A zero game cap is rejected", func() {
			cfg := config.New()
			cfg.LeaderboardGameCap = 0
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An unknown log level is rejected", func() {
			cfg := config.New()
			cfg.LogLevel = "verbose"
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
