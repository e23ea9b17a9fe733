package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/streetwise/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "streetwise.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the defaults come back", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StorageDriver, convey.ShouldEqual, "memory")
				convey.So(cfg.ArchiveQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.ScoreTolerance, convey.ShouldEqual, 1000)
				convey.So(cfg.HashLength, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When loading with environment variables", func() {
			_ = os.Setenv("STREETWISE_ADDR", ":8080")
			_ = os.Setenv("STREETWISE_ARCHIVE_QUEUE_SIZE", "500")
			_ = os.Setenv("STREETWISE_ARCHIVE_WORKER_COUNT", "3")
			_ = os.Setenv("STREETWISE_SCORE_TOLERANCE", "250")
			_ = os.Setenv("STREETWISE_STORAGE_DRIVER", "sqlite")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ArchiveQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.ArchiveWorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.ScoreTolerance, convey.ShouldEqual, 250)
				convey.So(cfg.StorageDSN(), convey.ShouldEqual, "tmp/streetwise.sqlite")
			})
		})

		convey.Convey("When loading with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":9090"
archive_queue_size: 300
min_run_minutes: 2
janitor_cron: "*/5 * * * *"
`)
			_ = os.Setenv("STREETWISE_CONFIG", path)
			_ = os.Setenv("STREETWISE_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env beats file and file beats defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ArchiveQueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.MinRunMinutes, convey.ShouldEqual, 2)
				convey.So(cfg.JanitorCron, convey.ShouldEqual, "*/5 * * * *")
				convey.So(cfg.SubmitCooldownMinutes, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			_ = os.Setenv("STREETWISE_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("STREETWISE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When addr is empty", func() {
			_ = os.Setenv("STREETWISE_ADDR", "")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a number does not parse", func() {
			_ = os.Setenv("STREETWISE_HASH_LENGTH", "lots")

			_, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
