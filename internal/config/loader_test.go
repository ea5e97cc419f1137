package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/genieiq/genieiq/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LakebasePort, convey.ShouldEqual, 5432)
				convey.So(cfg.LakebaseDatabase, convey.ShouldEqual, "genieiq")
				convey.So(cfg.ScanConcurrency, convey.ShouldEqual, 3)
				convey.So(cfg.ScanDelayMS, convey.ShouldEqual, 500)
				convey.So(cfg.TableCacheTTL, convey.ShouldEqual, 300)
				convey.So(cfg.TableNegativeTTL, convey.ShouldEqual, 30)
				convey.So(cfg.StoreConfigured(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with platform-injected variables", func() {
			_ = os.Setenv("LAKEBASE_HOST", "instance-1.database.cloud.databricks.com")
			_ = os.Setenv("LAKEBASE_PORT", "5433")
			_ = os.Setenv("LAKEBASE_USER", "genieiq_user")
			_ = os.Setenv("DATABRICKS_HOST", "adb-123.azuredatabricks.net/")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then they should map onto the lakebase and databricks keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LakebaseHost, convey.ShouldEqual, "instance-1.database.cloud.databricks.com")
				convey.So(cfg.LakebasePort, convey.ShouldEqual, 5433)
				convey.So(cfg.LakebaseUser, convey.ShouldEqual, "genieiq_user")
				convey.So(cfg.StoreConfigured(), convey.ShouldBeTrue)
				convey.So(cfg.DatabricksHost, convey.ShouldEqual, "https://adb-123.azuredatabricks.net")
			})
		})

		convey.Convey("When service variables and platform variables disagree", func() {
			_ = os.Setenv("LAKEBASE_DATABASE", "from_platform")
			_ = os.Setenv("GENIEIQ_LAKEBASE_DATABASE", "from_service")
			_ = os.Setenv("GENIEIQ_SCAN_CONCURRENCY", "7")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the service prefix should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LakebaseDatabase, convey.ShouldEqual, "from_service")
				convey.So(cfg.ScanConcurrency, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When loading config with YAML file and env override", func() {
			yamlContent := `
addr: ":9090"
scan_delay_ms: 1500
table_cache_size: 64
log_level: debug
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("GENIEIQ_CONFIG", tmpFile)
			_ = os.Setenv("GENIEIQ_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values should apply under env values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ScanDelayMS, convey.ShouldEqual, 1500)
				convey.So(cfg.TableCacheSize, convey.ShouldEqual, 64)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.ScanConcurrency, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("GENIEIQ_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("GENIEIQ_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("GENIEIQ_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When loading config with an out-of-range port", func() {
			_ = os.Setenv("LAKEBASE_PORT", "70000")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("GENIEIQ_SCAN_CONCURRENCY", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestClampScan(t *testing.T) {
	convey.Convey("Given bulk scan parameters", t, func() {
		convey.Convey("Then out-of-range values should be clamped", func() {
			c, d := config.ClampScan(50, 9000)
			convey.So(c, convey.ShouldEqual, config.MaxScanConcurrency)
			convey.So(d, convey.ShouldEqual, config.MaxScanDelayMS)

			c, d = config.ClampScan(0, -5)
			convey.So(c, convey.ShouldEqual, 1)
			convey.So(d, convey.ShouldEqual, 0)

			c, d = config.ClampScan(4, 250)
			convey.So(c, convey.ShouldEqual, 4)
			convey.So(d, convey.ShouldEqual, 250)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"GENIEIQ_CONFIG",
		"GENIEIQ_ADDR",
		"GENIEIQ_LAKEBASE_DATABASE",
		"GENIEIQ_SCAN_CONCURRENCY",
		"LAKEBASE_HOST",
		"LAKEBASE_PORT",
		"LAKEBASE_USER",
		"LAKEBASE_DATABASE",
		"DATABRICKS_HOST",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "genieiq-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
