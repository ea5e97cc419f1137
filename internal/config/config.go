// Package config defines service configuration and its loading hooks.
//
// Conventions:
//   - Defaults live in New; Load layers a YAML file and the environment on top.
//   - External errors are wrapped with this package's sentinel errors.
package config

import "time"

// Bulk-scan ceilings; requests above them are clamped.
const (
	MaxScanConcurrency = 10
	MaxScanDelayMS     = 5000
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Databricks workspace access for the upstream directory service.
	DatabricksHost         string `koanf:"databricks_host"`
	DatabricksToken        string `koanf:"databricks_token"`
	DatabricksClientID     string `koanf:"databricks_client_id"`
	DatabricksClientSecret string `koanf:"databricks_client_secret"`
	UpstreamTimeoutMS      int    `koanf:"upstream_timeout_ms"`

	// Lakebase (managed PostgreSQL) persistence.
	LakebaseHost      string `koanf:"lakebase_host"`
	LakebasePort      int    `koanf:"lakebase_port"`
	LakebaseDatabase  string `koanf:"lakebase_database"`
	LakebaseUser      string `koanf:"lakebase_user"`
	LakebasePassword  string `koanf:"lakebase_password"`
	LakebaseInstance  string `koanf:"lakebase_instance"`
	LakebaseSSLMode   string `koanf:"lakebase_sslmode"`
	PoolMaxConns      int    `koanf:"pool_max_conns"`
	TokenSafetyMargin int    `koanf:"token_safety_margin_s"`
	SchemaReadyTTL    int    `koanf:"schema_ready_ttl_s"`
	StorageRetry      int    `koanf:"storage_retry_s"`

	// Table enricher cache.
	TableCacheTTL    int `koanf:"table_cache_ttl_s"`
	TableNegativeTTL int `koanf:"table_negative_ttl_s"`
	TableCacheSize   int `koanf:"table_cache_size"`

	// Bulk scan defaults.
	ScanConcurrency int `koanf:"scan_concurrency"`
	ScanDelayMS     int `koanf:"scan_delay_ms"`
	ListPageSize    int `koanf:"list_page_size"`
	JobRetention    int `koanf:"job_retention_s"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8080",
		UpstreamTimeoutMS: 30_000,
		LakebasePort:      5432,
		LakebaseDatabase:  "genieiq",
		LakebaseSSLMode:   "require",
		PoolMaxConns:      10,
		TokenSafetyMargin: 120,
		SchemaReadyTTL:    300,
		StorageRetry:      60,
		TableCacheTTL:     300,
		TableNegativeTTL:  30,
		TableCacheSize:    5000,
		ScanConcurrency:   3,
		ScanDelayMS:       500,
		ListPageSize:      100,
		JobRetention:      3600,
	}
}

// UpstreamTimeout returns the per-request upstream timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// StoreConfigured reports whether a persistence host is set.
func (c *Config) StoreConfigured() bool {
	return c.LakebaseHost != ""
}

// ClampScan bounds bulk-scan parameters to the supported ranges.
func ClampScan(concurrency, delayMS int) (int, int) {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxScanConcurrency {
		concurrency = MaxScanConcurrency
	}
	if delayMS < 0 {
		delayMS = 0
	}
	if delayMS > MaxScanDelayMS {
		delayMS = MaxScanDelayMS
	}
	return concurrency, delayMS
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// TableCacheTTLDuration returns the positive cache TTL.
func (c *Config) TableCacheTTLDuration() time.Duration { return seconds(c.TableCacheTTL) }

// TableNegativeTTLDuration returns the negative cache TTL.
func (c *Config) TableNegativeTTLDuration() time.Duration { return seconds(c.TableNegativeTTL) }

// SchemaReadyTTLDuration returns how long a database stays marked schema-ready.
func (c *Config) SchemaReadyTTLDuration() time.Duration { return seconds(c.SchemaReadyTTL) }

// TokenSafetyMarginDuration returns the margin subtracted from credential expiry.
func (c *Config) TokenSafetyMarginDuration() time.Duration { return seconds(c.TokenSafetyMargin) }

// StorageRetryDuration returns how long the in-memory fallback serves calls
// before the database is tried again.
func (c *Config) StorageRetryDuration() time.Duration { return seconds(c.StorageRetry) }

// JobRetentionDuration returns how long finished jobs are kept.
func (c *Config) JobRetentionDuration() time.Duration { return seconds(c.JobRetention) }
