// Package scanctl drives a bulk scan on a running GenieIQ server.
package scanctl

import (
	"errors"
	"time"
)

// Defaults for the operator CLI.
const (
	DefaultBaseURL      = "http://localhost:8080"
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 30 * time.Second
)

// Sentinel errors.
var (
	ErrBaseURLRequired = errors.New("base url is required")
	ErrJobFailed       = errors.New("scan job failed")
)

// Config holds the options of one CLI run.
type Config struct {
	BaseURL      string        // server root, without trailing slash
	Concurrency  int           // 0 means the server default
	DelayMS      *int          // nil means the server default
	Limit        int           // 0 means all spaces
	PollInterval time.Duration // pause between job polls
	Timeout      time.Duration // per-request HTTP timeout
	Verbose      bool          // log every poll
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
