package scanctl

import (
	"io"
)

// ShowHelp prints usage information for genieiq-scan.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `genieiq-scan
============

Starts a bulk scan on a running GenieIQ server, waits for it to finish and
prints the summary. Exits 1 when the job fails.

Usage:
  genieiq-scan [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -concurrency int
        Parallel scans, 1..10 (default: server setting)
  -delay int
        Pause after each space in ms, 0..5000 (default: server setting)
  -limit int
        Scan at most this many spaces (default: all)
  -poll duration
        Job poll interval (default 2s)
  -timeout duration
        HTTP request timeout (default 30s)
  -log-level string
        debug, info, warn or error (default "info")
  -verbose
        Log every poll
  -help
        Show this help message

Examples:
  genieiq-scan -url https://genieiq.example.com -concurrency 5 -limit 100
`)
}
