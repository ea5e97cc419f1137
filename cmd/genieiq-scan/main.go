package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/genieiq/genieiq/internal/scanctl"
	"github.com/genieiq/genieiq/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("genieiq-scan", flag.ContinueOnError)
	var (
		baseURL     = fs.String("url", scanctl.DefaultBaseURL, "Base URL of the service")
		concurrency = fs.Int("concurrency", 0, "Parallel scans (0 = server default)")
		delay       = fs.Int("delay", -1, "Pause after each space in ms (-1 = server default)")
		limit       = fs.Int("limit", 0, "Scan at most this many spaces (0 = all)")
		poll        = fs.Duration("poll", scanctl.DefaultPollInterval, "Job poll interval")
		timeout     = fs.Duration("timeout", scanctl.DefaultTimeout, "HTTP request timeout")
		level       = fs.String("log-level", "info", "Log level")
		verbose     = fs.Bool("verbose", false, "Log every poll")
		help        = fs.Bool("help", false, "Show help")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		scanctl.ShowHelp(os.Stdout)
		return 0
	}

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	if err := logger.SetLevelString(*level); err != nil {
		os.Stderr.WriteString("Invalid log level: " + err.Error() + "\n")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := scanctl.Config{
		BaseURL:      *baseURL,
		Concurrency:  *concurrency,
		Limit:        *limit,
		PollInterval: *poll,
		Timeout:      *timeout,
		Verbose:      *verbose,
	}
	if *delay >= 0 {
		cfg.DelayMS = delay
	}

	job, err := scanctl.Run(ctx, cfg, os.Stdout)
	if err != nil {
		logger.Get().Error(ctx, "scan failed", logger.String("job_id", job.ID), logger.Error(err))
	}
	return scanctl.ExitCode(job, err)
}
