package scanctl

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/pkg/logger"
)

const cancelTimeout = 5 * time.Second

// Run starts a bulk scan, polls it until it is terminal and writes the
// summary to out. A cancelled ctx cancels the job on the server too.
func Run(ctx context.Context, cfg Config, out io.Writer) (model.JobState, error) {
	cfg = cfg.withDefaults()
	log := logger.Named("scanctl")

	client, err := NewClient(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return model.JobState{}, err
	}
	if err := client.Live(ctx); err != nil {
		return model.JobState{}, fmt.Errorf("service health check failed: %w", err)
	}

	job, err := client.StartScan(ctx, ScanAllRequest{
		Concurrency: cfg.Concurrency,
		DelayMS:     cfg.DelayMS,
		Limit:       cfg.Limit,
	})
	if err != nil {
		return model.JobState{}, fmt.Errorf("start scan: %w", err)
	}
	log.Info(ctx, "scan job started",
		logger.String("job_id", job.ID),
		logger.Int("concurrency", job.Concurrency),
		logger.Int("delay_ms", job.DelayMS))

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for !job.Status.Terminal() {
		select {
		case <-ctx.Done():
			cctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
			if _, cerr := client.Cancel(cctx, job.ID); cerr != nil {
				log.Warn(cctx, "cancel scan job", logger.String("job_id", job.ID), logger.Error(cerr))
			}
			cancel()
			return job, ctx.Err()
		case <-ticker.C:
		}
		next, err := client.Job(ctx, job.ID)
		if err != nil {
			log.Warn(ctx, "poll scan job", logger.String("job_id", job.ID), logger.Error(err))
			continue
		}
		job = next
		if cfg.Verbose {
			log.Info(ctx, "scan job progress",
				logger.String("status", string(job.Status)),
				logger.Int("total", job.Total),
				logger.Int("completed", job.Completed),
				logger.Int("skipped", job.Skipped),
				logger.Int("errors", job.Errors))
		}
	}

	WriteSummary(out, job)
	if job.Status == model.JobFailed {
		return job, fmt.Errorf("%w: %s", ErrJobFailed, job.LastError)
	}
	return job, nil
}

// WriteSummary prints the final counts and reason histograms.
func WriteSummary(out io.Writer, job model.JobState) {
	fmt.Fprintf(out, "job %s %s\n", job.ID, job.Status)
	fmt.Fprintf(out, "  total:     %d\n", job.Total)
	fmt.Fprintf(out, "  completed: %d\n", job.Completed)
	fmt.Fprintf(out, "  skipped:   %d\n", job.Skipped)
	writeHistogram(out, job.SkippedByReason)
	fmt.Fprintf(out, "  errors:    %d\n", job.Errors)
	writeHistogram(out, job.ErrorsByType)
	if job.LastError != "" {
		fmt.Fprintf(out, "  last error: %s\n", job.LastError)
	}
	if job.StartedAt != nil && job.FinishedAt != nil {
		fmt.Fprintf(out, "  duration:  %s\n", job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}
}

func writeHistogram(out io.Writer, h map[string]int) {
	for _, k := range slices.Sorted(maps.Keys(h)) {
		fmt.Fprintf(out, "    %-18s %d\n", k, h[k])
	}
}

// ExitCode maps a finished job onto the process exit status.
func ExitCode(job model.JobState, err error) int {
	if err != nil || job.Status == model.JobFailed {
		return 1
	}
	return 0
}
