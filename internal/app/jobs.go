package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genieiq/genieiq/internal/adapters/mq/queue"
	"github.com/genieiq/genieiq/internal/adapters/mq/worker"
	"github.com/genieiq/genieiq/internal/config"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// ScanAllOptions tune a bulk scan. Zero values take the service defaults.
type ScanAllOptions struct {
	Concurrency int
	// DelayMS is the pause after each unit; nil means the default.
	DelayMS *int
	// Limit caps the number of spaces scanned; 0 means all.
	Limit int
}

// Job is a bulk scan. Its state is read by pollers while workers update it.
type Job struct {
	mu    sync.RWMutex
	state model.JobState
	now   func() time.Time
}

func newJob(concurrency, delayMS int, now func() time.Time) *Job {
	return &Job{
		now: now,
		state: model.JobState{
			ID:              uuid.NewString(),
			Status:          model.JobQueued,
			SkippedByReason: map[string]int{},
			ErrorsByType:    map[string]int{},
			Concurrency:     concurrency,
			DelayMS:         delayMS,
			CreatedAt:       now().UTC(),
		},
	}
}

// Snapshot returns a copy of the job state.
func (j *Job) Snapshot() model.JobState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	st := j.state
	st.SkippedByReason = copyCounts(j.state.SkippedByReason)
	st.ErrorsByType = copyCounts(j.state.ErrorsByType)
	if j.state.StartedAt != nil {
		t := *j.state.StartedAt
		st.StartedAt = &t
	}
	if j.state.FinishedAt != nil {
		t := *j.state.FinishedAt
		st.FinishedAt = &t
	}
	return st
}

// Active reports whether workers may pull another unit.
func (j *Job) Active() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.Status == model.JobRunning
}

// Done records a successful unit.
func (j *Job) Done(t model.ScanTask) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Completed++
	j.state.LastScannedSpace = t.SpaceID
}

// Skip records a unit the scanner cannot access.
func (j *Job) Skip(t model.ScanTask, reason string, _ error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Skipped++
	j.state.SkippedByReason[reason]++
	j.state.LastScannedSpace = t.SpaceID
}

// Fail records a unit that failed for any other reason.
func (j *Job) Fail(t model.ScanTask, reason string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Errors++
	j.state.ErrorsByType[reason]++
	j.state.LastScannedSpace = t.SpaceID
	if err != nil {
		j.state.LastError = err.Error()
	}
}

// start moves a queued job to running. Returns false if it was cancelled
// while listing.
func (j *Job) start(total int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status != model.JobQueued {
		return false
	}
	now := j.now().UTC()
	j.state.Status = model.JobRunning
	j.state.Total = total
	j.state.StartedAt = &now
	return true
}

// cancel flips a live job to cancelled.
func (j *Job) cancel(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status.Terminal() {
		return ErrJobFinished
	}
	j.terminate(model.JobCancelled, reason)
	return nil
}

// finish ends the job unless it already reached a terminal state.
func (j *Job) finish(status model.JobStatus, lastError string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status.Terminal() {
		return
	}
	j.terminate(status, lastError)
}

// finishRun picks the final status from the unit counters: a job fails only
// when every unit was a genuine error.
func (j *Job) finishRun() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status.Terminal() {
		return
	}
	status := model.JobCompleted
	if j.state.Total > 0 && j.state.Errors == j.state.Total {
		status = model.JobFailed
	}
	j.terminate(status, "")
}

// terminate must be called with j.mu held.
func (j *Job) terminate(status model.JobStatus, lastError string) {
	now := j.now().UTC()
	j.state.Status = status
	j.state.FinishedAt = &now
	if lastError != "" {
		j.state.LastError = lastError
	}
}

func (j *Job) finishedBefore(t time.Time) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state.Status.Terminal() && j.state.FinishedAt != nil && j.state.FinishedAt.Before(t)
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: make(map[string]*Job)}
}

func (r *jobRegistry) add(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.state.ID] = j
}

func (r *jobRegistry) get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// counts returns the number of known and of running jobs.
func (r *jobRegistry) counts() (total, running int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, j := range r.jobs {
		if !j.Snapshot().Status.Terminal() {
			running++
		}
	}
	return len(r.jobs), running
}

// prune drops jobs that finished more than retention ago.
func (r *jobRegistry) prune(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if j.finishedBefore(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// ScanAll starts a bulk scan and returns its initial state immediately.
func (s *Service) ScanAll(ctx context.Context, opts ScanAllOptions) (model.JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return model.JobState{}, ErrStopped
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.concurrency
	}
	delayMS := s.delayMS
	if opts.DelayMS != nil {
		delayMS = *opts.DelayMS
	}
	concurrency, delayMS = config.ClampScan(concurrency, delayMS)

	j := newJob(concurrency, delayMS, s.now)
	s.jobs.add(j)
	s.wg.Add(1)
	go s.runJob(j, max(opts.Limit, 0))
	s.updateJobGauge()

	st := j.Snapshot()
	s.logger.Info(ctx, "bulk scan started",
		logger.String("job_id", st.ID),
		logger.Int("concurrency", concurrency),
		logger.Int("delay_ms", delayMS),
		logger.Int("limit", opts.Limit),
	)
	return st, nil
}

// GetJob returns the state of a job.
func (s *Service) GetJob(_ context.Context, id string) (model.JobState, error) {
	j, ok := s.jobs.get(id)
	if !ok {
		return model.JobState{}, ErrJobNotFound
	}
	return j.Snapshot(), nil
}

// CancelJob stops a job cooperatively: units in flight finish, no new unit
// is pulled.
func (s *Service) CancelJob(ctx context.Context, id string) (model.JobState, error) {
	j, ok := s.jobs.get(id)
	if !ok {
		return model.JobState{}, ErrJobNotFound
	}
	if err := j.cancel("cancelled by request"); err != nil {
		return j.Snapshot(), err
	}
	s.updateJobGauge()
	s.logger.Info(ctx, "bulk scan cancelled", logger.String("job_id", id))
	return j.Snapshot(), nil
}

func (s *Service) updateJobGauge() {
	_, running := s.jobs.counts()
	metrics.UpdateJobsRunning(running)
}

func (s *Service) runJob(j *Job, limit int) {
	defer s.wg.Done()
	defer s.updateJobGauge()

	ctx := s.baseCtx
	st := j.Snapshot()
	log := s.logger.Named("job")

	tasks, err := s.listAll(ctx, limit)
	if err != nil && ctx.Err() != nil {
		j.finish(model.JobCancelled, ErrStopped.Error())
		return
	}
	if err != nil {
		j.finish(model.JobFailed, fmt.Sprintf("list spaces: %v", err))
		metrics.RecordErrorByComponent("job", "list_spaces")
		log.Error(ctx, "bulk scan listing failed", logger.String("job_id", st.ID), logger.Error(err))
		return
	}
	if !j.start(len(tasks)) {
		return
	}
	s.updateJobGauge()

	q := queue.NewInMemoryQueue(queue.WithCapacity(max(len(tasks), 1)))
	if _, err := q.EnqueueAll(ctx, tasks); err != nil {
		q.Drain()
		j.finish(model.JobFailed, fmt.Sprintf("load tasks: %v", err))
		return
	}
	_ = q.Close()

	pool := worker.NewPool(st.Concurrency, q, s, j,
		worker.WithDelay(time.Duration(st.DelayMS)*time.Millisecond),
	)
	if !s.trackPool(st.ID, pool) {
		q.Drain()
		j.finish(model.JobCancelled, ErrStopped.Error())
		return
	}
	defer s.untrackPool(st.ID)
	log.Debug(ctx, "bulk scan workers starting",
		logger.String("job_id", st.ID),
		logger.Int("workers", pool.Size()),
		logger.Int("units", len(tasks)),
	)
	pool.Start(ctx)
	<-pool.Done()

	if dropped := q.Drain(); dropped > 0 {
		log.Debug(ctx, "bulk scan left units unprocessed",
			logger.String("job_id", st.ID),
			logger.Int("dropped", dropped),
		)
	}
	if ctx.Err() != nil || s.isStopped() {
		j.finish(model.JobCancelled, ErrStopped.Error())
	}
	j.finishRun()

	final := j.Snapshot()
	log.Info(ctx, "bulk scan finished",
		logger.String("job_id", final.ID),
		logger.String("status", string(final.Status)),
		logger.Int("total", final.Total),
		logger.Int("completed", final.Completed),
		logger.Int("skipped", final.Skipped),
		logger.Int("errors", final.Errors),
	)
}

// listAll pages through the directory, records every sighting and returns
// unique tasks in listing order.
func (s *Service) listAll(ctx context.Context, limit int) ([]model.ScanTask, error) {
	var (
		tasks []model.ScanTask
		seen  = make(map[string]bool)
		token string
		pages = make(map[string]bool)
		now   = s.now().UTC()
	)
	for {
		page, err := s.upstream.ListSpaces(ctx, token, s.pageSize)
		if err != nil {
			return nil, err
		}
		for _, sp := range page.Spaces {
			if sp.ID == "" || seen[sp.ID] {
				continue
			}
			seen[sp.ID] = true
			if err := s.store.ObserveSpace(ctx, sp.ID, sp.Title, now); err != nil {
				s.degraded(ctx, sp.ID, "observe", err)
			}
			tasks = append(tasks, model.ScanTask{SpaceID: sp.ID, Name: sp.Title})
			if limit > 0 && len(tasks) >= limit {
				return tasks, nil
			}
		}
		token = page.NextPageToken
		if token == "" {
			return tasks, nil
		}
		if pages[token] {
			s.logger.Warn(ctx, "directory repeated a page token, stopping listing",
				logger.Int("listed", len(tasks)),
			)
			return tasks, nil
		}
		pages[token] = true
	}
}
