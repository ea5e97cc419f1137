// Package service coordinates space scans: single scans on demand, bulk
// scan jobs in the background, and the read side the HTTP API serves.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/genieiq/genieiq/internal/adapters/mq/worker"
	"github.com/genieiq/genieiq/internal/adapters/repository"
	"github.com/genieiq/genieiq/internal/adapters/upstream"
	"github.com/genieiq/genieiq/internal/config"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/payload"
	"github.com/genieiq/genieiq/internal/domain/scoring"
	"github.com/genieiq/genieiq/pkg/logger"
)

// Default job settings.
const (
	defaultPageSize      = 100
	defaultJobRetention  = time.Hour
	defaultPruneInterval = time.Minute
	defaultDrainTimeout  = 30 * time.Second
)

// Upstream is the directory service the scanner reads from.
type Upstream interface {
	ListSpaces(ctx context.Context, pageToken string, pageSize int) (upstream.SpacePage, error)
	ReadSpace(ctx context.Context, id string) (payload.Value, error)
	ExportSpace(ctx context.Context, id string) (payload.Value, error)
	ReadSpaceRich(ctx context.Context, id string) (payload.Value, error)
	ReadWarehouse(ctx context.Context, id string) (payload.Value, error)
}

// TableEnricher resolves catalog metadata for table ids.
type TableEnricher interface {
	Enrich(ctx context.Context, ids []string, forceRefresh bool) []model.Table
}

// Service implements the scan orchestrator and job registry.
type Service struct {
	upstream Upstream
	store    repository.Storage
	enricher TableEnricher
	scorer   scoring.Scorer

	// Configuration
	concurrency   int
	delayMS       int
	pageSize      int
	retention     time.Duration
	pruneInterval time.Duration
	drainTimeout  time.Duration
	now           func() time.Time

	jobs *jobRegistry

	// Lifecycle. Jobs run on baseCtx so they outlive the request that
	// started them.
	mu      sync.Mutex
	started bool
	stopped bool
	pools   map[string]*worker.Pool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorer replaces the default rubric scorer.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithScanDefaults sets the bulk-scan concurrency and delay used when a
// request leaves them unset. Values are clamped to the supported ranges.
func WithScanDefaults(concurrency, delayMS int) Option {
	return func(s *Service) {
		s.concurrency, s.delayMS = config.ClampScan(concurrency, delayMS)
	}
}

// WithListPageSize sets the upstream page size used while listing spaces.
func WithListPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithJobRetention sets how long finished jobs stay queryable.
func WithJobRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithPruneInterval sets how often finished jobs are pruned.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// WithDrainTimeout sets how long Stop waits for units in flight before it
// cancels them.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. enricher may be nil, in which case tables keep
// only what the space payloads carry.
func New(up Upstream, store repository.Storage, enricher TableEnricher, opts ...Option) *Service {
	s := &Service{
		upstream:      up,
		store:         store,
		enricher:      enricher,
		scorer:        scoring.NewRubricScorer(),
		pageSize:      defaultPageSize,
		retention:     defaultJobRetention,
		pruneInterval: defaultPruneInterval,
		drainTimeout:  defaultDrainTimeout,
		now:           time.Now,
		jobs:          newJobRegistry(),
		pools:         make(map[string]*worker.Pool),
		logger:        logger.Named("scanner"),
	}
	s.concurrency, s.delayMS = config.ClampScan(3, 500)
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start launches the job pruner.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.wg.Add(1)
	go s.pruneLoop()

	s.started = true
	s.logger.Info(ctx, "scanner service started",
		logger.Int("scan_concurrency", s.concurrency),
		logger.Int("scan_delay_ms", s.delayMS),
		logger.String("storage_mode", s.store.Mode()),
	)
	return nil
}

// Stop ends running jobs: workers finish the unit in flight and pull no
// more, then everything still running on the base context is cancelled.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.started = false
	pools := make([]*worker.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		p.Stop()
		pools = append(pools, p)
	}
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping scanner service...", logger.Int("running_pools", len(pools)))
	drainCtx, cancel := context.WithTimeout(ctx, s.drainTimeout)
	for _, p := range pools {
		if err := p.Shutdown(drainCtx); err != nil {
			s.logger.Warn(ctx, "units still in flight, cancelling", logger.Error(err))
			break
		}
	}
	cancel()
	s.cancel()
	s.wg.Wait()
	s.logger.Info(ctx, "scanner service stopped")
}

// trackPool registers a job's pool so Stop can drain it. It reports false
// once the service is stopping.
func (s *Service) trackPool(jobID string, p *worker.Pool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.pools[jobID] = p
	return true
}

func (s *Service) untrackPool(jobID string) {
	s.mu.Lock()
	delete(s.pools, jobID)
	s.mu.Unlock()
}

func (s *Service) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Service) pruneLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			if n := s.jobs.prune(s.now(), s.retention); n > 0 {
				s.logger.Debug(s.baseCtx, "pruned finished jobs", logger.Int("count", n))
			}
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	total, running := s.jobs.counts()
	return map[string]any{
		"started":         started,
		"storageMode":     s.store.Mode(),
		"scanConcurrency": s.concurrency,
		"scanDelayMs":     s.delayMS,
		"jobs":            total,
		"jobsRunning":     running,
	}
}
