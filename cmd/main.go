package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/genieiq/genieiq/internal/adapters/http/api"
	"github.com/genieiq/genieiq/internal/adapters/http/site"
	"github.com/genieiq/genieiq/internal/adapters/http/swagger"
	"github.com/genieiq/genieiq/internal/adapters/repository"
	"github.com/genieiq/genieiq/internal/adapters/upstream"
	app "github.com/genieiq/genieiq/internal/app"
	"github.com/genieiq/genieiq/internal/config"
	"github.com/genieiq/genieiq/internal/domain/enrich"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants. Single scans make several upstream calls,
// so the write timeout is well above the upstream request timeout.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 2 * time.Minute
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics on a private registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> platform env -> GENIEIQ_ env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithJSON(cfg.LogJSON)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	client := newUpstreamClient(cfg)
	enricher := enrich.New(client,
		enrich.WithTTL(cfg.TableCacheTTLDuration()),
		enrich.WithNegativeTTL(cfg.TableNegativeTTLDuration()),
		enrich.WithCacheSize(cfg.TableCacheSize),
	)
	store, conns := newStorage(cfg, client)
	if conns != nil {
		defer conns.Close()
	}

	svc := app.New(client, store, enricher,
		app.WithLogger(log),
		app.WithScanDefaults(cfg.ScanConcurrency, cfg.ScanDelayMS),
		app.WithListPageSize(cfg.ListPageSize),
		app.WithJobRetention(cfg.JobRetentionDuration()),
		app.WithDrainTimeout(shutdownTimeout),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("upstream", client.Host()),
			logger.String("storage_mode", store.Mode()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// newUpstreamClient authenticates as a service principal when OAuth client
// credentials are configured, otherwise with the static token.
func newUpstreamClient(cfg *config.Config) *upstream.Client {
	var tokens upstream.TokenSource = upstream.StaticToken(cfg.DatabricksToken)
	if cfg.DatabricksClientID != "" && cfg.DatabricksClientSecret != "" {
		tokens = upstream.NewOAuthTokenSource(cfg.DatabricksHost, cfg.DatabricksClientID, cfg.DatabricksClientSecret,
			&http.Client{Timeout: cfg.UpstreamTimeout()})
	}
	return upstream.NewClient(cfg.DatabricksHost, tokens, upstream.WithTimeout(cfg.UpstreamTimeout()))
}

// newStorage returns the storage gateway. The SQL backend is only built when
// a database host is configured; the returned manager is nil otherwise.
func newStorage(cfg *config.Config, client *upstream.Client) (*repository.Gateway, *repository.ConnectionManager) {
	memory := repository.NewMemoryStorage()
	if !cfg.StoreConfigured() {
		return repository.NewGateway(nil, memory), nil
	}

	var minter repository.Minter
	if client.Host() != "" {
		minter = repository.MinterFunc(func(ctx context.Context) (repository.Credential, error) {
			cred, err := client.MintDatabaseCredential(ctx, cfg.LakebaseInstance)
			if err != nil {
				return repository.Credential{}, err
			}
			return repository.Credential{Token: cred.Token, ExpiresAt: cred.ExpiresAt}, nil
		})
	}

	conns := repository.NewConnectionManager(repository.ConnConfig{
		Host:     cfg.LakebaseHost,
		Port:     cfg.LakebasePort,
		Database: cfg.LakebaseDatabase,
		User:     cfg.LakebaseUser,
		SSLMode:  cfg.LakebaseSSLMode,
		MaxConns: int32(cfg.PoolMaxConns),
	},
		repository.WithDialer(repository.PgxDialer),
		repository.WithSafetyMargin(cfg.TokenSafetyMarginDuration()),
		repository.WithCandidates(repository.DefaultCandidates(cfg.LakebasePassword, cfg.DatabricksToken, minter)...),
	)
	schema := repository.NewSchemaRegistry(repository.WithReadyTTL(cfg.SchemaReadyTTLDuration()))
	return repository.NewGateway(repository.NewSQLStorage(conns, schema), memory,
		repository.WithRetryAfter(cfg.StorageRetryDuration()),
	), conns
}

// newHandler registers every route and wraps the mux with the request-token
// middleware.
func newHandler(ctx context.Context, svc *app.Service) http.Handler {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return api.RequestTokenMiddleware(mux)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater keeps job gauges fresh between job transitions.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if running, ok := stats["jobsRunning"].(int); ok {
		metrics.UpdateJobsRunning(running)
	}
}
