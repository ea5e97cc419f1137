// Package enrich augments table identifiers with catalog metadata.
package enrich

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/genieiq/genieiq/internal/domain/cache"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/payload"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// Default cache lifetimes.
const (
	DefaultTTL         = 5 * time.Minute
	DefaultNegativeTTL = 30 * time.Second
)

// CatalogReader looks up table metadata in the catalog service.
type CatalogReader interface {
	ReadTableMetadata(ctx context.Context, fullName string) (payload.Value, error)
}

type entry struct {
	table    model.Table
	negative bool
}

// Enricher resolves descriptions and columns for tables through a TTL cache.
// It is safe for concurrent use and meant to be shared process-wide.
type Enricher struct {
	reader      CatalogReader
	cache       cache.Cache[entry]
	ttl         time.Duration
	negativeTTL time.Duration
	concurrency int
	log         logger.Logger
}

// New creates an Enricher.
func New(reader CatalogReader, opts ...Option) *Enricher {
	o := options{
		ttl:         DefaultTTL,
		negativeTTL: DefaultNegativeTTL,
		cacheSize:   5000,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Enricher{
		reader:      reader,
		cache:       cache.New[entry](cache.WithMaxSize(o.cacheSize), cache.WithClock(o.now)),
		ttl:         o.ttl,
		negativeTTL: o.negativeTTL,
		concurrency: o.concurrency,
		log:         logger.Named("enricher"),
	}
}

// Enrich returns one record per id in input order. A failed lookup yields a
// record with empty description and columns and is cached briefly as a
// negative result, unless ctx was done. forceRefresh skips cache reads but
// still writes.
func (e *Enricher) Enrich(ctx context.Context, ids []string, forceRefresh bool) []model.Table {
	out := make([]model.Table, len(ids))
	if len(ids) == 0 {
		return out
	}

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			out[i] = e.lookup(ctx, id, forceRefresh)
			return nil
		})
	}
	_ = g.Wait()
	metrics.UpdateTableCacheSize(e.cache.Size())
	return out
}

func (e *Enricher) lookup(ctx context.Context, id string, forceRefresh bool) model.Table {
	if !forceRefresh {
		if ent, ok := e.cache.Get(id); ok {
			metrics.RecordTableCacheHit()
			return copyTable(ent.table)
		}
	}
	metrics.RecordTableCacheMiss()

	v, err := e.reader.ReadTableMetadata(ctx, id)
	if err != nil && ctx.Err() != nil {
		// cancelled callers leave no negative entry
		return emptyTable(id)
	}
	if err != nil {
		metrics.RecordDegradedStage("catalog_lookup")
		e.log.Warn(ctx, "table metadata lookup failed",
			logger.String("table", id),
			logger.Error(err),
		)
		empty := emptyTable(id)
		e.cache.Set(id, entry{table: empty, negative: true}, e.negativeTTL)
		return copyTable(empty)
	}

	t := FromCatalog(id, v)
	e.cache.Set(id, entry{table: t}, e.ttl)
	return copyTable(t)
}

// FromCatalog maps a catalog table payload onto a table record.
func FromCatalog(id string, v payload.Value) model.Table {
	t := emptyTable(id)
	t.Description = strings.TrimSpace(v.First("comment", "description").Text("\n"))
	for _, c := range v.Get("columns").Items() {
		name := strings.TrimSpace(c.Get("name").String())
		if name == "" {
			continue
		}
		t.Columns = append(t.Columns, model.Column{
			Name:        name,
			Description: strings.TrimSpace(c.First("comment", "description").String()),
		})
	}
	return t
}

func emptyTable(id string) model.Table {
	return model.Table{FullName: id, Columns: []model.Column{}}
}

func copyTable(t model.Table) model.Table {
	cols := make([]model.Column, len(t.Columns))
	copy(cols, t.Columns)
	t.Columns = cols
	return t
}
