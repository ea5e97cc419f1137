package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/genieiq/genieiq/internal/adapters/repository"
	"github.com/genieiq/genieiq/internal/adapters/upstream"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/payload"
)

// fakeUpstream serves canned payloads keyed by space id.
type fakeUpstream struct {
	mu         sync.Mutex
	pages      []upstream.SpacePage
	listErr    error
	primary    map[string]string
	rich       map[string]string
	export     map[string]string
	warehouses map[string]string
	readErr    map[string]error
	reads      map[string]int

	// when gate is set, primary reads announce themselves on entered and
	// block until gate is closed or ctx is done
	gate    chan struct{}
	entered chan string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		primary:    map[string]string{},
		rich:       map[string]string{},
		export:     map[string]string{},
		warehouses: map[string]string{},
		readErr:    map[string]error{},
		reads:      map[string]int{},
	}
}

var errUnavailable = errors.New("service unavailable")

func forbidden() error {
	return &upstream.APIError{Op: "read_space", StatusCode: http.StatusForbidden, ErrorCode: "PERMISSION_DENIED"}
}

func notFound() error {
	return &upstream.APIError{Op: "read_space", StatusCode: http.StatusNotFound, ErrorCode: "RESOURCE_DOES_NOT_EXIST"}
}

func serverError() error {
	return &upstream.APIError{Op: "read_space", StatusCode: http.StatusInternalServerError}
}

func (f *fakeUpstream) ListSpaces(_ context.Context, pageToken string, _ int) (upstream.SpacePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return upstream.SpacePage{}, f.listErr
	}
	idx := 0
	if pageToken != "" {
		for i, p := range f.pages {
			if p.NextPageToken == pageToken {
				idx = i + 1
			}
		}
	}
	if idx >= len(f.pages) {
		return upstream.SpacePage{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeUpstream) lookup(m map[string]string, id string) (payload.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := m[id]
	if !ok {
		return payload.Value{}, errUnavailable
	}
	return payload.ParseString(body), nil
}

func (f *fakeUpstream) ReadSpace(ctx context.Context, id string) (payload.Value, error) {
	f.mu.Lock()
	f.reads[id]++
	err := f.readErr[id]
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- id:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return payload.Value{}, ctx.Err()
		}
	}
	if err != nil {
		return payload.Value{}, err
	}
	return f.lookup(f.primary, id)
}

func (f *fakeUpstream) ExportSpace(_ context.Context, id string) (payload.Value, error) {
	return f.lookup(f.export, id)
}

func (f *fakeUpstream) ReadSpaceRich(_ context.Context, id string) (payload.Value, error) {
	return f.lookup(f.rich, id)
}

func (f *fakeUpstream) ReadWarehouse(_ context.Context, id string) (payload.Value, error) {
	return f.lookup(f.warehouses, id)
}

func (f *fakeUpstream) readCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[id]
}

// fakeEnricher returns fixed catalog records and remembers the refresh flag.
type fakeEnricher struct {
	mu      sync.Mutex
	tables  map[string]model.Table
	refresh []bool
}

func (e *fakeEnricher) Enrich(_ context.Context, ids []string, forceRefresh bool) []model.Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refresh = append(e.refresh, forceRefresh)
	out := make([]model.Table, len(ids))
	for i, id := range ids {
		t, ok := e.tables[id]
		if !ok {
			t = model.Table{FullName: id}
		}
		out[i] = t
	}
	return out
}

// failingStore rejects writes.
type failingStore struct {
	*repository.MemoryStorage
}

func (failingStore) SaveScanResult(context.Context, *model.ScanResult) (model.HistoryRow, error) {
	return model.HistoryRow{}, errors.New("disk full")
}
