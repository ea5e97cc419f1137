package repository_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/genieiq/genieiq/internal/adapters/repository"
)

// fakeRow scans a fixed set of values or returns err.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		switch p := d.(type) {
		case *bool:
			*p = r.vals[i].(bool)
		case *int:
			*p = r.vals[i].(int)
		case *string:
			*p = r.vals[i].(string)
		}
	}
	return nil
}

// fakeDB answers the schema probe and records executed statements.
type fakeDB struct {
	mu        sync.Mutex
	dsn       string
	schemaOK  bool
	probeErr  error
	execErr   error
	queryErr  error
	pingErr   error
	execs     []string
	probes    atomic.Int32
	closed    atomic.Bool
	probeGate chan struct{}
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return nil, errors.New("query not supported by fake")
}

func (f *fakeDB) QueryRow(ctx context.Context, _ string, _ ...any) pgx.Row {
	f.probes.Add(1)
	if f.probeGate != nil {
		<-f.probeGate
	}
	if err := ctx.Err(); err != nil {
		return fakeRow{err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return fakeRow{err: f.probeErr}
	}
	return fakeRow{vals: []any{f.schemaOK}}
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) Close() { f.closed.Store(true) }

func (f *fakeDB) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

// fakeDialer accepts only the passwords in accept.
type fakeDialer struct {
	mu     sync.Mutex
	accept map[string]bool
	dials  []string
	dbs    []*fakeDB
	newDB  func() *fakeDB
}

func (d *fakeDialer) Dial(_ context.Context, dsn string, _ int32) (repository.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, dsn)
	for pw := range d.accept {
		if containsPassword(dsn, pw) {
			db := &fakeDB{dsn: dsn, schemaOK: true}
			if d.newDB != nil {
				db = d.newDB()
				db.dsn = dsn
			}
			d.dbs = append(d.dbs, db)
			return db, nil
		}
	}
	return nil, errors.New("password authentication failed")
}

func (d *fakeDialer) allow(pw string) {
	d.mu.Lock()
	d.accept[pw] = true
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func containsPassword(dsn, pw string) bool {
	return pw != "" && strings.Contains(dsn, ":"+pw+"@")
}
