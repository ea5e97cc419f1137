package scanctl_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/scanctl"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeServer answers scan-all with a queued job and walks the job through
// states on each poll.
type fakeServer struct {
	mu        sync.Mutex
	states    []model.JobState
	polls     int
	started   scanctl.ScanAllRequest
	cancelled bool
	startCode int
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /api/scan-all", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&f.started)
		if f.startCode != 0 {
			w.WriteHeader(f.startCode)
			_, _ = w.Write([]byte(`{"code":"unavailable","message":"service stopped"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(model.JobState{ID: "job-1", Status: model.JobQueued, Concurrency: 3})
	})
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		i := min(f.polls, len(f.states)-1)
		f.polls++
		_ = json.NewEncoder(w).Encode(f.states[i])
	})
	mux.HandleFunc("POST /api/jobs/{id}/cancel", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled = true
		_ = json.NewEncoder(w).Encode(model.JobState{ID: "job-1", Status: model.JobCancelled})
	})
	return mux
}

func (f *fakeServer) startedWith() scanctl.ScanAllRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeServer) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func TestRun(t *testing.T) {
	Convey("Given a server that finishes a job after two polls", t, func() {
		start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		end := start.Add(90 * time.Second)
		fake := &fakeServer{states: []model.JobState{
			{ID: "job-1", Status: model.JobRunning, Total: 5, Completed: 1},
			{
				ID: "job-1", Status: model.JobCompleted, Total: 5, Completed: 2, Skipped: 2, Errors: 1,
				SkippedByReason: map[string]int{"permission_denied": 1, "not_found": 1},
				ErrorsByType:    map[string]int{"upstream_5xx": 1},
				StartedAt:       &start, FinishedAt: &end,
			},
		}}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		delay := 0
		cfg := scanctl.Config{BaseURL: srv.URL + "/", Concurrency: 5, DelayMS: &delay, Limit: 10, PollInterval: 5 * time.Millisecond}
		var out bytes.Buffer
		job, err := scanctl.Run(context.Background(), cfg, &out)

		Convey("Then the options reach the server", func() {
			started := fake.startedWith()
			So(started.Concurrency, ShouldEqual, 5)
			So(started.DelayMS, ShouldNotBeNil)
			So(*started.DelayMS, ShouldEqual, 0)
			So(started.Limit, ShouldEqual, 10)
		})

		Convey("Then the final state is returned with exit code 0", func() {
			So(err, ShouldBeNil)
			So(job.Status, ShouldEqual, model.JobCompleted)
			So(scanctl.ExitCode(job, err), ShouldEqual, 0)
		})

		Convey("Then the summary lists counts and sorted reasons", func() {
			s := out.String()
			So(s, ShouldContainSubstring, "job job-1 completed")
			So(s, ShouldContainSubstring, "completed: 2")
			So(s, ShouldContainSubstring, "duration:  1m30s")
			So(bytes.Index(out.Bytes(), []byte("not_found")), ShouldBeLessThan, bytes.Index(out.Bytes(), []byte("permission_denied")))
			So(s, ShouldContainSubstring, "upstream_5xx")
		})
	})

	Convey("Given a job that fails", t, func() {
		fake := &fakeServer{states: []model.JobState{
			{ID: "job-1", Status: model.JobFailed, LastError: "list spaces: 503"},
		}}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		var out bytes.Buffer
		job, err := scanctl.Run(context.Background(), scanctl.Config{BaseURL: srv.URL, PollInterval: time.Millisecond}, &out)

		Convey("Then Run reports ErrJobFailed and exit code 1", func() {
			So(errors.Is(err, scanctl.ErrJobFailed), ShouldBeTrue)
			So(scanctl.ExitCode(job, err), ShouldEqual, 1)
			So(out.String(), ShouldContainSubstring, "last error: list spaces: 503")
		})
	})

	Convey("Given a server refusing new jobs", t, func() {
		fake := &fakeServer{startCode: http.StatusServiceUnavailable}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		_, err := scanctl.Run(context.Background(), scanctl.Config{BaseURL: srv.URL}, &bytes.Buffer{})

		Convey("Then the decoded status error is returned", func() {
			var se *scanctl.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			So(se.Code, ShouldEqual, "unavailable")
			So(se.Message, ShouldEqual, "service stopped")
		})
	})

	Convey("Given the operator interrupts a running job", t, func() {
		fake := &fakeServer{states: []model.JobState{{ID: "job-1", Status: model.JobRunning, Total: 100}}}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		job, err := scanctl.Run(ctx, scanctl.Config{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond}, &bytes.Buffer{})

		Convey("Then the job is cancelled on the server", func() {
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(fake.wasCancelled(), ShouldBeTrue)
			So(scanctl.ExitCode(job, err), ShouldEqual, 1)
		})
	})

	Convey("Given no base url", t, func() {
		_, err := scanctl.Run(context.Background(), scanctl.Config{}, &bytes.Buffer{})
		So(errors.Is(err, scanctl.ErrBaseURLRequired), ShouldBeTrue)
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Help lists the flags", t, func() {
		var buf bytes.Buffer
		scanctl.ShowHelp(&buf)
		So(buf.String(), ShouldContainSubstring, "-concurrency")
		So(buf.String(), ShouldContainSubstring, "-limit")
	})
}
