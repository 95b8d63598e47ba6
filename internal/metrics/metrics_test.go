package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderJobLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.JobStarted()
	if got := testutil.ToFloat64(r.JobsInProgress); got != 1 {
		t.Errorf("in progress = %f, want 1", got)
	}

	r.ChunkEncoded("24kHz", 10)
	r.ChunkEncoded("24kHz", 10)
	r.ChunkEncoded("24kHz", 5.5)
	if got := testutil.ToFloat64(r.ChunksEncoded.WithLabelValues("24kHz")); got != 3 {
		t.Errorf("chunks = %f, want 3", got)
	}
	if got := testutil.ToFloat64(r.AudioSecondsTotal.WithLabelValues("24kHz")); got != 25.5 {
		t.Errorf("audio seconds = %f, want 25.5", got)
	}

	r.JobFinished("24kHz", "done", 3*time.Second)
	if got := testutil.ToFloat64(r.JobsInProgress); got != 0 {
		t.Errorf("in progress = %f, want 0", got)
	}
	if got := testutil.ToFloat64(r.JobsTotal.WithLabelValues("24kHz", "done")); got != 1 {
		t.Errorf("done jobs = %f, want 1", got)
	}
	if got := testutil.CollectAndCount(r.JobDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestRecorderRejected(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.Rejected("48kHz", "configuration")
	r.Rejected("48kHz", "configuration")

	r.Rejected("48kHz", "codec")
	r.JobStarted()
	r.JobFinished("48kHz", "codec", time.Second)

	if got := testutil.ToFloat64(r.JobsRejected.WithLabelValues("48kHz", "configuration")); got != 2 {
		t.Errorf("rejected = %f, want 2", got)
	}
	if got := testutil.ToFloat64(r.JobsRejected.WithLabelValues("48kHz", "codec")); got != 1 {
		t.Errorf("codec rejections = %f, want 1", got)
	}
	if got := testutil.ToFloat64(r.JobsTotal.WithLabelValues("48kHz", "codec")); got != 1 {
		t.Errorf("codec failures = %f, want 1 (rejections excluded)", got)
	}
	if got := testutil.CollectAndCount(r.JobsTotal); got != 1 {
		t.Errorf("job outcome series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(r.JobsInProgress); got != 0 {
		t.Errorf("rejection must not touch in-progress gauge, got %f", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.JobStarted()
	r.ChunkEncoded("24kHz", 1)
	r.JobFinished("24kHz", "done", time.Second)
	r.Rejected("24kHz", "concurrency")
}

func TestServerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.JobStarted()

	srv := NewServer(":0", reg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "encodec_jobs_in_progress 1") {
		t.Errorf("metrics body missing gauge:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}
