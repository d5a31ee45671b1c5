package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"panotrack/internal/cmdrun"
	"panotrack/internal/metrics"
)

var _ cmdrun.Observer = (*metrics.Metrics)(nil)

func TestJobLifecycleCounters(t *testing.T) {
	m := metrics.New()
	m.JobStarted("track-import")
	m.JobFinished("track-import", metrics.OutcomeRetried, 2*time.Second)
	m.JobStarted("track-import")
	m.JobFinished("track-import", metrics.OutcomeCompleted, time.Second)
	m.ImagesImported(3)
	m.ImagesImported(0)

	expected := `
# HELP panotrack_job_retries_total Total number of scheduled job retries, by kind
# TYPE panotrack_job_retries_total counter
panotrack_job_retries_total{kind="track-import"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "panotrack_job_retries_total"); err != nil {
		t.Fatalf("retries: %v", err)
	}
	if got := testutil.CollectAndCount(m.Registry(), "panotrack_jobs_processed_total"); got != 2 {
		t.Fatalf("expected 2 outcome series, got %d", got)
	}
	expected = `
# HELP panotrack_images_imported_total Total number of frames stored across all image imports
# TYPE panotrack_images_imported_total counter
panotrack_images_imported_total 3
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "panotrack_images_imported_total"); err != nil {
		t.Fatalf("images: %v", err)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.JobStarted("x")
	m.JobFinished("x", metrics.OutcomeFailed, time.Second)
	m.ObserveTool("gopro2gpx", "success", time.Second)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestHandlerServesToolHistogram(t *testing.T) {
	m := metrics.New()
	m.ObserveTool("mapillary_tools", "success", 3*time.Second)

	server := httptest.NewServer(m.Handler())
	defer server.Close()
	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `panotrack_tool_duration_seconds_count{outcome="success",program="mapillary_tools"} 1`) {
		t.Fatalf("tool histogram missing from output:\n%s", body)
	}
}
