package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	stats := m.GetStats()
	if stats["tasks_total"] != 0 {
		t.Errorf("Initial tasks_total = %d, want 0", stats["tasks_total"])
	}

	m.AddTasks(5)
	m.AddSkipped(2)

	m.TaskStarted()
	m.TaskFinished(download.Result{Outcome: download.OutcomeFetched, Bytes: 1024})
	m.TaskStarted()
	m.TaskFinished(download.Result{Outcome: download.OutcomeFetched, Bytes: 2048})
	m.TaskStarted()
	m.TaskFinished(download.Result{Outcome: download.OutcomeFailed, Err: errors.New("404")})

	stats = m.GetStats()
	want := map[string]int64{
		"tasks_total":    5,
		"fetched":        2,
		"skipped":        2,
		"failed":         1,
		"bytes_total":    3072,
		"active_fetches": 0,
	}
	for key, v := range want {
		if stats[key] != v {
			t.Errorf("%s = %d, want %d", key, stats[key], v)
		}
	}
}

func TestMetrics_ActiveGauge(t *testing.T) {
	m := New()

	m.TaskStarted()
	m.TaskStarted()
	if got := m.GetStats()["active_fetches"]; got != 2 {
		t.Errorf("active_fetches = %d, want 2", got)
	}

	m.TaskFinished(download.Result{Outcome: download.OutcomeFetched})
	if got := m.GetStats()["active_fetches"]; got != 1 {
		t.Errorf("active_fetches after finish = %d, want 1", got)
	}
}

func TestMetrics_DurationHistogram(t *testing.T) {
	m := New()

	m.RecordFetchDuration(50 * time.Millisecond) // <= 0.1s
	m.RecordFetchDuration(500 * time.Millisecond) // <= 1s
	m.RecordFetchDuration(3 * time.Second)        // <= 5s
	m.RecordFetchDuration(15 * time.Second)       // <= 20s
	m.RecordFetchDuration(60 * time.Second)       // inf

	stats := m.GetStats()
	for _, key := range []string{"le_0.1s", "le_1s", "le_5s", "le_20s", "le_inf"} {
		if got := stats["fetch_duration_seconds_bucket_"+key]; got != 1 {
			t.Errorf("%s bucket = %d, want 1", key, got)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()

	m.AddTasks(3)
	m.AddSkipped(1)
	m.TaskStarted()
	m.TaskFinished(download.Result{Outcome: download.OutcomeFetched, Bytes: 1024, Duration: 2 * time.Second})
	m.TaskStarted()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"stickermirror_tasks_total 3",
		"stickermirror_fetched_total 1",
		"stickermirror_skipped_total 1",
		"stickermirror_bytes_total 1024",
		"stickermirror_active_fetches 1",
		"# TYPE stickermirror_tasks_total counter",
		"# TYPE stickermirror_active_fetches gauge",
		`stickermirror_fetch_duration_seconds_bucket{le="1"} 0`,
		`stickermirror_fetch_duration_seconds_bucket{le="5"} 1`,
		`stickermirror_fetch_duration_seconds_bucket{le="+Inf"} 1`,
	}

	for _, expected := range expectedMetrics {
		if !strings.Contains(bodyStr, expected) {
			t.Errorf("Response missing: %s", expected)
		}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %s, want text/plain", ct)
	}
}

func TestServer_StartStop(t *testing.T) {
	m := New()
	m.AddTasks(7)

	srv := NewServer("127.0.0.1:0", m, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "stickermirror_tasks_total 7") {
		t.Errorf("scrape body missing tasks_total:\n%s", body)
	}

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestServer_StartBadAddr(t *testing.T) {
	srv := NewServer("256.0.0.1:bad", New(), nil)
	if err := srv.Start(); err == nil {
		srv.Stop()
		t.Error("expected listen error")
	}
}
