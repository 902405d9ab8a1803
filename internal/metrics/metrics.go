// Package metrics provides Prometheus-compatible metrics for mirror runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

// Metrics holds all mirror metrics. It implements download.Observer.
type Metrics struct {
	// Counters
	tasksTotal   int64 // Tasks collected from manifests
	fetched      int64 // Files written to disk
	skipped      int64 // Destinations that already existed
	failed       int64 // Tasks that ended in an error
	bytesFetched int64 // Total bytes written

	// Gauges
	activeFetches int64 // Fetches in flight

	// Histogram buckets for fetch duration
	durationBuckets map[string]int64 // bucket label -> count

	// Start time for uptime calculation
	startTime time.Time

	mu sync.RWMutex
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		durationBuckets: map[string]int64{
			"le_0.1s": 0,
			"le_1s":   0,
			"le_5s":   0,
			"le_20s":  0,
			"le_inf":  0,
		},
	}
}

// AddTasks adds to the collected tasks counter
func (m *Metrics) AddTasks(n int) {
	atomic.AddInt64(&m.tasksTotal, int64(n))
}

// AddSkipped adds to the skipped counter
func (m *Metrics) AddSkipped(n int) {
	atomic.AddInt64(&m.skipped, int64(n))
}

// TaskStarted marks a fetch as in flight
func (m *Metrics) TaskStarted() {
	atomic.AddInt64(&m.activeFetches, 1)
}

// TaskFinished records the outcome of a fetch
func (m *Metrics) TaskFinished(res download.Result) {
	atomic.AddInt64(&m.activeFetches, -1)

	switch res.Outcome {
	case download.OutcomeFetched:
		atomic.AddInt64(&m.fetched, 1)
		atomic.AddInt64(&m.bytesFetched, res.Bytes)
	case download.OutcomeFailed:
		atomic.AddInt64(&m.failed, 1)
	}

	m.RecordFetchDuration(res.Duration)
}

// RecordFetchDuration records a fetch duration in the histogram
func (m *Metrics) RecordFetchDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secs := d.Seconds()
	switch {
	case secs <= 0.1:
		m.durationBuckets["le_0.1s"]++
	case secs <= 1:
		m.durationBuckets["le_1s"]++
	case secs <= 5:
		m.durationBuckets["le_5s"]++
	case secs <= 20:
		m.durationBuckets["le_20s"]++
	default:
		m.durationBuckets["le_inf"]++
	}
}

// GetStats returns current metrics as a map
func (m *Metrics) GetStats() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]int64{
		"tasks_total":    atomic.LoadInt64(&m.tasksTotal),
		"fetched":        atomic.LoadInt64(&m.fetched),
		"skipped":        atomic.LoadInt64(&m.skipped),
		"failed":         atomic.LoadInt64(&m.failed),
		"bytes_total":    atomic.LoadInt64(&m.bytesFetched),
		"active_fetches": atomic.LoadInt64(&m.activeFetches),
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
	}

	for k, v := range m.durationBuckets {
		stats["fetch_duration_seconds_bucket_"+k] = v
	}

	return stats
}

// Handler returns an HTTP handler for Prometheus metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		stats := m.GetStats()

		writeMetric(w, "stickermirror_tasks_total", "counter", "Tasks collected from manifests", stats["tasks_total"])
		writeMetric(w, "stickermirror_fetched_total", "counter", "Files fetched and written", stats["fetched"])
		writeMetric(w, "stickermirror_skipped_total", "counter", "Files skipped because they already existed", stats["skipped"])
		writeMetric(w, "stickermirror_failed_total", "counter", "Tasks that failed", stats["failed"])
		writeMetric(w, "stickermirror_bytes_total", "counter", "Total bytes written", stats["bytes_total"])
		writeMetric(w, "stickermirror_active_fetches", "gauge", "Fetches in flight", stats["active_fetches"])
		writeMetric(w, "stickermirror_uptime_seconds", "counter", "Time since start in seconds", stats["uptime_seconds"])

		// Buckets are cumulative in the exposition format
		fmt.Fprintln(w, "# HELP stickermirror_fetch_duration_seconds Fetch duration histogram")
		fmt.Fprintln(w, "# TYPE stickermirror_fetch_duration_seconds histogram")
		var cumulative int64
		for _, b := range []struct{ le, key string }{
			{"0.1", "le_0.1s"},
			{"1", "le_1s"},
			{"5", "le_5s"},
			{"20", "le_20s"},
			{"+Inf", "le_inf"},
		} {
			cumulative += stats["fetch_duration_seconds_bucket_"+b.key]
			fmt.Fprintf(w, "stickermirror_fetch_duration_seconds_bucket{le=%q} %d\n", b.le, cumulative)
		}
	})
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// Server wraps an HTTP server for metrics
type Server struct {
	server   *http.Server
	metrics  *Metrics
	logger   *slog.Logger
	listener net.Listener
}

// NewServer creates a new metrics server
func NewServer(addr string, m *Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

// Start binds the listen address and serves in a goroutine
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight scrapes
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once started, the configured one otherwise
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}
