// Package mirror runs the full pipeline: collect tasks from manifests,
// download them on the worker pool, then archive the output tree.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/kilimcininkoroglu/stickermirror/internal/archive"
	"github.com/kilimcininkoroglu/stickermirror/internal/download"
	"github.com/kilimcininkoroglu/stickermirror/internal/hooks"
	"github.com/kilimcininkoroglu/stickermirror/internal/manifest"
	"github.com/kilimcininkoroglu/stickermirror/internal/metrics"
	"github.com/kilimcininkoroglu/stickermirror/internal/paths"
	"github.com/kilimcininkoroglu/stickermirror/internal/storage"
)

var (
	// ErrLocked is returned when another run holds the output lock
	ErrLocked = errors.New("output directory is locked by another run")
	// ErrOutput is returned when the output root cannot be created
	ErrOutput = errors.New("output directory unavailable")
	// ErrArchive wraps any failure to write the archive
	ErrArchive = errors.New("archive failed")
)

// Config holds the locations and sizing of a run
type Config struct {
	InputDir    string
	Pattern     string
	OutputDir   string
	ArchiveName string
	BaseDomain  string
	Workers     int
}

// Report summarizes a run
type Report struct {
	RunID          string
	Started        time.Time
	Sources        int
	Manifests      int
	ManifestErrors []error
	Stats          download.Stats
	Failures       []download.Result
	Archive        *archive.Result
	Elapsed        time.Duration
}

// Mirror wires the pipeline stages together
type Mirror struct {
	cfg      Config
	fetcher  download.Fetcher
	renderer download.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	hooks    *hooks.Manager
}

// Option configures a Mirror
type Option func(*Mirror)

// WithRenderer sets the progress renderer
func WithRenderer(r download.Renderer) Option {
	return func(m *Mirror) {
		if r != nil {
			m.renderer = r
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records task counters into mt
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Mirror) {
		m.metrics = mt
	}
}

// WithHooks fires start, complete and error events on hm
func WithHooks(hm *hooks.Manager) Option {
	return func(m *Mirror) {
		m.hooks = hm
	}
}

// New creates a Mirror downloading through fetcher
func New(cfg Config, fetcher download.Fetcher, opts ...Option) *Mirror {
	if cfg.Pattern == "" {
		cfg.Pattern = manifest.DefaultPattern
	}
	if cfg.Workers <= 0 {
		cfg.Workers = download.DefaultWorkers
	}

	m := &Mirror{
		cfg:      cfg,
		fetcher:  fetcher,
		renderer: download.NopRenderer{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LockPath returns the lock file guarding the output directory
func (m *Mirror) LockPath() string {
	return filepath.Clean(m.cfg.OutputDir) + ".lock"
}

// ArchivePath returns the archive file the run writes
func (m *Mirror) ArchivePath() string {
	return m.cfg.ArchiveName + ".zip"
}

// Run executes one mirror pass. Individual download failures are reported in
// the Report and never fail the run; lock, output and archive errors do.
func (m *Mirror) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	logger := m.logger.With("run_id", report.RunID)

	if err := storage.EnsureParent(m.LockPath()); err != nil {
		return report, m.fail(ctx, logger, report, fmt.Errorf("%w: %w", ErrOutput, err))
	}
	lock := flock.New(m.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return report, m.fail(ctx, logger, report, fmt.Errorf("acquire lock: %w", err))
	}
	if !ok {
		return report, m.fail(ctx, logger, report, fmt.Errorf("%w: %s", ErrLocked, m.LockPath()))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release output lock", "lock", m.LockPath(), "error", err)
		}
	}()

	if err := storage.EnsureDir(m.cfg.OutputDir); err != nil {
		return report, m.fail(ctx, logger, report, fmt.Errorf("%w: %w", ErrOutput, err))
	}

	sources := manifest.Discover(m.cfg.InputDir, m.cfg.Pattern)
	resolver := paths.NewResolver(m.cfg.BaseDomain, m.cfg.OutputDir)
	col := manifest.NewCollector(resolver, logger).Collect(sources)
	report.Sources = col.Sources
	report.Manifests = col.Manifests
	report.ManifestErrors = col.Errors

	logger.Info("tasks collected",
		"input", m.cfg.InputDir,
		"manifests", col.Manifests,
		"skipped_manifests", len(col.Errors),
		"tasks", len(col.Tasks),
	)
	m.fire(ctx, logger, m.payload(hooks.EventStart, report).WithCounts(len(col.Tasks), 0, 0, 0, 0))

	tracker := download.NewTracker(m.cfg.Workers, m.renderer)
	tracker.RecordTotal(len(col.Tasks))

	pool := download.NewPool(download.PoolConfig{Workers: m.cfg.Workers}, m.fetcher, tracker)
	pool.SetLogger(logger)
	if m.metrics != nil {
		m.metrics.AddTasks(len(col.Tasks))
		pool.SetObserver(m.metrics)
	}

	results := pool.Run(ctx, col.Tasks)
	tracker.Finish()

	report.Stats = tracker.Stats()
	for _, res := range results {
		if res.Outcome == download.OutcomeFailed {
			report.Failures = append(report.Failures, res)
		}
	}
	if m.metrics != nil {
		m.metrics.AddSkipped(report.Stats.Skipped)
	}

	logger.Info("downloads finished",
		"total", report.Stats.Total,
		"fetched", report.Stats.Fetched,
		"skipped", report.Stats.Skipped,
		"failed", report.Stats.Failed,
		"bytes", report.Stats.Bytes,
	)

	res, err := archive.Zip(m.cfg.OutputDir, m.cfg.ArchiveName)
	if err != nil {
		return report, m.fail(ctx, logger, report, fmt.Errorf("%w: %w", ErrArchive, err))
	}
	report.Archive = res
	report.Elapsed = time.Since(report.Started)

	logger.Info("archive written",
		"path", res.Path,
		"files", res.Files,
		"bytes", res.Bytes,
		"blake3", res.Digest,
		"elapsed", report.Elapsed,
	)

	m.fire(ctx, logger, m.payload(hooks.EventComplete, report))
	return report, nil
}

func (m *Mirror) fail(ctx context.Context, logger *slog.Logger, report *Report, err error) error {
	report.Elapsed = time.Since(report.Started)
	logger.Error("mirror run failed", "error", err)
	m.fire(ctx, logger, m.payload(hooks.EventError, report).WithError(err))
	return err
}

func (m *Mirror) payload(event hooks.Event, report *Report) *hooks.Payload {
	s := report.Stats
	p := hooks.NewPayload(event, report.RunID, m.cfg.OutputDir).
		WithCounts(s.Total, s.Fetched, s.Skipped, s.Failed, s.Bytes).
		WithDuration(time.Since(report.Started))
	p.Manifests = report.Manifests
	if report.Archive != nil {
		p.WithArchive(report.Archive.Path, report.Archive.Digest)
	}
	return p
}

// fire runs the hooks for an event. Hook failures are logged, never returned.
func (m *Mirror) fire(ctx context.Context, logger *slog.Logger, p *hooks.Payload) {
	if m.hooks.Count() == 0 {
		return
	}
	if err := m.hooks.Execute(ctx, p); err != nil {
		logger.Warn("hook failed", "event", p.Event, "error", err)
	}
}
