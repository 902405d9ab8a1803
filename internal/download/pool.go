package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kilimcininkoroglu/stickermirror/internal/storage"
)

// DefaultWorkers is the pool size used when none is configured
const DefaultWorkers = 50

// Observer receives per-task lifecycle events, typically a metrics sink
type Observer interface {
	TaskStarted()
	TaskFinished(res Result)
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	Workers int
}

// DefaultPoolConfig returns default pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers: DefaultWorkers,
	}
}

// Pool executes tasks on a fixed number of worker goroutines.
// Destinations that already exist are skipped without touching the network.
type Pool struct {
	config   PoolConfig
	fetcher  Fetcher
	tracker  *Tracker
	observer Observer
	logger   *slog.Logger
}

// NewPool creates a pool that fetches through fetcher and reports to tracker.
// A nil tracker gets a silent one.
func NewPool(config PoolConfig, fetcher Fetcher, tracker *Tracker) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if tracker == nil {
		tracker = NewTracker(config.Workers, nil)
	}
	return &Pool{
		config:  config,
		fetcher: fetcher,
		tracker: tracker,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// SetObserver sets the task lifecycle observer
func (p *Pool) SetObserver(o Observer) {
	p.observer = o
}

// SetLogger sets the logger used for per-task debug output
func (p *Pool) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Workers returns the configured pool size
func (p *Pool) Workers() int {
	return p.config.Workers
}

// Tracker returns the progress tracker
func (p *Pool) Tracker() *Tracker {
	return p.tracker
}

// Run processes every task and returns one result per task, in task order.
// It returns only after all workers have exited. Cancelling ctx fails the
// tasks that have not started instead of dropping them, so every task is
// counted exactly once.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	p.tracker.RecordTotal(len(tasks))

	if len(tasks) == 0 {
		return results
	}

	workers := p.config.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				task := tasks[idx]
				res := p.process(ctx, task)
				results[idx] = res
				p.tracker.RecordCompletion(task.Label(), res)
			}
		}()
	}

	for i := range tasks {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// process runs a single task to its terminal outcome
func (p *Pool) process(ctx context.Context, task Task) Result {
	start := time.Now()
	res := Result{Task: task}

	if storage.FileExists(task.Destination) {
		res.Outcome = OutcomeSkipped
		res.Duration = time.Since(start)
		p.logger.Debug("skipping existing file", "path", task.Destination)
		return res
	}

	if p.observer != nil {
		p.observer.TaskStarted()
		defer func() { p.observer.TaskFinished(res) }()
	}

	n, err := p.fetch(ctx, task)
	res.Duration = time.Since(start)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		p.logger.Debug("asset failed", "url", task.URL, "error", err)
		return res
	}

	res.Outcome = OutcomeFetched
	res.Bytes = n
	p.logger.Debug("asset fetched", "url", task.URL, "bytes", n, "duration", res.Duration)
	return res
}

// fetch downloads task.URL into task.Destination, committing only a complete body
func (p *Pool) fetch(ctx context.Context, task Task) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &TaskError{Kind: KindFetch, Task: task, Err: err}
	}

	if err := storage.EnsureParent(task.Destination); err != nil {
		return 0, &TaskError{Kind: KindFilesystem, Task: task, Err: err}
	}

	body, err := p.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return 0, &TaskError{Kind: KindFetch, Task: task, Err: err}
	}
	defer body.Close()

	w, err := storage.NewAtomicWriter(task.Destination)
	if err != nil {
		return 0, &TaskError{Kind: KindFilesystem, Task: task, Err: err}
	}

	src := &readRecorder{r: body}
	n, err := w.ReadFrom(src)
	if err != nil {
		w.Abort()
		kind := KindFilesystem
		if src.err != nil && errors.Is(err, src.err) {
			kind = KindFetch
		}
		return 0, &TaskError{Kind: kind, Task: task, Err: err}
	}

	if err := w.Commit(); err != nil {
		return 0, &TaskError{Kind: KindFilesystem, Task: task, Err: err}
	}
	return n, nil
}

// readRecorder remembers the last non-EOF read error so copy failures can be
// attributed to the network rather than the disk
type readRecorder struct {
	r   io.Reader
	err error
}

func (rr *readRecorder) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF {
		rr.err = err
	}
	return n, err
}
