// Package download runs mirror tasks on a bounded worker pool and tracks their progress.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"
)

// Task is one unit of mirror work: fetch URL and write it to Destination
type Task struct {
	URL         string
	Destination string
}

// Label returns the base name of the destination, used in progress output
func (t Task) Label() string {
	return filepath.Base(t.Destination)
}

// Outcome is the terminal state of a task
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSkipped
	OutcomeFetched
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFetched:
		return "fetched"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind classifies why a task failed
type ErrorKind int

const (
	// KindFetch covers transport errors, timeouts and non-OK statuses
	KindFetch ErrorKind = iota
	// KindFilesystem covers directory creation and file write errors
	KindFilesystem
)

func (k ErrorKind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

// TaskError is the classified failure of a single task
type TaskError struct {
	Kind ErrorKind
	Task Task
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Task.URL, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a TaskError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var te *TaskError
	return errors.As(err, &te) && te.Kind == kind
}

// Result is what a worker reports for a finished task
type Result struct {
	Task     Task
	Outcome  Outcome
	Err      error
	Bytes    int64
	Duration time.Duration
}

// Fetcher opens a streaming body for a URL.
// Implementations return an error instead of a body for any non-OK response.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, rawURL string) (io.ReadCloser, error)

// Fetch calls f(ctx, rawURL)
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return f(ctx, rawURL)
}

// Stats summarizes a finished or running batch
type Stats struct {
	Total     int
	Completed int
	Fetched   int
	Skipped   int
	Failed    int
	Bytes     int64
}
