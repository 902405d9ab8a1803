// Package storage provides file I/O operations for mirrored assets.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrWriterClosed is returned when writing to a committed or aborted writer
var ErrWriterClosed = errors.New("writer is closed")

// FileMode is the permission committed files get, independent of the temp file's 0600
const FileMode os.FileMode = 0o644

// tempMarker tags in-progress files so they can be recognised and left out of archives
const tempMarker = ".part-"

// IsTempName reports whether name looks like an AtomicWriter temp file
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker)
}

// AtomicWriter streams data into a temporary file next to its destination.
// The destination only appears once Commit succeeds, so a failed or
// interrupted transfer never leaves a truncated file at the final path.
type AtomicWriter struct {
	file    *os.File
	path    string
	tmpPath string
	written int64
	mu      sync.Mutex
	closed  bool
}

// NewAtomicWriter creates the parent directory of path and opens a temp file beside it
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+tempMarker+"*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file in %s: %w", dir, err)
	}

	return &AtomicWriter{
		file:    file,
		path:    path,
		tmpPath: file.Name(),
	}, nil
}

// Write appends p to the temp file
func (w *AtomicWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWriterClosed
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// ReadFrom copies r into the temp file until EOF
func (w *AtomicWriter) ReadFrom(r io.Reader) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWriterClosed
	}

	n, err := io.Copy(w.file, r)
	w.written += n
	return n, err
}

// Commit flushes and closes the temp file, then renames it onto the destination
func (w *AtomicWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	if err := w.file.Chmod(FileMode); err != nil {
		w.file.Close()
		os.Remove(w.tmpPath)
		return fmt.Errorf("chmod %s: %w", w.tmpPath, err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		os.Remove(w.tmpPath)
		return fmt.Errorf("syncing %s: %w", w.tmpPath, err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("closing %s: %w", w.tmpPath, err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("renaming to %s: %w", w.path, err)
	}
	return nil
}

// Abort closes and removes the temp file. It is a no-op after Commit.
func (w *AtomicWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.file.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", w.tmpPath, err)
	}
	return nil
}

// Path returns the destination path.
func (w *AtomicWriter) Path() string {
	return w.path
}

// TempPath returns the path of the in-progress temp file.
func (w *AtomicWriter) TempPath() string {
	return w.tmpPath
}

// Written returns the number of bytes written so far.
func (w *AtomicWriter) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// FileExists checks if anything exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileSize returns the size of the file at the given path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// EnsureDir creates dir and any missing parents. Concurrent callers racing
// on the same directory all succeed.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// EnsureParent creates the parent directory of path.
func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}
