// Package archive bundles a mirrored directory tree into a single zip file.
package archive

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/kilimcininkoroglu/stickermirror/internal/storage"
)

// ErrSource is returned when the directory to archive is missing or unreadable
var ErrSource = errors.New("archive source unavailable")

// Result describes a written archive
type Result struct {
	Path   string
	Files  int
	Dirs   int
	Bytes  int64  // size of the archive on disk
	Digest string // hex BLAKE3 of the archive bytes
}

// Zip writes <baseName>.zip containing every file and directory under sourceDir,
// named relative to sourceDir with forward slashes. The archive is assembled in
// a temp file and renamed into place, replacing any previous archive.
// In-progress download temp files are left out.
func Zip(sourceDir, baseName string) (*Result, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSource, sourceDir)
	}

	res := &Result{Path: baseName + ".zip"}

	w, err := storage.NewAtomicWriter(res.Path)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	hasher := blake3.New()
	counter := &countingWriter{}
	zw := zip.NewWriter(io.MultiWriter(w, hasher, counter))

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == sourceDir {
				return fmt.Errorf("%w: %w", ErrSource, err)
			}
			return err
		}
		if path == sourceDir {
			return nil
		}
		if !d.IsDir() && storage.IsTempName(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			res.Dirs++
			return addDir(zw, d, filepath.ToSlash(rel))
		}
		if !d.Type().IsRegular() {
			return nil
		}
		res.Files++
		return addFile(zw, path, d, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		w.Abort()
		return nil, fmt.Errorf("archiving %s: %w", sourceDir, walkErr)
	}

	if err := zw.Close(); err != nil {
		w.Abort()
		return nil, fmt.Errorf("finishing archive: %w", err)
	}
	if err := w.Commit(); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	res.Bytes = counter.n
	res.Digest = hex.EncodeToString(hasher.Sum(nil))
	return res, nil
}

func addDir(zw *zip.Writer, d fs.DirEntry, name string) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name + "/"
	hdr.Method = zip.Store
	_, err = zw.CreateHeader(hdr)
	return err
}

func addFile(zw *zip.Writer, path string, d fs.DirEntry, name string) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	return nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
