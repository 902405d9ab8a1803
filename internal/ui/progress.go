// Package ui provides terminal progress renderers and the end-of-run summary.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

const (
	// DefaultLineWidth is the column count a progress line is padded to
	DefaultLineWidth = 100
	// MaxLabelRunes is the longest label shown before it is shortened
	MaxLabelRunes = 20
)

// LineRenderer rewrites a single terminal line for every completed task
type LineRenderer struct {
	output io.Writer
	width  int
}

// LineRendererOption configures a LineRenderer
type LineRendererOption func(*LineRenderer)

// WithOutput sets the output writer
func WithOutput(w io.Writer) LineRendererOption {
	return func(r *LineRenderer) {
		r.output = w
	}
}

// WithWidth sets the padded line width
func WithWidth(width int) LineRendererOption {
	return func(r *LineRenderer) {
		if width > 0 {
			r.width = width
		}
	}
}

// NewLineRenderer creates a LineRenderer writing to stdout
func NewLineRenderer(opts ...LineRendererOption) *LineRenderer {
	r := &LineRenderer{
		output: os.Stdout,
		width:  DefaultLineWidth,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Render overwrites the current line with the snapshot
func (r *LineRenderer) Render(s download.Snapshot) {
	fmt.Fprint(r.output, "\r"+runewidth.FillRight(FormatLine(s), r.width))
}

// Finish moves past the progress line
func (r *LineRenderer) Finish(s download.Snapshot) {
	if s.Completed > 0 {
		fmt.Fprintln(r.output)
	}
}

// FormatLine renders the progress text without carriage return or padding
func FormatLine(s download.Snapshot) string {
	return fmt.Sprintf("Progress: %d/%d (%.1f%%) | Workers: %d | %s",
		s.Completed, s.Total, s.Percent, s.Workers, TruncateLabel(s.Label))
}

// TruncateLabel shortens labels longer than MaxLabelRunes to their first 17 runes plus "..."
func TruncateLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= MaxLabelRunes {
		return label
	}
	return string(runes[:MaxLabelRunes-3]) + "..."
}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// FormatDuration formats a duration as mm:ss or hh:mm:ss
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "00:00"
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
