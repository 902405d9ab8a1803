package ui

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

// BarRenderer draws a progress bar counting files
type BarRenderer struct {
	output io.Writer
	bar    *progressbar.ProgressBar
	max    int
}

// NewBarRenderer creates a BarRenderer writing to w. The bar is sized on the first render.
func NewBarRenderer(w io.Writer) *BarRenderer {
	return &BarRenderer{output: w}
}

func (r *BarRenderer) ensureBar(total int) {
	if r.bar != nil {
		if total != r.max {
			r.bar.ChangeMax(total)
			r.max = total
		}
		return
	}

	r.max = total
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.output),
		progressbar.OptionSetDescription("Mirroring"),
		progressbar.OptionSetItsString("file"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Render advances the bar to the snapshot's completed count
func (r *BarRenderer) Render(s download.Snapshot) {
	r.ensureBar(s.Total)
	r.bar.Describe(TruncateLabel(s.Label))
	r.bar.Set(s.Completed)
}

// Finish completes the bar and ends the line
func (r *BarRenderer) Finish(s download.Snapshot) {
	if r.bar == nil {
		return
	}
	r.bar.Describe("Mirrored")
	r.bar.Finish()
	io.WriteString(r.output, "\n")
}
