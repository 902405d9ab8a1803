package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

// Runner drives the TUI from tracker snapshots. It implements download.Renderer.
type Runner struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewRunner creates a runner for a pool of the given size.
// Program options are passed through to Bubbletea.
func NewRunner(workers int, opts ...tea.ProgramOption) *Runner {
	return &Runner{
		program: tea.NewProgram(NewModel(workers), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in a goroutine
func (r *Runner) Start() {
	go func() {
		defer close(r.done)
		_, r.err = r.program.Run()
	}()
}

// Render forwards a snapshot to the program. It returns immediately once the
// user has closed the display.
func (r *Runner) Render(s download.Snapshot) {
	r.program.Send(SnapshotMsg(s))
}

// Finish shows the final state and waits for the program to exit
func (r *Runner) Finish(s download.Snapshot) {
	r.program.Send(DoneMsg{Snapshot: s})
	<-r.done
}

// Err returns the program error, valid after Finish
func (r *Runner) Err() error {
	return r.err
}

// Stop quits the program and waits for it to exit. It is safe to call after
// Finish.
func (r *Runner) Stop() {
	r.program.Quit()
	<-r.done
}
