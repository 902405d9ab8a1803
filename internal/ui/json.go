package ui

import (
	"encoding/json"
	"io"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

// JSONProgress is one line of machine-readable progress output
type JSONProgress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Workers   int     `json:"workers"`
	File      string  `json:"file,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
	Fetched   int     `json:"fetched"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	Bytes     int64   `json:"bytes"`
	Done      bool    `json:"done,omitempty"`
}

// JSONRenderer writes one JSON object per completed task (for scripting)
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer creates a JSONRenderer writing to w
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

// Render writes the snapshot as a JSON line
func (r *JSONRenderer) Render(s download.Snapshot) {
	r.enc.Encode(toJSON(s, false))
}

// Finish writes a final line with done set
func (r *JSONRenderer) Finish(s download.Snapshot) {
	r.enc.Encode(toJSON(s, true))
}

func toJSON(s download.Snapshot, done bool) JSONProgress {
	p := JSONProgress{
		Completed: s.Completed,
		Total:     s.Total,
		Percent:   s.Percent,
		Workers:   s.Workers,
		File:      s.Label,
		Fetched:   s.Fetched,
		Skipped:   s.Skipped,
		Failed:    s.Failed,
		Bytes:     s.Bytes,
		Done:      done,
	}
	if !done {
		p.Outcome = s.Last.String()
	}
	return p
}
