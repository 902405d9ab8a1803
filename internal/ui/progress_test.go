package ui

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

func snap(completed, total int, label string) download.Snapshot {
	return download.Snapshot{
		Stats:   download.Stats{Total: total, Completed: completed, Fetched: completed},
		Workers: 50,
		Percent: download.Percent(completed, total),
		Label:   label,
		Last:    download.OutcomeFetched,
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1099511627776, "1.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatBytes(tt.bytes); got != tt.expected {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{1400 * time.Millisecond, "00:01"},
		{65 * time.Second, "01:05"},
		{time.Hour + time.Minute + time.Second, "01:01:01"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncateLabel(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"a_thumb.png", "a_thumb.png"},
		{"exactly_twenty_chars", "exactly_twenty_chars"},
		{"twenty_one_characters", "twenty_one_charac..."},
		{"çıkartma_çıkartma_çıkartma.png", "çıkartma_çıkartma..."},
		{"", ""},
	}

	for _, tt := range tests {
		got := TruncateLabel(tt.label)
		if got != tt.want {
			t.Errorf("TruncateLabel(%q) = %q, want %q", tt.label, got, tt.want)
		}
		if n := len([]rune(got)); n > MaxLabelRunes {
			t.Errorf("TruncateLabel(%q) has %d runes", tt.label, n)
		}
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine(snap(3, 10, "a_thumb.png"))
	want := "Progress: 3/10 (30.0%) | Workers: 50 | a_thumb.png"
	if got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}

	if got := FormatLine(snap(0, 0, "")); got != "Progress: 0/0 (0.0%) | Workers: 50 | " {
		t.Errorf("empty FormatLine() = %q", got)
	}
}

func TestLineRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewLineRenderer(WithOutput(&buf))

	r.Render(snap(1, 2, "a.png"))
	first := buf.String()
	if !strings.HasPrefix(first, "\rProgress: 1/2 (50.0%)") {
		t.Errorf("line should start with carriage return, got %q", first)
	}
	if len(first) != 1+DefaultLineWidth {
		t.Errorf("line length = %d, want %d", len(first), 1+DefaultLineWidth)
	}

	r.Render(snap(2, 2, "b.png"))
	r.Finish(snap(2, 2, "b.png"))

	out := buf.String()
	if strings.Count(out, "\r") != 2 {
		t.Errorf("expected two rewrites, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish should end the progress line")
	}
}

func TestLineRenderer_FinishEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewLineRenderer(WithOutput(&buf), WithWidth(60))

	r.Finish(snap(0, 0, ""))
	if buf.Len() != 0 {
		t.Errorf("Finish with nothing rendered wrote %q", buf.String())
	}

	r.Render(snap(1, 1, "x.png"))
	if got := buf.Len(); got != 61 {
		t.Errorf("custom width line length = %d, want 61", got)
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)

	r.Render(snap(1, 2, "a.png"))
	r.Render(snap(2, 2, "b.png"))
	r.Finish(snap(2, 2, "b.png"))

	var lines []JSONProgress
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var p JSONProgress
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, p)
	}

	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0].Completed != 1 || lines[0].Percent != 50 || lines[0].File != "a.png" || lines[0].Outcome != "fetched" {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[1].Done {
		t.Error("progress lines should not be marked done")
	}
	if !lines[2].Done || lines[2].Outcome != "" || lines[2].Completed != 2 {
		t.Errorf("final line = %+v", lines[2])
	}
}

func TestBarRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewBarRenderer(&buf)

	// Finish before any render is a no-op
	r.Finish(snap(0, 0, ""))
	if buf.Len() != 0 {
		t.Errorf("Finish without bar wrote %q", buf.String())
	}

	r.Render(snap(1, 2, "a.png"))
	r.Render(snap(2, 3, "b.png"))
	if r.max != 3 {
		t.Errorf("bar max = %d, want 3 after total change", r.max)
	}
	r.Finish(snap(3, 3, "c.png"))

	if !strings.Contains(buf.String(), "Mirrored") {
		t.Errorf("final bar should be described as Mirrored, got %q", buf.String())
	}
}

func TestParseStyle(t *testing.T) {
	tests := []struct {
		name    string
		want    Style
		wantErr bool
	}{
		{"", StyleLine, false},
		{"line", StyleLine, false},
		{" BAR ", StyleBar, false},
		{"json", StyleJSON, false},
		{"tui", StyleTUI, false},
		{"none", StyleNone, false},
		{"auto", StyleAuto, false},
		{"fancy", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStyle(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStyle(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStyle(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	var buf bytes.Buffer

	if got := Resolve(StyleAuto, &buf); got != StyleJSON {
		t.Errorf("auto on a buffer = %q, want json", got)
	}
	if got := Resolve(StyleBar, &buf); got != StyleBar {
		t.Errorf("explicit style should pass through, got %q", got)
	}
	if IsTerminal(&buf) {
		t.Error("a buffer is not a terminal")
	}
}

func TestNewRenderer(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		style   Style
		check   func(download.Renderer) bool
		wantErr bool
	}{
		{StyleLine, func(r download.Renderer) bool { _, ok := r.(*LineRenderer); return ok }, false},
		{StyleBar, func(r download.Renderer) bool { _, ok := r.(*BarRenderer); return ok }, false},
		{StyleJSON, func(r download.Renderer) bool { _, ok := r.(*JSONRenderer); return ok }, false},
		{StyleAuto, func(r download.Renderer) bool { _, ok := r.(*JSONRenderer); return ok }, false},
		{StyleNone, func(r download.Renderer) bool { _, ok := r.(download.NopRenderer); return ok }, false},
		{StyleTUI, nil, true},
	}

	for _, tt := range tests {
		r, err := NewRenderer(tt.style, &buf)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewRenderer(%q) should fail", tt.style)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewRenderer(%q) error = %v", tt.style, err)
			continue
		}
		if !tt.check(r) {
			t.Errorf("NewRenderer(%q) returned %T", tt.style, r)
		}
	}
}
