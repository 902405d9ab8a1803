package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
)

// Style selects a progress renderer
type Style string

const (
	StyleAuto Style = "auto"
	StyleLine Style = "line"
	StyleBar  Style = "bar"
	StyleJSON Style = "json"
	StyleTUI  Style = "tui"
	StyleNone Style = "none"
)

// Styles lists every accepted style name
var Styles = []Style{StyleAuto, StyleLine, StyleBar, StyleJSON, StyleTUI, StyleNone}

// ParseStyle validates a style name. An empty name means line, the classic output.
func ParseStyle(name string) (Style, error) {
	if name == "" {
		return StyleLine, nil
	}
	s := Style(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Styles {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown progress style %q", name)
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Resolve turns auto into line on a terminal and json elsewhere
func Resolve(style Style, w io.Writer) Style {
	if style != StyleAuto {
		return style
	}
	if IsTerminal(w) {
		return StyleLine
	}
	return StyleJSON
}

// NewRenderer builds the renderer for a resolved style.
// The tui style is provided by the tui package and is rejected here.
func NewRenderer(style Style, w io.Writer) (download.Renderer, error) {
	switch Resolve(style, w) {
	case StyleLine:
		return NewLineRenderer(WithOutput(w)), nil
	case StyleBar:
		return NewBarRenderer(w), nil
	case StyleJSON:
		return NewJSONRenderer(w), nil
	case StyleNone:
		return download.NopRenderer{}, nil
	default:
		return nil, fmt.Errorf("progress style %q has no line renderer", style)
	}
}
