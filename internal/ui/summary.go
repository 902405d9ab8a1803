package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kilimcininkoroglu/stickermirror/internal/mirror"
)

// DefaultFailureRows caps the failure table
const DefaultFailureRows = 10

// Summary renders the end-of-run report as tables. At most maxFailures
// failed tasks are listed; the rest are counted.
func Summary(r *mirror.Report, maxFailures int) string {
	if r == nil {
		return ""
	}

	s := r.Stats
	rows := [][]string{
		{"Run", r.RunID},
		{"Manifests", manifestCell(r)},
		{"Tasks", strconv.Itoa(s.Total)},
		{"Fetched", strconv.Itoa(s.Fetched)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Downloaded", FormatBytes(s.Bytes)},
	}
	if a := r.Archive; a != nil {
		rows = append(rows,
			[]string{"Archive", a.Path},
			[]string{"Archive size", FormatBytes(a.Bytes)},
			[]string{"Archive entries", fmt.Sprintf("%d files, %d dirs", a.Files, a.Dirs)},
			[]string{"BLAKE3", a.Digest},
		)
	}
	rows = append(rows, []string{"Elapsed", FormatDuration(r.Elapsed)})

	var b strings.Builder
	b.WriteString(renderTable([]string{"Item", "Value"}, rows, []text.Align{text.AlignLeft, text.AlignRight}))
	b.WriteString("\n")

	if len(r.Failures) == 0 {
		return b.String()
	}

	if maxFailures <= 0 {
		maxFailures = DefaultFailureRows
	}
	shown := r.Failures[:min(len(r.Failures), maxFailures)]
	failRows := make([][]string, 0, len(shown))
	for i, res := range shown {
		reason := ""
		if res.Err != nil {
			reason = res.Err.Error()
		}
		failRows = append(failRows, []string{strconv.Itoa(i + 1), res.Task.URL, reason})
	}

	b.WriteString(renderTable([]string{"#", "URL", "Error"}, failRows, []text.Align{text.AlignRight}))
	b.WriteString("\n")
	if rest := len(r.Failures) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "... and %d more failed\n", rest)
	}

	return b.String()
}

func manifestCell(r *mirror.Report) string {
	if len(r.ManifestErrors) == 0 {
		return strconv.Itoa(r.Manifests)
	}
	return fmt.Sprintf("%d (%d skipped)", r.Manifests, len(r.ManifestErrors))
}

func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
