package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/Ashfaaq98/secboard/internal/ui"
	"github.com/Ashfaaq98/secboard/internal/view"
)

const (
	outputText = "text"
	outputJSON = "json"
)

const minExpandWidth = 12

// writeTable prints items as aligned columns. When width is known, expanding
// columns are truncated so rows fit on one line.
func writeTable[T any](w io.Writer, cols []ui.Column[T], items []T, width int) error {
	rows := make([][]string, len(items))
	fixed := make([]int, len(cols))
	for c, col := range cols {
		fixed[c] = utf8.RuneCountInString(col.Title)
	}
	for i, item := range items {
		row := make([]string, len(cols))
		for c, col := range cols {
			row[c] = oneLine(col.Value(item))
			if n := utf8.RuneCountInString(row[c]); n > fixed[c] {
				fixed[c] = n
			}
		}
		rows[i] = row
	}

	limit := expandLimit(cols, fixed, width)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	titles := make([]string, len(cols))
	for c, col := range cols {
		titles[c] = strings.ToUpper(col.Title)
	}
	fmt.Fprintln(tw, strings.Join(titles, "\t"))
	for _, row := range rows {
		for c, col := range cols {
			if col.Expand > 0 && limit > 0 {
				row[c] = truncate(row[c], limit)
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// expandLimit shares the width left by fixed columns among expanding ones.
// 0 means no limit.
func expandLimit[T any](cols []ui.Column[T], widths []int, width int) int {
	if width <= 0 {
		return 0
	}
	used, expanding := 0, 0
	for c, col := range cols {
		if col.Expand > 0 {
			expanding++
			continue
		}
		used += widths[c]
	}
	if expanding == 0 {
		return 0
	}
	used += 2 * (len(cols) - 1)
	limit := (width - used) / expanding
	if limit < minExpandWidth {
		limit = minExpandWidth
	}
	return limit
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// writeHistograms prints one line per field: "Status: Processing 2  Resolved 1".
func writeHistograms(w io.Writer, a view.Aggregates) {
	for _, h := range a.Histograms {
		parts := make([]string, 0, len(h.Buckets))
		for _, b := range h.Buckets {
			parts = append(parts, fmt.Sprintf("%s %d", b.Name, b.Count))
		}
		fmt.Fprintf(w, "  %s: %s\n", fieldTitle(h.Field), strings.Join(parts, "  "))
	}
}

func fieldTitle(f view.CategoryField) string {
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeView prints a derived view as text: range label, items, breakdown.
func writeView[T any](w io.Writer, v view.DerivedView[T], cols []ui.Column[T], filtered bool, width int) error {
	fmt.Fprintf(w, "%s  (page %d/%d)\n\n", v.RangeLabel, v.Page+1, v.PageCount)
	if len(v.Items) == 0 {
		if filtered {
			fmt.Fprintln(w, "No items match the current filters")
		} else {
			fmt.Fprintln(w, "No items")
		}
	} else if err := writeTable(w, cols, v.Items, width); err != nil {
		return err
	}
	if len(v.Breakdown.Histograms) > 0 {
		fmt.Fprintf(w, "\nBreakdown (%d matching):\n", v.TotalMatching)
		writeHistograms(w, v.Breakdown)
	}
	return nil
}
