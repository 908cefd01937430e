// internal/logclass/summary.go
package logclass

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/signalnine/hostwatch/internal/protocol"
)

// Summary aggregates a classification run
type Summary struct {
	Counts          map[protocol.Label]int `json:"counts"`
	Total           int                    `json:"total"`
	SecurityExample string                 `json:"security_example,omitempty"`
	ErrorExample    string                 `json:"error_example,omitempty"`
}

// Summarize counts labels and keeps the first security and error line
func Summarize(lines []protocol.LogLine) Summary {
	s := Summary{Counts: make(map[protocol.Label]int), Total: len(lines)}
	for _, l := range lines {
		s.Counts[l.Label]++
		switch {
		case l.Label == protocol.LabelSecurity && s.SecurityExample == "":
			s.SecurityExample = l.Raw
		case l.Label == protocol.LabelError && s.ErrorExample == "":
			s.ErrorExample = l.Raw
		}
	}
	return s
}

// Alerts reduces the summary to the dashboard counters
func (s Summary) Alerts() protocol.AlertSummary {
	return protocol.AlertSummary{
		Security: s.Counts[protocol.LabelSecurity],
		Error:    s.Counts[protocol.LabelError],
	}
}

// Write prints label counts, most frequent first, followed by hints
func (s Summary) Write(w io.Writer) {
	fmt.Fprintln(w, "=== Log Classification Summary ===")
	for _, label := range s.ordered() {
		fmt.Fprintf(w, "%-8s: %d event(s)\n", strings.ToUpper(string(label)), s.Counts[label])
	}
	fmt.Fprintln(w, "=================================")

	if n := s.Counts[protocol.LabelSecurity]; n > 0 {
		fmt.Fprintf(w, "\n[SECURITY HINT]\n- Detected %d security-related event(s).\n  Example:\n   %s\n", n, s.SecurityExample)
	}
	if n := s.Counts[protocol.LabelError]; n > 0 {
		fmt.Fprintf(w, "\n[ERROR HINT]\n- Detected %d error-related event(s).\n  Example:\n   %s\n", n, s.ErrorExample)
	}
}

// ordered sorts present labels by descending count, ties in protocol.Labels order
func (s Summary) ordered() []protocol.Label {
	var out []protocol.Label
	for _, label := range protocol.Labels {
		if s.Counts[label] > 0 {
			out = append(out, label)
		}
	}
	slices.SortStableFunc(out, func(a, b protocol.Label) int {
		return cmp.Compare(s.Counts[b], s.Counts[a])
	})
	return out
}

// WriteTable prints up to limit classified lines
func WriteTable(w io.Writer, lines []protocol.LogLine, limit int) {
	if limit > len(lines) || limit <= 0 {
		limit = len(lines)
	}
	fmt.Fprintf(w, "=== Classified Logs (first %d) ===\n", limit)
	fmt.Fprintf(w, "%-8s  %-6s  %s\n", "LABEL", "TIER", "CLEANED")
	for _, l := range lines[:limit] {
		fmt.Fprintf(w, "%-8s  %-6s  %s\n", l.Label, l.Tier, l.Cleaned)
	}
}
