// internal/logclass/report.go
package logclass

import (
	"fmt"
	"strings"

	"github.com/signalnine/hostwatch/internal/protocol"
)

// ClassMetrics are the per-label scores of a Report
type ClassMetrics struct {
	Label     protocol.Label
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a classification report over one labeled set
type Report struct {
	Classes  []ClassMetrics
	Accuracy float64
	Total    int
}

// NewReport compares predictions against the true labels
func NewReport(truth, predicted []protocol.Label) *Report {
	tp := make(map[protocol.Label]int)
	predCount := make(map[protocol.Label]int)
	support := make(map[protocol.Label]int)
	correct := 0

	for i := range truth {
		support[truth[i]]++
		predCount[predicted[i]]++
		if truth[i] == predicted[i] {
			tp[truth[i]]++
			correct++
		}
	}

	r := &Report{Total: len(truth)}
	if r.Total > 0 {
		r.Accuracy = float64(correct) / float64(r.Total)
	}
	for _, label := range protocol.Labels {
		if support[label] == 0 && predCount[label] == 0 {
			continue
		}
		m := ClassMetrics{Label: label, Support: support[label]}
		if predCount[label] > 0 {
			m.Precision = float64(tp[label]) / float64(predCount[label])
		}
		if support[label] > 0 {
			m.Recall = float64(tp[label]) / float64(support[label])
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)
	}
	return r
}

// String renders the report as a fixed-width table
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%-10s %9.2f %9.2f %9.2f %9d\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "%-10s %9s %9s %9.2f %9d\n", "accuracy", "", "", r.Accuracy, r.Total)
	return b.String()
}
