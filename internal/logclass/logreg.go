// internal/logclass/logreg.go
package logclass

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalnine/hostwatch/internal/protocol"
)

// LogReg is a multinomial logistic regression over tf-idf vectors
type LogReg struct {
	Classes   []protocol.Label `json:"classes"`
	Coef      [][]float64      `json:"coef"` // [class][feature]
	Intercept []float64        `json:"intercept"`
}

// LogRegParams configures fitting
type LogRegParams struct {
	C            float64 // inverse L2 regularization strength
	MaxIter      int
	LearningRate float64
	Tolerance    float64 // stop once the largest gradient entry is below this
}

// DefaultLogRegParams mirrors a C=1, balanced-class fit
func DefaultLogRegParams() LogRegParams {
	return LogRegParams{C: 1, MaxIter: 2000, LearningRate: 0.5, Tolerance: 1e-6}
}

// FitLogReg fits weights by full-batch gradient descent on the
// class-weighted softmax cross entropy with an L2 penalty on Coef.
// Each class is weighted n/(k*count) so rare labels count as much as
// common ones.
func FitLogReg(x [][]float64, y []protocol.Label, p LogRegParams) (*LogReg, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("logreg: %d rows, %d labels", len(x), len(y))
	}
	if p.C <= 0 {
		return nil, errors.New("logreg: C must be positive")
	}
	if p.MaxIter <= 0 {
		p.MaxIter = DefaultLogRegParams().MaxIter
	}
	if p.LearningRate <= 0 {
		p.LearningRate = DefaultLogRegParams().LearningRate
	}

	for i, label := range y {
		if !label.Valid() {
			return nil, fmt.Errorf("logreg: row %d has unknown label %q", i, label)
		}
	}

	classes, index, counts := classIndex(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("logreg: need at least 2 classes, have %d", len(classes))
	}
	nFeatures := len(x[0])
	n := float64(len(x))
	k := len(classes)

	sampleWeight := make([]float64, len(y))
	for i, label := range y {
		sampleWeight[i] = n / (float64(k) * float64(counts[index[label]]))
	}

	m := &LogReg{
		Classes:   classes,
		Coef:      make([][]float64, k),
		Intercept: make([]float64, k),
	}
	gradW := make([][]float64, k)
	for c := range m.Coef {
		m.Coef[c] = make([]float64, nFeatures)
		gradW[c] = make([]float64, nFeatures)
	}
	gradB := make([]float64, k)
	probs := make([]float64, k)

	// Objective scaled by 1/n: mean weighted loss + ||W||^2 / (2Cn)
	lambda := 1 / (p.C * n)
	for iter := 0; iter < p.MaxIter; iter++ {
		for c := 0; c < k; c++ {
			for j := range gradW[c] {
				gradW[c][j] = lambda * m.Coef[c][j]
			}
			gradB[c] = 0
		}

		for i, row := range x {
			if len(row) != nFeatures {
				return nil, fmt.Errorf("logreg: row %d has %d features, want %d", i, len(row), nFeatures)
			}
			m.softmax(row, probs)
			target := index[y[i]]
			for c := 0; c < k; c++ {
				diff := probs[c]
				if c == target {
					diff--
				}
				diff *= sampleWeight[i] / n
				gradB[c] += diff
				for j, v := range row {
					if v != 0 {
						gradW[c][j] += diff * v
					}
				}
			}
		}

		var maxGrad float64
		for c := 0; c < k; c++ {
			m.Intercept[c] -= p.LearningRate * gradB[c]
			maxGrad = math.Max(maxGrad, math.Abs(gradB[c]))
			for j := range m.Coef[c] {
				m.Coef[c][j] -= p.LearningRate * gradW[c][j]
				maxGrad = math.Max(maxGrad, math.Abs(gradW[c][j]))
			}
		}
		if maxGrad < p.Tolerance {
			break
		}
	}
	return m, nil
}

// Predict returns the most probable class for x
func (m *LogReg) Predict(x []float64) (protocol.Label, error) {
	if len(m.Classes) == 0 {
		return "", errors.New("logreg: not fitted")
	}
	if len(x) != len(m.Coef[0]) {
		return "", fmt.Errorf("logreg: got %d features, want %d", len(x), len(m.Coef[0]))
	}
	best, bestScore := 0, math.Inf(-1)
	for c := range m.Classes {
		s := m.decision(c, x)
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	return m.Classes[best], nil
}

// Validate checks that the weight tables agree on shape
func (m *LogReg) Validate() error {
	k := len(m.Classes)
	if k < 2 || len(m.Coef) != k || len(m.Intercept) != k {
		return fmt.Errorf("logreg: %d classes, %d coef rows, %d intercepts", k, len(m.Coef), len(m.Intercept))
	}
	for c, row := range m.Coef {
		if len(row) != len(m.Coef[0]) {
			return fmt.Errorf("logreg: coef row %d has %d weights, want %d", c, len(row), len(m.Coef[0]))
		}
	}
	for _, label := range m.Classes {
		if !label.Valid() {
			return fmt.Errorf("logreg: unknown class %q", label)
		}
	}
	return nil
}

func (m *LogReg) decision(c int, x []float64) float64 {
	s := m.Intercept[c]
	for j, v := range x {
		if v != 0 {
			s += m.Coef[c][j] * v
		}
	}
	return s
}

func (m *LogReg) softmax(x, out []float64) {
	maxScore := math.Inf(-1)
	for c := range out {
		out[c] = m.decision(c, x)
		maxScore = math.Max(maxScore, out[c])
	}
	var sum float64
	for c := range out {
		out[c] = math.Exp(out[c] - maxScore)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

// classIndex orders the labels present in y by protocol.Labels
func classIndex(y []protocol.Label) ([]protocol.Label, map[protocol.Label]int, []int) {
	present := make(map[protocol.Label]int)
	for _, label := range y {
		present[label]++
	}
	var classes []protocol.Label
	index := make(map[protocol.Label]int)
	var counts []int
	for _, label := range protocol.Labels {
		if n, ok := present[label]; ok {
			index[label] = len(classes)
			classes = append(classes, label)
			counts = append(counts, n)
		}
	}
	return classes, index, counts
}
