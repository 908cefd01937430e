// Package forest implements an isolation forest: an ensemble of random
// partitioning trees in which outliers are isolated after fewer splits than
// points from the bulk of the distribution.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// eulerGamma is the Euler-Mascheroni constant used by the harmonic approximation
const eulerGamma = 0.5772156649

// Verdict is the binary decision for one feature vector
type Verdict int

const (
	Normal Verdict = iota
	Anomalous
)

func (v Verdict) String() string {
	if v == Anomalous {
		return "anomalous"
	}
	return "normal"
}

// Params controls how the ensemble is built
type Params struct {
	NumTrees      int
	MaxSamples    int // subsample cap per tree
	Contamination float64
	// Rand drives sampling and splits. Nil means a source seeded with Seed.
	Rand *rand.Rand
	Seed int64
}

// DefaultParams mirrors the trainer defaults
func DefaultParams() Params {
	return Params{NumTrees: 200, MaxSamples: 256, Contamination: 0.05, Seed: 42}
}

// Node is one partition. Leaves have nil children.
type Node struct {
	Feature int     `json:"f,omitempty"`
	Split   float64 `json:"s,omitempty"`
	Size    int     `json:"n,omitempty"`
	Left    *Node   `json:"l,omitempty"`
	Right   *Node   `json:"r,omitempty"`
}

func (n *Node) leaf() bool { return n.Left == nil }

// Forest is a fitted model. It is immutable after Fit and safe to share.
type Forest struct {
	Trees         []*Node `json:"trees"`
	SampleSize    int     `json:"sample_size"`
	NumFeatures   int     `json:"num_features"`
	Contamination float64 `json:"contamination"`
	Threshold     float64 `json:"threshold"`
	// TrainingFlagged is how many training rows scored above Threshold
	TrainingFlagged int `json:"training_flagged"`
	TrainingRows    int `json:"training_rows"`
}

// Fit builds the ensemble over rows and derives the decision threshold from
// the contamination fraction.
func Fit(rows [][]float64, p Params) (*Forest, error) {
	if len(rows) < 2 {
		return nil, errors.New("need at least 2 rows to fit")
	}
	if p.NumTrees < 1 {
		return nil, fmt.Errorf("num trees must be >= 1, got %d", p.NumTrees)
	}
	if p.Contamination <= 0 || p.Contamination >= 1 {
		return nil, fmt.Errorf("contamination must be in (0,1), got %v", p.Contamination)
	}

	numFeatures := len(rows[0])
	if numFeatures == 0 {
		return nil, errors.New("rows have no features")
	}
	for i, row := range rows {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), numFeatures)
		}
	}

	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(p.Seed))
	}

	sampleSize := len(rows)
	if p.MaxSamples > 1 && sampleSize > p.MaxSamples {
		sampleSize = p.MaxSamples
	}
	maxDepth := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	b := &builder{rng: rng, maxDepth: maxDepth}
	f := &Forest{
		Trees:         make([]*Node, 0, p.NumTrees),
		SampleSize:    sampleSize,
		NumFeatures:   numFeatures,
		Contamination: p.Contamination,
	}
	for i := 0; i < p.NumTrees; i++ {
		sample := b.sample(rows, sampleSize)
		f.Trees = append(f.Trees, b.build(sample, 0))
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = f.Score(row)
	}
	f.Threshold = percentile(scores, 1-p.Contamination)
	for _, s := range scores {
		if s > f.Threshold {
			f.TrainingFlagged++
		}
	}
	f.TrainingRows = len(rows)

	return f, nil
}

// Score returns 2^(-E[h(x)]/c(psi)): near 1 for strong outliers, well below
// 0.5 for points deep inside the distribution.
func (f *Forest) Score(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0.5
	}
	total := 0.0
	for _, tree := range f.Trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.Trees))

	c := averagePathLength(f.SampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// Predict compares Score against the fitted threshold
func (f *Forest) Predict(x []float64) Verdict {
	if f.Score(x) > f.Threshold {
		return Anomalous
	}
	return Normal
}

// Validate checks a decoded model is usable for scoring
func (f *Forest) Validate() error {
	if f == nil || len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	if f.NumFeatures < 1 {
		return errors.New("model has no features")
	}
	if f.SampleSize < 1 {
		return errors.New("model has no sample size")
	}
	for i, tree := range f.Trees {
		if err := validateTree(tree, f.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// validateTree checks every split references a known feature and every
// inner node has both children
func validateTree(root *Node, numFeatures int) error {
	if root == nil {
		return errors.New("nil root")
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Size < 0 {
			return fmt.Errorf("negative node size %d", n.Size)
		}
		if n.Left == nil && n.Right == nil {
			continue
		}
		if n.Left == nil || n.Right == nil {
			return errors.New("inner node missing a child")
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("split on feature %d, model has %d", n.Feature, numFeatures)
		}
		stack = append(stack, n.Left, n.Right)
	}
	return nil
}

type builder struct {
	rng      *rand.Rand
	maxDepth int
}

// sample draws size rows without replacement (partial Fisher-Yates)
func (b *builder) sample(rows [][]float64, size int) [][]float64 {
	shuffled := slices.Clone(rows)
	for i := 0; i < size; i++ {
		j := i + b.rng.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:size]
}

func (b *builder) build(data [][]float64, depth int) *Node {
	if len(data) <= 1 || depth >= b.maxDepth {
		return &Node{Size: len(data)}
	}

	// Only features with spread can separate this partition
	var candidates []int
	for feature := range data[0] {
		lo, hi := featureRange(data, feature)
		if hi > lo {
			candidates = append(candidates, feature)
		}
	}
	if len(candidates) == 0 {
		return &Node{Size: len(data)}
	}

	feature := candidates[b.rng.Intn(len(candidates))]
	lo, hi := featureRange(data, feature)
	split := lo + b.rng.Float64()*(hi-lo)
	if split <= lo {
		split = lo + (hi-lo)/2
	}

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &Node{
		Feature: feature,
		Split:   split,
		Size:    len(data),
		Left:    b.build(left, depth+1),
		Right:   b.build(right, depth+1),
	}
}

func featureRange(data [][]float64, feature int) (float64, float64) {
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		lo = min(lo, row[feature])
		hi = max(hi, row[feature])
	}
	return lo, hi
}

func pathLength(n *Node, x []float64, depth int) float64 {
	for !n.leaf() {
		if x[n.Feature] < n.Split {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	// Leaves holding several points were cut off by the depth limit; add
	// the expected remaining depth of an unbuilt subtree.
	return float64(depth) + averagePathLength(n.Size)
}

// averagePathLength is c(n), the mean unsuccessful-search depth of a BST with n nodes
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

// percentile uses linear interpolation between closest ranks, q in [0,1]
func percentile(values []float64, q float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
