package forest

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusterWithOutlier returns n points jittered around (10,20,30) followed by (95,95,95)
func clusterWithOutlier(n int) [][]float64 {
	rng := rand.New(rand.NewSource(7))
	rows := make([][]float64, 0, n+1)
	for i := 0; i < n; i++ {
		rows = append(rows, []float64{
			10 + rng.Float64()*2 - 1,
			20 + rng.Float64()*2 - 1,
			30 + rng.Float64()*2 - 1,
		})
	}
	return append(rows, []float64{95, 95, 95})
}

func TestFitFlagsOutlier(t *testing.T) {
	rows := clusterWithOutlier(25)

	f, err := Fit(rows, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, Anomalous, f.Predict([]float64{95, 95, 95}))

	normal := 0
	for _, row := range rows[:25] {
		if f.Predict(row) == Normal {
			normal++
		}
	}
	assert.Greater(t, normal, 20, "most clustered points should be normal")
	assert.Equal(t, 26, f.TrainingRows)
	assert.GreaterOrEqual(t, f.TrainingFlagged, 1)
	assert.LessOrEqual(t, f.TrainingFlagged, 2)
}

func TestScoreOrdering(t *testing.T) {
	f, err := Fit(clusterWithOutlier(40), DefaultParams())
	require.NoError(t, err)

	inlier := f.Score([]float64{10, 20, 30})
	outlier := f.Score([]float64{95, 95, 95})
	far := f.Score([]float64{0, 100, 0})

	assert.Greater(t, outlier, inlier)
	assert.Greater(t, far, inlier)
	assert.Greater(t, outlier, 0.6)
	for _, s := range []float64{inlier, outlier, far} {
		assert.True(t, s > 0 && s <= 1, "score %v out of range", s)
	}
}

func TestFitDeterministicWithSeed(t *testing.T) {
	rows := clusterWithOutlier(30)
	a, err := Fit(rows, DefaultParams())
	require.NoError(t, err)
	b, err := Fit(rows, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, a.Threshold, b.Threshold)
	point := []float64{50, 50, 50}
	assert.Equal(t, a.Score(point), b.Score(point))

	p := DefaultParams()
	p.Rand = rand.New(rand.NewSource(99))
	c, err := Fit(rows, p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Score(point), c.Score(point))
}

func TestPredictIsStable(t *testing.T) {
	f, err := Fit(clusterWithOutlier(25), DefaultParams())
	require.NoError(t, err)

	x := []float64{40, 40, 40}
	first := f.Score(x)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, f.Score(x))
	}
}

func TestJSONRoundTrip(t *testing.T) {
	f, err := Fit(clusterWithOutlier(25), DefaultParams())
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded Forest
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())

	for _, x := range [][]float64{{10, 20, 30}, {95, 95, 95}, {60, 10, 80}} {
		assert.Equal(t, f.Score(x), decoded.Score(x))
		assert.Equal(t, f.Predict(x), decoded.Predict(x))
	}
	assert.Equal(t, f.Threshold, decoded.Threshold)
}

func TestValidateRejectsCorruptTrees(t *testing.T) {
	leaf := func() *Node { return &Node{Size: 1} }
	tests := []struct {
		name string
		tree *Node
	}{
		{"nil root", nil},
		{"feature out of range", &Node{Feature: 7, Split: 1, Size: 2, Left: leaf(), Right: leaf()}},
		{"negative feature", &Node{Feature: -1, Split: 1, Size: 2, Left: leaf(), Right: leaf()}},
		{"missing right child", &Node{Feature: 0, Split: 1, Size: 2, Left: leaf()}},
		{"deep bad split", &Node{Feature: 0, Split: 1, Size: 3, Left: leaf(), Right: &Node{
			Feature: 3, Split: 2, Size: 2, Left: leaf(), Right: leaf(),
		}}},
		{"negative size", &Node{Size: -4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Forest{Trees: []*Node{leaf(), tt.tree}, SampleSize: 16, NumFeatures: 3}
			err := f.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "tree 1")
		})
	}

	ok := &Forest{Trees: []*Node{{Feature: 2, Split: 5, Size: 2, Left: leaf(), Right: leaf()}}, SampleSize: 2, NumFeatures: 3}
	assert.NoError(t, ok.Validate())
}

func TestFitConstantData(t *testing.T) {
	rows := make([][]float64, 30)
	for i := range rows {
		rows[i] = []float64{5, 5, 5}
	}
	f, err := Fit(rows, DefaultParams())
	require.NoError(t, err)

	// Every tree is a single leaf, so every point scores the same
	assert.Equal(t, f.Score([]float64{5, 5, 5}), f.Score([]float64{90, 90, 90}))
	assert.Equal(t, Normal, f.Predict([]float64{5, 5, 5}))
}

func TestFitRejectsBadInput(t *testing.T) {
	_, err := Fit([][]float64{{1, 2, 3}}, DefaultParams())
	assert.Error(t, err)

	_, err = Fit([][]float64{{1, 2, 3}, {1, 2}}, DefaultParams())
	assert.Error(t, err)

	p := DefaultParams()
	p.Contamination = 0
	_, err = Fit(clusterWithOutlier(25), p)
	assert.Error(t, err)
}

func TestSubsampleCap(t *testing.T) {
	rows := clusterWithOutlier(300)
	p := DefaultParams()
	p.NumTrees = 10
	f, err := Fit(rows, p)
	require.NoError(t, err)
	assert.Equal(t, 256, f.SampleSize)
	for _, tree := range f.Trees {
		assert.Equal(t, 256, tree.Size)
	}
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	want := 2*(math.Log(255)+eulerGamma) - 2*255.0/256.0
	assert.InDelta(t, want, averagePathLength(256), 1e-12)
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2, 5}
	assert.Equal(t, 3.0, percentile(values, 0.5))
	assert.Equal(t, 5.0, percentile(values, 1))
	assert.InDelta(t, 4.8, percentile(values, 0.95), 1e-12)
}
