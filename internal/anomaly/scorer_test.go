package anomaly

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/hostwatch/internal/forest"
	"github.com/signalnine/hostwatch/internal/history"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/registry"
)

type fakeSource struct {
	snaps []protocol.Snapshot
	err   error
	next  int
}

func (s *fakeSource) Snapshot(ctx context.Context) (protocol.Snapshot, error) {
	if s.err != nil {
		return protocol.Snapshot{}, s.err
	}
	snap := s.snaps[s.next%len(s.snaps)]
	s.next++
	return snap, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []protocol.AnomalyEvent
	err    error
}

func (r *recordingSink) RecordAnomaly(ctx context.Context, ev protocol.AnomalyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func trainedFixture(t *testing.T) fixture {
	t.Helper()
	f := newFixture(t)
	writeHistory(t, f.history, 25, snapAt(100, 95, 95, 95))
	_, _, err := f.trainer(TrainerOptions{}).Retrain(context.Background(), true)
	require.NoError(t, err)
	return f
}

func TestScorerModelUnavailable(t *testing.T) {
	f := newFixture(t)
	s := NewScorer(ScorerOptions{
		Source:   &fakeSource{snaps: []protocol.Snapshot{snapAt(0, 10, 30, 50)}},
		History:  f.history,
		Registry: f.registry,
	})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	_, err = s.Cycle(context.Background())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestScorerCycleNormal(t *testing.T) {
	f := trainedFixture(t)
	var status bytes.Buffer
	events := history.NewStore(filepath.Join(f.dir, "data", "events.jsonl"), nil)
	sink := &recordingSink{}

	s := NewScorer(ScorerOptions{
		Source:   &fakeSource{snaps: []protocol.Snapshot{snapAt(300, 10.4, 30.4, 50.4)}},
		History:  f.history,
		Events:   events,
		Sinks:    []EventSink{sink},
		Registry: f.registry,
		Status:   &status,
	})
	require.NoError(t, s.LoadModel())

	res, err := s.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forest.Normal, res.Verdict)
	assert.True(t, strings.HasPrefix(status.String(), "[OK] "), status.String())
	assert.Empty(t, sink.events)

	ev, err := events.Load()
	require.NoError(t, err)
	assert.True(t, ev.Missing)

	hist, err := f.history.Load()
	require.NoError(t, err)
	assert.Len(t, hist.Snapshots, 27, "history grows on every cycle")
}

func TestScorerCycleAnomalous(t *testing.T) {
	f := trainedFixture(t)
	var status bytes.Buffer
	events := history.NewStore(filepath.Join(f.dir, "data", "events.jsonl"), nil)
	failing := &recordingSink{err: errors.New("broker down")}
	sink := &recordingSink{}

	spike := snapAt(400, 99, 98, 97)
	s := NewScorer(ScorerOptions{
		Source:   &fakeSource{snaps: []protocol.Snapshot{spike}},
		History:  f.history,
		Events:   events,
		Sinks:    []EventSink{failing, sink},
		Registry: f.registry,
		Status:   &status,
	})
	require.NoError(t, s.LoadModel())

	res, err := s.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forest.Anomalous, res.Verdict)
	assert.Contains(t, status.String(), "[ALERT] "+spike.TimestampKey())
	assert.Contains(t, status.String(), "CPU=99.0")

	ev, err := events.Load()
	require.NoError(t, err)
	require.Len(t, ev.Snapshots, 1)
	assert.Equal(t, spike.TimestampKey(), ev.Snapshots[0].TimestampKey())

	// A failing sink does not stop later sinks
	require.Len(t, sink.events, 1)
	assert.Greater(t, sink.events[0].Score, sink.events[0].Threshold)

	hist, err := f.history.Load()
	require.NoError(t, err)
	assert.Len(t, hist.Snapshots, 27)
}

func TestScorerCycleSourceError(t *testing.T) {
	f := trainedFixture(t)
	s := NewScorer(ScorerOptions{
		Source:   &fakeSource{err: errors.New("counters unavailable")},
		History:  f.history,
		Registry: f.registry,
	})
	require.NoError(t, s.LoadModel())

	_, err := s.Cycle(context.Background())
	assert.ErrorContains(t, err, "counters unavailable")

	hist, err := f.history.Load()
	require.NoError(t, err)
	assert.Len(t, hist.Snapshots, 26)
}

func TestScorerRunStopsOnCancel(t *testing.T) {
	f := trainedFixture(t)
	var status bytes.Buffer
	src := &fakeSource{snaps: []protocol.Snapshot{snapAt(500, 10, 30, 50)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScorer(ScorerOptions{
		Source:   src,
		History:  f.history,
		Registry: f.registry,
		Status:   &status,
	})
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, src.next, "one immediate cycle before the loop")
}

func TestScorerSetModel(t *testing.T) {
	f := newFixture(t)
	rows := make([][]float64, 0, 30)
	for i := 0; i < 30; i++ {
		j := float64(i%5) * 0.4
		rows = append(rows, []float64{10 + j, 30 + j, 50 + j})
	}
	rows = append(rows, []float64{95, 95, 95})
	params := forest.DefaultParams()
	params.NumTrees = 50
	model, err := forest.Fit(rows, params)
	require.NoError(t, err)

	var status bytes.Buffer
	s := NewScorer(ScorerOptions{
		Source:  &fakeSource{snaps: []protocol.Snapshot{snapAt(0, 99, 99, 99)}},
		History: f.history,
		Status:  &status,
	})
	s.SetModel(model)

	res, err := s.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forest.Anomalous, res.Verdict)
	assert.True(t, strings.HasPrefix(status.String(), "[ALERT] "), status.String())
	assert.NoFileExists(t, f.modelPath)
}

func TestScorerRejectsForeignModel(t *testing.T) {
	f := newFixture(t)
	params := forest.DefaultParams()
	params.NumTrees = 10
	twoFeature, err := forest.Fit([][]float64{{1, 2}, {2, 3}, {3, 4}, {4, 5}}, params)
	require.NoError(t, err)
	require.NoError(t, f.registry.Save(registry.KindAnomaly, twoFeature))

	s := NewScorer(ScorerOptions{History: f.history, Registry: f.registry})
	err = s.LoadModel()
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorContains(t, err, "2 features")

	// A split on a feature the model does not have fails validation on load
	require.NoError(t, os.WriteFile(f.modelPath,
		[]byte(`{"trees":[{"f":5,"s":1,"n":2,"l":{"n":1},"r":{"n":1}}],"sample_size":2,"num_features":3,"contamination":0.05,"threshold":0.5}`),
		0o644))
	err = s.LoadModel()
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorContains(t, err, "feature 5")
}
