// internal/anomaly/scorer.go
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/collector"
	"github.com/signalnine/hostwatch/internal/forest"
	"github.com/signalnine/hostwatch/internal/history"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/metrics"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/registry"
)

// ErrModelUnavailable is fatal to the scoring loop
var ErrModelUnavailable = errors.New("anomaly model unavailable")

// EventSink receives every anomaly beyond the JSONL event log
type EventSink interface {
	RecordAnomaly(ctx context.Context, ev protocol.AnomalyEvent) error
}

// ScorerOptions wires the real-time loop
type ScorerOptions struct {
	Source     collector.Source
	History    *history.Store
	Events     *history.Store
	Sinks      []EventSink
	Registry   *registry.Registry
	Interval   time.Duration
	WatchModel bool
	Status     io.Writer // operator status lines; nil discards
	Logger     *zap.Logger
}

// Scorer polls snapshots and scores them against the persisted model
type Scorer struct {
	opts   ScorerOptions
	logger *zap.Logger
	status io.Writer
	model  *forest.Forest
}

// Result is the outcome of one cycle
type Result struct {
	Snapshot protocol.Snapshot
	Score    float64
	Verdict  forest.Verdict
}

// NewScorer creates a scorer. Call LoadModel or Run before Cycle.
func NewScorer(opts ScorerOptions) *Scorer {
	status := opts.Status
	if status == nil {
		status = io.Discard
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Scorer{opts: opts, logger: logging.OrNop(opts.Logger), status: status}
}

// LoadModel reads the anomaly model from the registry. Any failure is
// reported as ErrModelUnavailable.
func (s *Scorer) LoadModel() error {
	var model forest.Forest
	if err := s.opts.Registry.Load(registry.KindAnomaly, &model); err != nil {
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if want := len(protocol.Snapshot{}.Features()); model.NumFeatures != want {
		return fmt.Errorf("%w: model has %d features, snapshots have %d", ErrModelUnavailable, model.NumFeatures, want)
	}
	s.model = &model
	s.logger.Info("loaded anomaly model",
		zap.Int("trees", len(model.Trees)),
		zap.Float64("threshold", model.Threshold),
		zap.Float64("contamination", model.Contamination))
	return nil
}

// SetModel installs an in-memory model
func (s *Scorer) SetModel(m *forest.Forest) { s.model = m }

// Run loads the model, scores immediately, then once per interval until ctx
// is cancelled. Only a missing model ends the loop early.
func (s *Scorer) Run(ctx context.Context) error {
	if err := s.LoadModel(); err != nil {
		return err
	}

	var reloads <-chan struct{}
	if s.opts.WatchModel {
		path, err := s.opts.Registry.Path(registry.KindAnomaly)
		if err != nil {
			return err
		}
		w, err := watchFile(path, s.logger)
		if err != nil {
			s.logger.Warn("model watch disabled", zap.Error(err))
		} else {
			defer w.Close()
			reloads = w.changes
		}
	}

	s.logger.Info("real-time anomaly detector started", zap.Duration("interval", s.opts.Interval))

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("anomaly detector shutting down")
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		case <-reloads:
			previous := s.model
			if err := s.LoadModel(); err != nil {
				s.model = previous
				s.logger.Warn("model reload failed, keeping previous model", zap.Error(err))
			}
		}
	}
}

func (s *Scorer) runCycle(ctx context.Context) {
	if _, err := s.Cycle(ctx); err != nil {
		metrics.ObserveCollectError()
		s.logger.Error("scoring cycle failed", zap.Error(err))
	}
}

// Cycle acquires one snapshot, appends it to history, scores it and, when
// anomalous, records it to the event log and sinks.
func (s *Scorer) Cycle(ctx context.Context) (Result, error) {
	if s.model == nil {
		return Result{}, ErrModelUnavailable
	}

	snap, err := s.opts.Source.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire snapshot: %w", err)
	}

	// History grows regardless of the verdict
	if err := s.opts.History.Append(snap); err != nil {
		metrics.ObserveCollectError()
		s.logger.Warn("history append failed", zap.Error(err))
	}

	features := snap.Features()
	res := Result{
		Snapshot: snap,
		Score:    s.model.Score(features),
		Verdict:  s.model.Predict(features),
	}
	anomalous := res.Verdict == forest.Anomalous
	metrics.ObserveSnapshot(res.Score, anomalous)

	if !anomalous {
		fmt.Fprintf(s.status, "[OK] %s  CPU=%.1f  MEM=%.1f  DISK=%.1f  score=%.3f\n",
			snap.TimestampKey(), snap.CPU, snap.Mem, snap.Disk, res.Score)
		return res, nil
	}

	fmt.Fprintf(s.status, "[ALERT] %s  CPU=%.1f  MEM=%.1f  DISK=%.1f  score=%.3f\n",
		snap.TimestampKey(), snap.CPU, snap.Mem, snap.Disk, res.Score)
	s.logger.Warn("anomalous snapshot",
		zap.String("timestamp", snap.TimestampKey()),
		zap.Float64("cpu", snap.CPU),
		zap.Float64("mem", snap.Mem),
		zap.Float64("disk", snap.Disk),
		zap.Float64("score", res.Score))

	if s.opts.Events != nil {
		if err := s.opts.Events.Append(snap); err != nil {
			metrics.ObserveCollectError()
			s.logger.Warn("anomaly event append failed", zap.Error(err))
		}
	}

	ev := protocol.AnomalyEvent{Snapshot: snap, Score: res.Score, Threshold: s.model.Threshold}
	for _, sink := range s.opts.Sinks {
		if err := sink.RecordAnomaly(ctx, ev); err != nil {
			s.logger.Warn("anomaly sink failed", zap.Error(err))
		}
	}
	return res, nil
}

// fileWatch signals when a file is created or replaced
type fileWatch struct {
	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

// watchFile watches the parent directory so atomic renames are seen
func watchFile(path string, logger *zap.Logger) (*fileWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fileWatch{
		watcher: w,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go fw.loop(filepath.Clean(path), logger)
	return fw, nil
}

func (fw *fileWatch) loop(path string, logger *zap.Logger) {
	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			select {
			case fw.changes <- struct{}{}:
			default:
				// A reload is already pending
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("model watch error", zap.Error(err))
		}
	}
}

// Close stops the watcher
func (fw *fileWatch) Close() error {
	close(fw.done)
	return fw.watcher.Close()
}
