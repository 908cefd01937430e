// internal/anomaly/trainer.go
package anomaly

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/forest"
	"github.com/signalnine/hostwatch/internal/history"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/metrics"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/registry"
)

// DefaultMinRows is the smallest training set the trainer accepts
const DefaultMinRows = 20

// ErrInsufficientData means too few rows survived filtering to train on
var ErrInsufficientData = errors.New("insufficient data")

// TrainerOptions configures the offline training pipeline
type TrainerOptions struct {
	History            *history.Store
	KnownAnomaliesPath string
	SkipKnown          bool
	RecentLimit        int
	MinRows            int
	Params             forest.Params
	Registry           *registry.Registry
	Logger             *zap.Logger
}

// Trainer turns snapshot history into a persisted anomaly model
type Trainer struct {
	opts   TrainerOptions
	logger *zap.Logger
}

// PrepareStats reports what each hygiene step removed
type PrepareStats struct {
	Loaded     int
	Malformed  int
	Duplicates int
	Windowed   int
	Excluded   int
	Used       int
}

// NewTrainer creates a trainer
func NewTrainer(opts TrainerOptions) *Trainer {
	if opts.MinRows <= 0 {
		opts.MinRows = DefaultMinRows
	}
	return &Trainer{opts: opts, logger: logging.OrNop(opts.Logger)}
}

// Prepare loads history and applies dedupe, the recency window and
// known-anomaly exclusion, in that order.
func (t *Trainer) Prepare() ([]protocol.Snapshot, PrepareStats, error) {
	var stats PrepareStats

	t.logger.Info("loading history", zap.String("path", t.opts.History.Path()))
	res, err := t.opts.History.Load()
	if err != nil {
		return nil, stats, err
	}
	stats.Loaded = len(res.Snapshots)
	stats.Malformed = res.Skipped

	records := history.Dedupe(res.Snapshots)
	stats.Duplicates = stats.Loaded - len(records)

	records, stats.Windowed = history.ApplyRecencyWindow(records, t.opts.RecentLimit)
	if stats.Windowed > 0 {
		t.logger.Info("using only the most recent snapshots",
			zap.Int("limit", t.opts.RecentLimit), zap.Int("dropped", stats.Windowed))
	}

	if t.opts.SkipKnown && t.opts.KnownAnomaliesPath != "" {
		known, bad, err := history.LoadKnown(t.opts.KnownAnomaliesPath)
		if err != nil {
			return nil, stats, err
		}
		if bad > 0 {
			t.logger.Warn("skipped invalid known-anomaly lines", zap.Int("skipped", bad))
		}
		records, stats.Excluded = history.ExcludeKnown(records, known)
		if stats.Excluded > 0 {
			t.logger.Info("skipped snapshots marked as known anomalies", zap.Int("excluded", stats.Excluded))
		}
	}

	stats.Used = len(records)
	return records, stats, nil
}

// Fit trains a forest over a feature matrix, refusing matrices below MinRows
func (t *Trainer) Fit(rows [][]float64) (*forest.Forest, error) {
	if len(rows) < t.opts.MinRows {
		return nil, fmt.Errorf("%w: have %d rows, need at least %d", ErrInsufficientData, len(rows), t.opts.MinRows)
	}

	model, err := forest.Fit(rows, t.opts.Params)
	if err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}

	metrics.ObserveTraining(len(rows))
	t.logger.Info("anomalies detected in training data",
		zap.Int("flagged", model.TrainingFlagged),
		zap.Int("rows", model.TrainingRows),
		zap.Float64("threshold", model.Threshold))
	return model, nil
}

// Train runs Prepare then Fit without persisting anything
func (t *Trainer) Train(ctx context.Context) (*forest.Forest, PrepareStats, error) {
	records, stats, err := t.Prepare()
	if err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	t.logger.Info("total snapshots used for training", zap.Int("rows", stats.Used))

	rows := make([][]float64, len(records))
	for i, r := range records {
		rows[i] = r.Features()
	}

	model, err := t.Fit(rows)
	return model, stats, err
}

// Retrain trains from history and replaces the persisted model. With force
// unset an existing model is loaded instead and the stats are zero. Nothing
// is written on failure.
func (t *Trainer) Retrain(ctx context.Context, force bool) (*forest.Forest, PrepareStats, error) {
	var stats PrepareStats
	model, err := registry.LoadOrTrain(t.opts.Registry, registry.KindAnomaly, force, func() (*forest.Forest, error) {
		model, s, err := t.Train(ctx)
		stats = s
		return model, err
	})
	return model, stats, err
}
