// internal/logclass/train.go
package logclass

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/registry"
)

// TrainOptions configures classifier fitting
type TrainOptions struct {
	Normalizer Normalizer
	Vectorizer VectorizerParams
	LogReg     LogRegParams
	Logger     *zap.Logger
}

// DefaultTrainOptions matches the shipped classifier
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Vectorizer: DefaultVectorizerParams(),
		LogReg:     DefaultLogRegParams(),
	}
}

// LabelCounts tallies samples per label in protocol.Labels order
func LabelCounts(samples []Sample) map[protocol.Label]int {
	counts := make(map[protocol.Label]int, len(protocol.Labels))
	for _, s := range samples {
		counts[s.Label]++
	}
	return counts
}

// Train fits a text model on samples and reports how well it classifies
// its own training set
func Train(samples []Sample, opts TrainOptions) (*TextModel, *Report, error) {
	if len(samples) == 0 {
		return nil, nil, errors.New("no training samples")
	}
	logger := logging.OrNop(opts.Logger)

	counts := LabelCounts(samples)
	fields := make([]zap.Field, 0, len(protocol.Labels))
	for _, label := range protocol.Labels {
		fields = append(fields, zap.Int(string(label), counts[label]))
	}
	logger.Info("training label counts", fields...)

	docs := make([]string, len(samples))
	labels := make([]protocol.Label, len(samples))
	for i, s := range samples {
		docs[i] = opts.Normalizer.Normalize(s.Text)
		labels[i] = s.Label
	}

	vec, err := FitVectorizer(docs, opts.Vectorizer)
	if err != nil {
		return nil, nil, fmt.Errorf("fit vectorizer: %w", err)
	}

	x := make([][]float64, len(docs))
	for i, doc := range docs {
		x[i] = vec.Transform(doc)
	}

	clf, err := FitLogReg(x, labels, opts.LogReg)
	if err != nil {
		return nil, nil, fmt.Errorf("fit classifier: %w", err)
	}

	model := &TextModel{Vectorizer: vec, Classifier: clf}

	predicted := make([]protocol.Label, len(docs))
	for i, doc := range docs {
		if predicted[i], err = model.Predict(doc); err != nil {
			return nil, nil, fmt.Errorf("self-check: %w", err)
		}
	}
	report := NewReport(labels, predicted)
	logger.Info("trained log classifier",
		zap.Int("samples", len(samples)),
		zap.Int("terms", len(vec.IDF)),
		zap.Float64("training_accuracy", report.Accuracy))

	return model, report, nil
}

// LoadOrTrain returns the persisted classifier, fitting it on the default
// corpus when it is missing or force is set
func LoadOrTrain(reg *registry.Registry, force bool, opts TrainOptions) (*TextModel, error) {
	return registry.LoadOrTrain(reg, registry.KindLogClassifier, force, func() (*TextModel, error) {
		model, report, err := Train(DefaultCorpus(), opts)
		if err != nil {
			return nil, err
		}
		logging.OrNop(opts.Logger).Info("training sample classification report (self-eval)\n" + report.String())
		return model, nil
	})
}
