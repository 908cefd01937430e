// cmd/hostwatch/train.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/hostwatch/internal/anomaly"
	"github.com/signalnine/hostwatch/internal/history"
	"github.com/signalnine/hostwatch/internal/logclass"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/registry"
)

var trainModel string

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain and persist models",
	Long: `Retrain the anomaly model from snapshot history and/or the log classifier
from the built-in corpus. Existing models are always replaced; nothing is
written when training fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		switch trainModel {
		case "anomaly":
			return a.trainAnomaly(cmd.Context())
		case "logs":
			return a.trainLogs()
		case "all":
			if err := a.trainAnomaly(cmd.Context()); err != nil {
				return err
			}
			return a.trainLogs()
		default:
			return fmt.Errorf("unknown model %q (want anomaly, logs or all)", trainModel)
		}
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainModel, "model", "all", "which model to train: anomaly, logs or all")
}

func (a *app) trainer() *anomaly.Trainer {
	cfg := a.cfg
	return anomaly.NewTrainer(anomaly.TrainerOptions{
		History:            history.NewStore(cfg.History.Path, a.logger),
		KnownAnomaliesPath: cfg.History.KnownAnomaliesPath,
		SkipKnown:          cfg.History.SkipKnown,
		RecentLimit:        cfg.History.RecentLimit,
		MinRows:            cfg.Anomaly.MinRows,
		Params:             a.forestParams(),
		Registry:           a.registry,
		Logger:             a.logger,
	})
}

func (a *app) trainAnomaly(ctx context.Context) error {
	model, stats, err := a.trainer().Retrain(ctx, true)
	if err != nil {
		return fmt.Errorf("train anomaly model: %w", err)
	}

	fmt.Printf("Loaded %d snapshots (%d malformed skipped, %d duplicates, %d outside window, %d known anomalies)\n",
		stats.Loaded, stats.Malformed, stats.Duplicates, stats.Windowed, stats.Excluded)
	fmt.Printf("Anomalies detected in training data: %d / %d\n", model.TrainingFlagged, model.TrainingRows)
	fmt.Printf("Saved anomaly model to %s\n", a.cfg.Anomaly.ModelPath)
	return nil
}

func (a *app) trainLogs() error {
	samples := logclass.DefaultCorpus()
	counts := logclass.LabelCounts(samples)
	fmt.Print("Training label counts:")
	for _, label := range protocol.Labels {
		fmt.Printf(" %s=%d", label, counts[label])
	}
	fmt.Println()

	model, report, err := logclass.Train(samples, a.trainOptions())
	if err != nil {
		return fmt.Errorf("train log classifier: %w", err)
	}
	if err := a.registry.Save(registry.KindLogClassifier, model); err != nil {
		return err
	}

	fmt.Println("\n=== Training sample classification report (self-eval) ===")
	fmt.Fprint(os.Stdout, report.String())
	fmt.Printf("Saved log classifier to %s\n", a.cfg.Logs.ModelPath)
	return nil
}
