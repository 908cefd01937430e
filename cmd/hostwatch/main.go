// cmd/hostwatch/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/config"
	"github.com/signalnine/hostwatch/internal/forest"
	"github.com/signalnine/hostwatch/internal/logclass"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/registry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "hostwatch",
	Short:         "Host utilization anomaly detection and syslog classification",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (default $HOSTWATCH_CONFIG)")
	rootCmd.AddCommand(watchCmd, trainCmd, classifyCmd, alertsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every subcommand needs
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *registry.Registry
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	reg := registry.New(map[registry.Kind]string{
		registry.KindAnomaly:       cfg.Anomaly.ModelPath,
		registry.KindLogClassifier: cfg.Logs.ModelPath,
	}, logger)
	return &app{cfg: cfg, logger: logger, registry: reg}, nil
}

func (a *app) close() {
	a.logger.Sync()
}

func (a *app) forestParams() forest.Params {
	return forest.Params{
		NumTrees:      a.cfg.Anomaly.NumTrees,
		MaxSamples:    a.cfg.Anomaly.MaxSamples,
		Contamination: a.cfg.Anomaly.Contamination,
		Seed:          a.cfg.Anomaly.Seed,
	}
}

func (a *app) normalizer() logclass.Normalizer {
	return logclass.Normalizer{RemoveNumbers: a.cfg.Logs.RemoveNumbers}
}

func (a *app) trainOptions() logclass.TrainOptions {
	opts := logclass.DefaultTrainOptions()
	opts.Normalizer = a.normalizer()
	opts.LogReg.MaxIter = a.cfg.Logs.MaxIter
	opts.Logger = a.logger
	return opts
}

// classifier loads the text model, training it when missing or forced
func (a *app) classifier(force bool) (*logclass.Classifier, error) {
	model, err := logclass.LoadOrTrain(a.registry, force, a.trainOptions())
	if err != nil {
		return nil, err
	}
	return logclass.NewClassifier(model, a.normalizer(), a.logger), nil
}
