// cmd/hostwatch/watch.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signalnine/hostwatch/internal/anomaly"
	"github.com/signalnine/hostwatch/internal/collector"
	"github.com/signalnine/hostwatch/internal/history"
	"github.com/signalnine/hostwatch/internal/logclass"
	"github.com/signalnine/hostwatch/internal/metrics"
	"github.com/signalnine/hostwatch/internal/notify"
	"github.com/signalnine/hostwatch/internal/server"
	"github.com/signalnine/hostwatch/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Score live snapshots against the anomaly model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.watch(ctx)
	},
}

func (a *app) watch(ctx context.Context) error {
	cfg := a.cfg

	if cfg.ForceRetrain {
		if _, _, err := a.trainer().Retrain(ctx, true); err != nil {
			return fmt.Errorf("force retrain anomaly model: %w", err)
		}
	}

	promReg := prometheus.NewRegistry()
	if err := metrics.Register(promReg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var sinks []anomaly.EventSink
	var lines server.LineStore
	var anomalies server.AnomalyStore

	if cfg.Store.Path != "" {
		db, err := store.NewDB(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open event store: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, db)
		lines = db
		anomalies = db
	}

	if cfg.MQTT.Broker != "" {
		pub, err := notify.Dial(cfg.MQTT, a.logger)
		if err != nil {
			// Alert fan-out is optional; the JSONL event log still records everything
			a.logger.Warn("mqtt disabled", zap.Error(err))
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	scorer := anomaly.NewScorer(anomaly.ScorerOptions{
		Source:     collector.NewHost(cfg.ServerName),
		History:    history.NewStore(cfg.History.Path, a.logger),
		Events:     history.NewStore(cfg.History.EventsPath, a.logger),
		Sinks:      sinks,
		Registry:   a.registry,
		Interval:   cfg.Anomaly.PollInterval,
		WatchModel: cfg.Anomaly.WatchModel,
		Status:     os.Stdout,
		Logger:     a.logger,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTP.ListenAddr != "" {
		c, err := a.classifier(false)
		if err != nil {
			a.logger.Warn("log classifier unavailable, /classify falls back to info", zap.Error(err))
			c = logclass.NewClassifier(nil, a.normalizer(), a.logger)
		}
		srv := server.New(cfg.HTTP, c, lines, anomalies, promReg, a.logger)
		g.Go(func() error { return srv.Run(ctx) })
	}

	g.Go(func() error {
		err := scorer.Run(ctx)
		if errors.Is(err, anomaly.ErrModelUnavailable) {
			return fmt.Errorf("%w (run `hostwatch train --model anomaly` first)", err)
		}
		return err
	})

	return g.Wait()
}
