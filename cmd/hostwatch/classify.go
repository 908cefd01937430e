// cmd/hostwatch/classify.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/logclass"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/store"
)

// tableLines is how many classified lines classify prints
const tableLines = 10

var classifyRetrain bool

var classifyCmd = &cobra.Command{
	Use:   "classify [log-file]",
	Short: "Classify a syslog file into security, error, warning and info",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		path := a.cfg.Logs.Path
		if len(args) == 1 {
			path = args[0]
		}

		c, err := a.classifier(classifyRetrain || a.cfg.ForceRetrain)
		if err != nil {
			return err
		}

		lines, err := c.ClassifyFile(path)
		if errors.Is(err, logclass.ErrLogNotFound) {
			fmt.Printf("[CI INFO] %s not found, skipping log classification\n", path)
			return nil
		}
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}

		a.index(cmd.Context(), lines)

		logclass.WriteTable(os.Stdout, lines, tableLines)
		fmt.Println()
		logclass.Summarize(lines).Write(os.Stdout)
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Write security/error counts for the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.classifier(a.cfg.ForceRetrain)
		if err != nil {
			return err
		}

		res, err := c.GenerateAlerts(a.cfg.Logs.Path, a.cfg.Logs.AlertsPath)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Printf("[CI INFO] %s not found, wrote empty alert summary\n", a.cfg.Logs.Path)
		}
		a.index(cmd.Context(), res.Lines)

		fmt.Printf("Alerts written to %s: security=%d error=%d\n",
			a.cfg.Logs.AlertsPath, res.Summary.Security, res.Summary.Error)
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyRetrain, "retrain", false, "retrain the classifier before classifying")
}

// index copies classified lines into the event store when one is configured
func (a *app) index(ctx context.Context, lines []protocol.LogLine) {
	if a.cfg.Store.Path == "" || len(lines) == 0 {
		return
	}
	db, err := store.NewDB(a.cfg.Store.Path)
	if err != nil {
		a.logger.Warn("event store unavailable", zap.Error(err))
		return
	}
	defer db.Close()

	if err := db.InsertLogLines(ctx, lines); err != nil {
		a.logger.Warn("index classified lines", zap.Error(err))
	}
}
