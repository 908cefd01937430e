// internal/logclass/alerts.go
package logclass

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/registry"
)

// AlertResult is the outcome of GenerateAlerts
type AlertResult struct {
	Summary protocol.AlertSummary
	Lines   []protocol.LogLine
	Skipped bool // the log file was absent
}

// GenerateAlerts classifies the log at logPath and overwrites alertsPath
// with the security and error counts. A missing log is not an error: the
// counters are written as zero and the result is marked skipped.
func (c *Classifier) GenerateAlerts(logPath, alertsPath string) (AlertResult, error) {
	var res AlertResult

	lines, err := c.ClassifyFile(logPath)
	switch {
	case errors.Is(err, ErrLogNotFound):
		c.logger.Info("log file not found, skipping log classification", zap.String("path", logPath))
		res.Skipped = true
	case err != nil:
		return res, err
	default:
		res.Lines = lines
		res.Summary = Summarize(lines).Alerts()
	}

	data, err := json.MarshalIndent(res.Summary, "", "  ")
	if err != nil {
		return res, fmt.Errorf("encode alerts: %w", err)
	}
	if err := registry.WriteFileAtomic(alertsPath, append(data, '\n')); err != nil {
		return res, fmt.Errorf("write alerts: %w", err)
	}

	c.logger.Info("alerts written",
		zap.String("path", alertsPath),
		zap.Int("security", res.Summary.Security),
		zap.Int("error", res.Summary.Error))
	return res, nil
}
