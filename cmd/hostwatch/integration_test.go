// cmd/hostwatch/integration_test.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/hostwatch/internal/anomaly"
	"github.com/signalnine/hostwatch/internal/forest"
	"github.com/signalnine/hostwatch/internal/history"
	"github.com/signalnine/hostwatch/internal/protocol"
	"github.com/signalnine/hostwatch/internal/store"
)

type replaySource struct {
	snap protocol.Snapshot
}

func (s replaySource) Snapshot(context.Context) (protocol.Snapshot, error) { return s.snap, nil }

// writeConfig points every path of a fresh config into dir
func writeConfig(t *testing.T, dir string) {
	t.Helper()
	yaml := fmt.Sprintf(`
server_name: it-host
history:
  path: %[1]s/data/history.jsonl
  known_anomalies_path: %[1]s/data/known.jsonl
  events_path: %[1]s/data/events.jsonl
anomaly:
  model_path: %[1]s/models/anomaly.json
  num_trees: 50
logs:
  path: %[1]s/data/system.log
  model_path: %[1]s/models/log_classifier.json
  alerts_path: %[1]s/dashboard/alerts.json
store:
  path: %[1]s/hostwatch.db
`, dir)
	path := filepath.Join(dir, "hostwatch.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOSTWATCH_CONFIG", path)
	configPath = ""
}

func TestIntegrationTrainScoreClassify(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir)

	a, err := setup()
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}
	ctx := context.Background()

	// 1. Too little history: training refuses and writes nothing
	hist := history.NewStore(a.cfg.History.Path, nil)
	base := time.Date(2026, 2, 3, 12, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		hist.Append(protocol.Snapshot{Timestamp: base.Add(time.Duration(i) * time.Second), CPU: 10, Mem: 20, Disk: 30, Server: "it-host"})
	}
	err = a.trainAnomaly(ctx)
	if !errors.Is(err, anomaly.ErrInsufficientData) {
		t.Fatalf("trainAnomaly error = %v, want ErrInsufficientData", err)
	}
	if _, err := os.Stat(a.cfg.Anomaly.ModelPath); !os.IsNotExist(err) {
		t.Fatalf("model written despite insufficient data")
	}

	// 2. Enough history: the model is trained and persisted
	for i := 5; i < 25; i++ {
		j := float64(i%5) * 0.5
		hist.Append(protocol.Snapshot{Timestamp: base.Add(time.Duration(i) * time.Second), CPU: 10 + j, Mem: 20 + j, Disk: 30 + j, Server: "it-host"})
	}
	hist.Append(protocol.Snapshot{Timestamp: base.Add(time.Minute), CPU: 95, Mem: 95, Disk: 95, Server: "it-host"})
	if err := a.trainAnomaly(ctx); err != nil {
		t.Fatalf("trainAnomaly error: %v", err)
	}

	// 3. One scoring cycle on a spike records the event everywhere
	db, err := store.NewDB(a.cfg.Store.Path)
	if err != nil {
		t.Fatalf("NewDB error: %v", err)
	}
	defer db.Close()

	spike := protocol.Snapshot{Timestamp: base.Add(time.Hour), CPU: 98, Mem: 97, Disk: 96, Server: "it-host"}
	var status strings.Builder
	scorer := anomaly.NewScorer(anomaly.ScorerOptions{
		Source:   replaySource{snap: spike},
		History:  hist,
		Events:   history.NewStore(a.cfg.History.EventsPath, nil),
		Sinks:    []anomaly.EventSink{db},
		Registry: a.registry,
		Status:   &status,
	})
	if err := scorer.LoadModel(); err != nil {
		t.Fatalf("LoadModel error: %v", err)
	}
	res, err := scorer.Cycle(ctx)
	if err != nil {
		t.Fatalf("Cycle error: %v", err)
	}
	if res.Verdict != forest.Anomalous {
		t.Errorf("Verdict = %v, want anomalous (status %q)", res.Verdict, status.String())
	}
	stored, err := db.RecentAnomalies(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAnomalies error: %v", err)
	}
	if len(stored) != 1 || stored[0].Snapshot.Server != "it-host" {
		t.Errorf("stored anomalies = %+v, want one from it-host", stored)
	}

	// 4. Log classifier: trained on first use, alerts written and indexed
	if err := a.trainLogs(); err != nil {
		t.Fatalf("trainLogs error: %v", err)
	}
	c, err := a.classifier(false)
	if err != nil {
		t.Fatalf("classifier error: %v", err)
	}

	res2, err := c.GenerateAlerts(a.cfg.Logs.Path, a.cfg.Logs.AlertsPath)
	if err != nil {
		t.Fatalf("GenerateAlerts (missing log) error: %v", err)
	}
	if !res2.Skipped {
		t.Error("GenerateAlerts should skip a missing log")
	}

	logLines := strings.Join([]string{
		"Dec 11 06:27:59 host sshd[1234]: Failed password for invalid user root from 10.0.0.5 port 22 ssh2",
		"Dec 11 06:28:10 host sshd-session[2691]: Connection reset by 192.168.1.4 port 64187 [preauth]",
		"Dec 11 06:30:00 host systemd[1]: Started backup job daily-backup.service",
	}, "\n")
	if err := os.WriteFile(a.cfg.Logs.Path, []byte(logLines+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	res2, err = c.GenerateAlerts(a.cfg.Logs.Path, a.cfg.Logs.AlertsPath)
	if err != nil {
		t.Fatalf("GenerateAlerts error: %v", err)
	}
	a.index(ctx, res2.Lines)

	data, err := os.ReadFile(a.cfg.Logs.AlertsPath)
	if err != nil {
		t.Fatalf("read alerts: %v", err)
	}
	var summary protocol.AlertSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if summary.Security != 2 {
		t.Errorf("Security = %d, want 2", summary.Security)
	}

	counts, err := db.LabelCounts(ctx)
	if err != nil {
		t.Fatalf("LabelCounts error: %v", err)
	}
	if counts[protocol.LabelSecurity] != 2 || counts[protocol.LabelInfo] != 1 {
		t.Errorf("indexed counts = %v, want security=2 info=1", counts)
	}
}
