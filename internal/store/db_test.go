// internal/store/db_test.go
package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/hostwatch/internal/protocol"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func event(minute int, cpu float64) protocol.AnomalyEvent {
	return protocol.AnomalyEvent{
		Snapshot: protocol.Snapshot{
			Timestamp: time.Date(2026, 2, 3, 12, minute, 0, 0, time.Local),
			CPU:       cpu,
			Mem:       41.5,
			Disk:      63,
			Server:    "test-host",
		},
		Score:     0.71,
		Threshold: 0.62,
	}
}

func TestDBInsertAndQueryAnomalies(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertAnomaly(ctx, event(30, 97.5))
	if err != nil {
		t.Fatalf("InsertAnomaly error: %v", err)
	}
	if id == "" {
		t.Error("InsertAnomaly returned empty id")
	}
	if err := db.RecordAnomaly(ctx, event(31, 99)); err != nil {
		t.Fatalf("RecordAnomaly error: %v", err)
	}

	got, err := db.RecentAnomalies(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAnomalies error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentAnomalies returned %d events, want 2", len(got))
	}
	if got[0].Snapshot.CPU != 99 {
		t.Errorf("newest CPU = %v, want 99", got[0].Snapshot.CPU)
	}
	if got[1].ID != id {
		t.Errorf("oldest ID = %q, want %q", got[1].ID, id)
	}
	if want := event(30, 0).Snapshot.Timestamp; !got[1].Snapshot.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", got[1].Snapshot.Timestamp, want)
	}
	if got[1].Score != 0.71 || got[1].Threshold != 0.62 {
		t.Errorf("Score/Threshold = %v/%v, want 0.71/0.62", got[1].Score, got[1].Threshold)
	}

	limited, err := db.RecentAnomalies(ctx, 1)
	if err != nil {
		t.Fatalf("RecentAnomalies error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("RecentAnomalies(1) returned %d events", len(limited))
	}
}

func TestDBLabelCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var lines []protocol.LogLine
	for _, label := range []protocol.Label{"info", "info", "security", "error", "security", "warning"} {
		lines = append(lines, protocol.LogLine{Raw: "raw", Cleaned: "cleaned", Label: label, Tier: protocol.TierModel})
	}
	if err := db.InsertLogLines(ctx, lines); err != nil {
		t.Fatalf("InsertLogLines error: %v", err)
	}
	if err := db.InsertLogLines(ctx, nil); err != nil {
		t.Fatalf("InsertLogLines(nil) error: %v", err)
	}

	counts, err := db.LabelCounts(ctx)
	if err != nil {
		t.Fatalf("LabelCounts error: %v", err)
	}
	if counts[protocol.LabelInfo] != 2 {
		t.Errorf("info count = %d, want 2", counts[protocol.LabelInfo])
	}
	if counts[protocol.LabelSecurity] != 2 {
		t.Errorf("security count = %d, want 2", counts[protocol.LabelSecurity])
	}

	alerts, err := db.Alerts(ctx)
	if err != nil {
		t.Fatalf("Alerts error: %v", err)
	}
	if alerts != (protocol.AlertSummary{Security: 2, Error: 1}) {
		t.Errorf("Alerts = %+v, want {Security:2 Error:1}", alerts)
	}
}
