// internal/protocol/types_test.go
package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSnapshotRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"complete", `{"timestamp":"2026-02-03 12:00:00","cpu":1,"mem":2,"disk":3,"server":"a"}`, false},
		{"server optional", `{"timestamp":"2026-02-03 12:00:00","cpu":1,"mem":2,"disk":3}`, false},
		{"zero values present", `{"timestamp":"2026-02-03 12:00:00","cpu":0,"mem":0,"disk":0}`, false},
		{"rfc3339 timestamp", `{"timestamp":"2026-02-03T12:00:00Z","cpu":1,"mem":2,"disk":3}`, false},
		{"missing timestamp", `{"cpu":1,"mem":2,"disk":3}`, true},
		{"missing cpu", `{"timestamp":"2026-02-03 12:00:00","mem":2,"disk":3}`, true},
		{"missing mem", `{"timestamp":"2026-02-03 12:00:00","cpu":1,"disk":3}`, true},
		{"missing disk", `{"timestamp":"2026-02-03 12:00:00","cpu":1,"mem":2}`, true},
		{"string cpu", `{"timestamp":"2026-02-03 12:00:00","cpu":"high","mem":2,"disk":3}`, true},
		{"bad timestamp", `{"timestamp":"yesterday","cpu":1,"mem":2,"disk":3}`, true},
		{"not json", `timestamp=now`, true},
	}

	for _, tt := range tests {
		_, err := ParseSnapshot([]byte(tt.line), 1)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ParseSnapshot error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestSnapshotTimestampKey(t *testing.T) {
	s := Snapshot{Timestamp: time.Date(2026, 2, 3, 9, 5, 7, 999, time.Local)}
	if got := s.TimestampKey(); got != "2026-02-03 09:05:07" {
		t.Errorf("TimestampKey() = %q, want %q", got, "2026-02-03 09:05:07")
	}
}

func TestAnomalyEventJSON(t *testing.T) {
	ev := AnomalyEvent{
		Snapshot:  Snapshot{Timestamp: time.Date(2026, 2, 3, 12, 0, 0, 0, time.Local), CPU: 97.5, Server: "a"},
		Score:     0.7,
		Threshold: 0.6,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"snapshot":{"timestamp":"2026-02-03 12:00:00","cpu":97.5,"mem":0,"disk":0,"server":"a"},"score":0.7,"threshold":0.6}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestLabelValid(t *testing.T) {
	for _, l := range Labels {
		if !l.Valid() {
			t.Errorf("%q.Valid() = false", l)
		}
	}
	for _, l := range []Label{"", "critical", "INFO"} {
		if l.Valid() {
			t.Errorf("%q.Valid() = true", l)
		}
	}
}
