// internal/protocol/types.go
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimestampLayout is the local-time format used in every snapshot record
const TimestampLayout = "2006-01-02 15:04:05"

// ErrMalformedRecord marks a record line that failed structural validation
var ErrMalformedRecord = errors.New("malformed record")

// RecordError tags a malformed line with its position in the source file
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return ErrMalformedRecord }

// Snapshot is one timestamped resource reading for a server
type Snapshot struct {
	Timestamp time.Time
	CPU       float64
	Mem       float64
	Disk      float64
	Server    string
}

// Features projects a snapshot onto the (cpu, mem, disk) vector used for outlier modeling
func (s Snapshot) Features() []float64 {
	return []float64{s.CPU, s.Mem, s.Disk}
}

// TimestampKey is the canonical string form used for known-anomaly matching
func (s Snapshot) TimestampKey() string {
	return s.Timestamp.Format(TimestampLayout)
}

type snapshotRecord struct {
	Timestamp *string  `json:"timestamp"`
	CPU       *float64 `json:"cpu"`
	Mem       *float64 `json:"mem"`
	Disk      *float64 `json:"disk"`
	Server    string   `json:"server"`
}

// MarshalJSON writes the one-line record format
func (s Snapshot) MarshalJSON() ([]byte, error) {
	ts := s.TimestampKey()
	return json.Marshal(snapshotRecord{
		Timestamp: &ts,
		CPU:       &s.CPU,
		Mem:       &s.Mem,
		Disk:      &s.Disk,
		Server:    s.Server,
	})
}

// UnmarshalJSON validates required fields; server is optional
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var rec snapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	switch {
	case rec.Timestamp == nil:
		return errors.New("missing field: timestamp")
	case rec.CPU == nil:
		return errors.New("missing field: cpu")
	case rec.Mem == nil:
		return errors.New("missing field: mem")
	case rec.Disk == nil:
		return errors.New("missing field: disk")
	}

	ts, err := ParseTimestamp(*rec.Timestamp)
	if err != nil {
		return err
	}

	*s = Snapshot{
		Timestamp: ts,
		CPU:       *rec.CPU,
		Mem:       *rec.Mem,
		Disk:      *rec.Disk,
		Server:    rec.Server,
	}
	return nil
}

// ParseTimestamp accepts the record layout in local time, falling back to RFC 3339
func ParseTimestamp(value string) (time.Time, error) {
	if ts, err := time.ParseInLocation(TimestampLayout, value, time.Local); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q", value)
	}
	return ts.Local(), nil
}

// ParseSnapshot decodes a single history line. Failures wrap ErrMalformedRecord.
func ParseSnapshot(line []byte, lineNo int) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(line, &s); err != nil {
		return Snapshot{}, &RecordError{Line: lineNo, Err: err}
	}
	return s, nil
}

// AnomalyEvent is a snapshot the model flagged, with the score that flagged it
type AnomalyEvent struct {
	Snapshot  Snapshot `json:"snapshot"`
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
}

// Label is a log line category
type Label string

const (
	LabelSecurity Label = "security"
	LabelError    Label = "error"
	LabelWarning  Label = "warning"
	LabelInfo     Label = "info"
)

// Labels lists every category in a stable order
var Labels = []Label{LabelSecurity, LabelError, LabelWarning, LabelInfo}

// Valid reports whether l is one of the four known categories
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// Tier records which stage of classification produced a label
type Tier string

const (
	TierRule     Tier = "rule"
	TierModel    Tier = "model"
	TierFallback Tier = "fallback"
)

// LogLine is one classified syslog line
type LogLine struct {
	Raw     string `json:"raw"`
	Cleaned string `json:"cleaned"`
	Label   Label  `json:"label"`
	Tier    Tier   `json:"-"`
}

// AlertSummary is the per-run counter pair consumed by the dashboard
type AlertSummary struct {
	Security int `json:"security"`
	Error    int `json:"error"`
}
