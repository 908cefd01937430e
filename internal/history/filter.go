// internal/history/filter.go
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/signalnine/hostwatch/internal/lineio"
	"github.com/signalnine/hostwatch/internal/protocol"
)

// KnownSet holds timestamps confirmed as anomalies, keyed by TimestampLayout
type KnownSet map[string]struct{}

// SortByTimestamp returns a timestamp-ascending copy; ties keep input order
func SortByTimestamp(records []protocol.Snapshot) []protocol.Snapshot {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b protocol.Snapshot) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted
}

type dedupeKey struct {
	ts             int64
	cpu, mem, disk float64
}

// Dedupe drops exact repeats of (timestamp, cpu, mem, disk), keeping the first
func Dedupe(records []protocol.Snapshot) []protocol.Snapshot {
	sorted := SortByTimestamp(records)
	seen := make(map[dedupeKey]struct{}, len(sorted))
	out := sorted[:0]
	for _, r := range sorted {
		key := dedupeKey{ts: r.Timestamp.UnixNano(), cpu: r.CPU, mem: r.Mem, disk: r.Disk}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ApplyRecencyWindow keeps the limit most recent records in ascending order.
// limit <= 0 disables the window. Returns how many were dropped.
func ApplyRecencyWindow(records []protocol.Snapshot, limit int) ([]protocol.Snapshot, int) {
	sorted := SortByTimestamp(records)
	if limit <= 0 || len(sorted) <= limit {
		return sorted, 0
	}
	dropped := len(sorted) - limit
	return sorted[dropped:], dropped
}

// ExcludeKnown removes records whose timestamp is in known. An empty set is a no-op.
func ExcludeKnown(records []protocol.Snapshot, known KnownSet) ([]protocol.Snapshot, int) {
	sorted := SortByTimestamp(records)
	if len(known) == 0 {
		return sorted, 0
	}
	out := sorted[:0]
	for _, r := range sorted {
		if _, hit := known[r.TimestampKey()]; hit {
			continue
		}
		out = append(out, r)
	}
	return out, len(sorted) - len(out)
}

// LoadKnown reads the known-anomalies file. Only the timestamp field is
// consulted. A missing file yields an empty set; bad lines are counted.
func LoadKnown(path string) (KnownSet, int, error) {
	known := make(KnownSet)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return known, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read known anomalies: %w", err)
	}

	skipped := 0
	oversized, err := lineio.Each(bytes.NewReader(data), lineio.DefaultMaxLine, func(raw []byte) {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			return
		}
		var rec struct {
			Timestamp *string `json:"timestamp"`
		}
		if err := json.Unmarshal(line, &rec); err != nil || rec.Timestamp == nil {
			skipped++
			return
		}
		known[canonicalTimestamp(*rec.Timestamp)] = struct{}{}
	})
	return known, skipped + oversized, err
}

func canonicalTimestamp(raw string) string {
	ts, err := protocol.ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	return ts.Format(protocol.TimestampLayout)
}
