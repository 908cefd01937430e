// internal/history/store.go
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/lineio"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/protocol"
)

// Store is an append-only JSONL file of snapshots. The same type backs the
// history log and the anomaly-event log since both share the record schema.
type Store struct {
	path   string
	logger *zap.Logger
}

// LoadResult is what Load recovered from the file
type LoadResult struct {
	Snapshots []protocol.Snapshot
	Skipped   int  // malformed or oversized lines
	Missing   bool // file did not exist
}

// NewStore returns a store for path. The file is created on first Append.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logging.OrNop(logger)}
}

// Path returns the backing file
func (s *Store) Path() string { return s.path }

// Append writes one snapshot as a single self-contained line. If a previous
// writer was interrupted mid-line, the torn tail is terminated first so the
// new record still parses on its own.
func (s *Store) Append(snap protocol.Snapshot) error {
	line, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	torn, err := endsMidLine(f)
	if err != nil {
		return fmt.Errorf("inspect history tail: %w", err)
	}

	buf := make([]byte, 0, len(line)+2)
	if torn {
		buf = append(buf, '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	// One write per record
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

func endsMidLine(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Load parses every line. Malformed lines are skipped and counted; a missing
// file yields an empty result rather than an error.
func (s *Store) Load() (LoadResult, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("history file not found, treating as empty", zap.String("path", s.path))
		return LoadResult{Missing: true}, nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	res, err := Decode(f)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", s.path, err)
	}

	if res.Skipped > 0 {
		s.logger.Warn("skipped invalid history lines",
			zap.String("path", s.path), zap.Int("skipped", res.Skipped))
	}
	if len(res.Snapshots) == 0 {
		s.logger.Warn("no valid records found in history file", zap.String("path", s.path))
	}
	return res, nil
}

// Decode reads newline-delimited snapshot records from r. Lines that fail
// to parse or exceed lineio.DefaultMaxLine are skipped and counted.
func Decode(r io.Reader) (LoadResult, error) {
	var res LoadResult

	lineNo := 0
	oversized, err := lineio.Each(r, lineio.DefaultMaxLine, func(raw []byte) {
		lineNo++
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			return
		}
		snap, err := protocol.ParseSnapshot(line, lineNo)
		if err != nil {
			res.Skipped++
			return
		}
		res.Snapshots = append(res.Snapshots, snap)
	})
	res.Skipped += oversized
	return res, err
}
