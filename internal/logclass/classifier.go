// internal/logclass/classifier.go
package logclass

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/lineio"
	"github.com/signalnine/hostwatch/internal/logging"
	"github.com/signalnine/hostwatch/internal/metrics"
	"github.com/signalnine/hostwatch/internal/protocol"
)

// ErrLogNotFound is returned when the log file to classify does not exist
var ErrLogNotFound = fmt.Errorf("log file not found: %w", fs.ErrNotExist)

// Predictor labels a normalized line
type Predictor interface {
	Predict(cleaned string) (protocol.Label, error)
}

// Classifier applies the security rules first, then the predictor
type Classifier struct {
	predictor  Predictor
	normalizer Normalizer
	logger     *zap.Logger
}

// NewClassifier wraps a predictor. A nil predictor sends every line that
// misses the rules to the info fallback.
func NewClassifier(p Predictor, n Normalizer, logger *zap.Logger) *Classifier {
	return &Classifier{predictor: p, normalizer: n, logger: logging.OrNop(logger)}
}

// Classify labels one raw line. It never fails: predictor errors and panics
// yield LabelInfo.
func (c *Classifier) Classify(raw string) protocol.LogLine {
	line := protocol.LogLine{Raw: raw, Cleaned: c.normalizer.Normalize(raw)}

	if _, ok := MatchSecurity(raw); ok {
		line.Label, line.Tier = protocol.LabelSecurity, protocol.TierRule
	} else if label, err := c.predict(line.Cleaned); err != nil || !label.Valid() {
		if err == nil {
			err = fmt.Errorf("unknown label %q", label)
		}
		c.logger.Debug("classifier fallback", zap.String("line", raw), zap.Error(err))
		line.Label, line.Tier = protocol.LabelInfo, protocol.TierFallback
	} else {
		line.Label, line.Tier = label, protocol.TierModel
	}

	metrics.ObserveLogLine(string(line.Label), string(line.Tier))
	return line
}

func (c *Classifier) predict(cleaned string) (label protocol.Label, err error) {
	if c.predictor == nil {
		return "", errors.New("no predictor")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predictor panic: %v", r)
		}
	}()
	return c.predictor.Predict(cleaned)
}

// ClassifyLines labels every non-empty line
func (c *Classifier) ClassifyLines(lines []string) []protocol.LogLine {
	out := make([]protocol.LogLine, 0, len(lines))
	for _, raw := range lines {
		raw = strings.TrimRight(raw, "\r\n")
		if raw == "" {
			continue
		}
		out = append(out, c.Classify(raw))
	}
	return out
}

// ClassifyReader labels every non-empty line read from r. Invalid UTF-8 is
// dropped and lines longer than lineio.DefaultMaxLine are skipped.
func (c *Classifier) ClassifyReader(r io.Reader) ([]protocol.LogLine, error) {
	var out []protocol.LogLine
	oversized, err := lineio.Each(r, lineio.DefaultMaxLine, func(line []byte) {
		raw := strings.ToValidUTF8(string(line), "")
		if raw == "" {
			return
		}
		out = append(out, c.Classify(raw))
	})
	if oversized > 0 {
		c.logger.Warn("skipped oversized log lines",
			zap.Int("skipped", oversized), zap.Int("max_bytes", lineio.DefaultMaxLine))
	}
	if err != nil {
		return out, fmt.Errorf("read log lines: %w", err)
	}
	return out, nil
}

// ClassifyFile labels every line of the file at path. A missing file is
// reported as ErrLogNotFound.
func (c *Classifier) ClassifyFile(path string) ([]protocol.LogLine, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	lines, err := c.ClassifyReader(f)
	if err != nil {
		return lines, err
	}
	if len(lines) == 0 {
		c.logger.Warn("no valid log lines found", zap.String("path", path))
	}
	return lines, nil
}
